// Package validate holds the field checks shared by the domain services.
// Failures are VALIDATION AppErrors.
package validate

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/clinic/clinic/pkg/apperrors"
)

// MinLen requires s, trimmed, to be at least n characters long.
func MinLen(field, s string, n int) error {
	if utf8.RuneCountInString(strings.TrimSpace(s)) < n {
		return apperrors.Validationf("%s must be at least %d characters", field, n)
	}
	return nil
}

// Email trims and lowercases s and checks that it is a bare address.
func Email(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", apperrors.NewValidationError("email is required")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", apperrors.Validationf("invalid email: %s", s)
	}
	return s, nil
}

// OptionalEmail is Email for fields that may be empty. nil or blank stays
// nil.
func OptionalEmail(s *string) (*string, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	e, err := Email(*s)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Trimmed returns nil for a nil or blank pointer, otherwise the trimmed value.
func Trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
