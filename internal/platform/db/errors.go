package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinic/clinic/pkg/apperrors"
)

// Postgres SQLSTATE codes the repositories care about.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// Classify turns a storage error into an AppError. entity names the row kind
// in messages ("client", "appointment").
func Classify(err error, entity string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFoundError(entity + " not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return &apperrors.AppError{Type: apperrors.ErrorTypeConflict, Message: entity + " already exists", Err: err}
		case codeForeignKeyViolation:
			return &apperrors.AppError{Type: apperrors.ErrorTypeValidation, Message: "referenced row does not exist", Err: err}
		case codeCheckViolation:
			return &apperrors.AppError{Type: apperrors.ErrorTypeValidation, Message: fmt.Sprintf("invalid %s: %s", entity, pgErr.ConstraintName), Err: err}
		}
	}
	return apperrors.NewInternalError(fmt.Sprintf("%s storage failure", entity), err)
}

// IsForeignKeyViolation reports whether err is a foreign-key violation, as
// raised when deleting a row that others still reference.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}
