package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin       = "admin"
	RoleDoctor      = "doctor"
	RoleAdminDoctor = "admin_doctor"
)

// AdminRoles may manage doctors, invites and users.
var AdminRoles = []string{RoleAdmin, RoleAdminDoctor}

// ClinicalRoles may read and write clinical notes.
var ClinicalRoles = []string{RoleDoctor, RoleAdminDoctor}

// ValidRole reports whether role is one the profile table accepts.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleDoctor || role == RoleAdminDoctor
}

// IsAdmin reports whether role grants administrative pages.
func IsAdmin(role string) bool {
	return role == RoleAdmin || role == RoleAdminDoctor
}

// CanAccessClinicalNotes reports whether role may view or edit clinical notes.
// A plain admin may not.
func CanAccessClinicalNotes(role string) bool {
	return role == RoleDoctor || role == RoleAdminDoctor
}

// Capabilities is the access summary returned to clients for UI gating.
type Capabilities struct {
	CanAccessClinicalNotes bool `json:"can_access_clinical_notes"`
	IsAdmin                bool `json:"is_admin"`
}

func CapabilitiesFor(role string) Capabilities {
	return Capabilities{
		CanAccessClinicalNotes: CanAccessClinicalNotes(role),
		IsAdmin:                IsAdmin(role),
	}
}

// RequireRole returns middleware that checks the caller's role is one of
// roles. There is no implicit bypass for any role.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRole := RoleFromContext(c.Request().Context())
			for _, required := range roles {
				if userRole == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
