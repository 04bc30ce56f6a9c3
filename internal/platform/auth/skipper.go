package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route patterns that bypass authentication and role
// loading: health and metrics endpoints, login and the invite redemption flow.
var publicPaths = map[string]bool{
	"/health":                       true,
	"/health/db":                    true,
	"/metrics":                      true,
	"/api/v1/auth/login":            true,
	"/api/v1/invites/lookup/:token": true,
	"/api/v1/invites/redeem/:token": true,
}

// AuthSkipper returns true for requests whose route should skip
// authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given route pattern is public.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
