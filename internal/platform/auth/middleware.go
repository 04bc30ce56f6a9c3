package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
)

// DevUserID is the identity DevAuthMiddleware assigns to anonymous requests.
const DevUserID = "00000000-0000-0000-0000-000000000001"

// Claims carries only the subject. The role is never read from the token;
// RoleLoader resolves it from the profile table on every request.
type Claims struct {
	jwt.RegisteredClaims
}

type JWTConfig struct {
	Issuer     string
	SigningKey []byte
	Skipper    middleware.Skipper
}

// JWTMiddleware validates HS256 bearer tokens issued by TokenIssuer and puts
// the subject on the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	skipper := cfg.Skipper
	if skipper == nil {
		skipper = middleware.DefaultSkipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}

			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			}, opts...)
			if err != nil || !token.Valid || claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := context.WithValue(c.Request().Context(), UserIDKey, claims.Subject)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("user_id", claims.Subject)

			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development. Requests
// without a token run as DevUserID with the admin_doctor role.
func DevAuthMiddleware(skipper middleware.Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = middleware.DefaultSkipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) || c.Request().Header.Get("Authorization") != "" {
				return next(c)
			}
			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, DevUserID)
			ctx = context.WithValue(ctx, UserRoleKey, RoleAdminDoctor)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("user_id", DevUserID)
			return next(c)
		}
	}
}

// RoleResolver looks up the role stored for an account.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID string) (string, error)
}

// RoleLoader reads the caller's role from the trusted store and binds it to
// the request context. A caller with a valid token but no profile is
// rejected.
func RoleLoader(resolver RoleResolver, skipper middleware.Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = middleware.DefaultSkipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}
			ctx := c.Request().Context()
			if RoleFromContext(ctx) != "" {
				return next(c)
			}
			uid := UserIDFromContext(ctx)
			if uid == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			role, err := resolver.ResolveRole(ctx, uid)
			if err != nil || !ValidRole(role) {
				return echo.NewHTTPError(http.StatusForbidden, "no profile for this account")
			}
			c.SetRequest(c.Request().WithContext(context.WithValue(ctx, UserRoleKey, role)))
			c.Set("user_role", role)
			return next(c)
		}
	}
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

// WithIdentity returns a context carrying a user id and role. Tests and the
// CLI use it to act as a given account.
func WithIdentity(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRoleKey, role)
}
