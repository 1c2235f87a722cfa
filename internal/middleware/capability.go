package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stall-dashboard/internal/rbac"
)

// RequireCapability allows the request only when the caller's role holds
// (resource, action) in the rbac table.  It must run after JWTAuth.  A role
// the table does not know is logged, since it means tokens were issued with
// a role the server cannot authorize.
func RequireCapability(logger *slog.Logger, resource, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_, role, ok := CurrentUser(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			if _, err := rbac.CapabilitiesOf(role); err != nil {
				if logger != nil && errors.Is(err, rbac.ErrUnknownRole) {
					logger.Error("authorize: unknown role in token",
						slog.String("role", string(role)),
						slog.String("resource", resource),
						slog.String("action", action),
						slog.String("request_id", requestIDOf(c)))
				}
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			if !rbac.HasCapability(role, resource, action) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// RequireRole allows the request only for the listed roles.
func RequireRole(roles ...rbac.Role) echo.MiddlewareFunc {
	allowed := make(map[rbac.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_, role, ok := CurrentUser(c)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
