// Package router registers the HTTP routes of the dashboard API.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stall-dashboard/internal/handler"
	"github.com/iliyamo/stall-dashboard/internal/middleware"
	"github.com/iliyamo/stall-dashboard/internal/rbac"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
// metrics may be nil when metrics are disabled.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler, metrics http.Handler) {
	e.GET("/healthz", health.Health)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers the authentication routes.  Register, login,
// refresh and logout live under /v1/auth and need no session; /v1/me
// requires a valid access token and role changes require an admin.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts a refresh token in the body, so it stays outside the
	// JWT group.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)

	admin := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(rbac.RoleAdmin))
	admin.PUT("/users/:id/role", a.SetRole)
}
