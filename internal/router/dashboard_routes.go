package router

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stall-dashboard/internal/handler"
	"github.com/iliyamo/stall-dashboard/internal/middleware"
	"github.com/iliyamo/stall-dashboard/internal/rbac"
)

// DashboardDeps carries the middleware shared by every dashboard route.
// RateLimit and Cache may be nil.
type DashboardDeps struct {
	JWTSecret string
	Logger    *slog.Logger
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// RegisterDashboard registers the /v1/dashboard API.  Every route declares
// the action it needs on the dashboard resource.  The capability check
// runs before the cache so a cached body is never served to a caller who
// may not read it.
func RegisterDashboard(e *echo.Echo, d *handler.DashboardHandler, deps DashboardDeps) {
	group := []echo.MiddlewareFunc{middleware.JWTAuth(deps.JWTSecret)}
	if deps.RateLimit != nil {
		group = append(group, deps.RateLimit)
	}
	g := e.Group("/v1/dashboard", group...)

	can := func(action string, extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
		mw := []echo.MiddlewareFunc{middleware.RequireCapability(deps.Logger, rbac.ResourceDashboard, action)}
		mw = append(mw, extra...)
		if deps.Cache != nil {
			mw = append(mw, deps.Cache)
		}
		return mw
	}
	read := can(rbac.ActionRead)
	create := can(rbac.ActionCreate)
	update := can(rbac.ActionUpdate)
	del := can(rbac.ActionDelete)

	// Site-wide bookkeeping is for staff; tenants only reach their own
	// stalls, rentals and payments.
	staff := middleware.RequireRole(rbac.RoleAdmin, rbac.RoleUser)
	staffRead := can(rbac.ActionRead, staff)
	staffCreate := can(rbac.ActionCreate, staff)
	staffUpdate := can(rbac.ActionUpdate, staff)
	staffDel := can(rbac.ActionDelete, staff)

	g.GET("/capabilities", d.Capabilities, read...)
	g.GET("/summary", d.Summary, staffRead...)

	// ---- Stalls ----
	g.GET("/stalls", d.ListStalls, read...)
	g.GET("/stalls/:id", d.GetStall, read...)
	g.POST("/stalls", d.CreateStall, create...)
	g.PUT("/stalls/:id", d.UpdateStall, update...)
	g.PATCH("/stalls/:id", d.UpdateStall, update...)
	g.DELETE("/stalls/:id", d.DeleteStall, del...)

	// ---- Rentals ----
	g.GET("/rentals", d.ListRentals, read...)
	g.GET("/rentals/:id", d.GetRental, read...)
	g.POST("/rentals", d.CreateRental, create...)
	g.PUT("/rentals/:id", d.UpdateRental, update...)
	g.PATCH("/rentals/:id", d.UpdateRental, update...)
	g.POST("/rentals/:id/end", d.EndRental, update...)
	g.DELETE("/rentals/:id", d.DeleteRental, del...)

	// ---- Payments ----
	g.GET("/payments", d.ListPayments, read...)
	g.GET("/payments/export", d.ExportPayments, read...)
	g.GET("/payments/:id", d.GetPayment, read...)
	g.POST("/payments", d.CreatePayment, create...)
	g.DELETE("/payments/:id", d.DeletePayment, del...)

	// ---- Expenses ----
	g.GET("/expenses", d.ListExpenses, staffRead...)
	g.GET("/expenses/:id", d.GetExpense, staffRead...)
	g.POST("/expenses", d.CreateExpense, staffCreate...)
	g.POST("/expenses/import", d.ImportExpenses, staffCreate...)
	g.PUT("/expenses/:id", d.UpdateExpense, staffUpdate...)
	g.PATCH("/expenses/:id", d.UpdateExpense, staffUpdate...)
	g.DELETE("/expenses/:id", d.DeleteExpense, staffDel...)
}
