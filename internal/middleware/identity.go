package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stall-dashboard/internal/rbac"
)

// Context keys shared between middleware and handlers.
const (
	KeyUserID    = "user_id"
	KeyRole      = "role"
	KeyRequestID = "request_id"
	// KeyOutcome holds the status.Outcome a handler reported.  The request
	// logger and the metrics middleware read it after the handler returns.
	KeyOutcome = "result_outcome"
)

// CurrentUser returns the authenticated caller set by JWTAuth.
func CurrentUser(c echo.Context) (uint64, rbac.Role, bool) {
	id, ok := c.Get(KeyUserID).(uint64)
	if !ok || id == 0 {
		return 0, "", false
	}
	role, _ := c.Get(KeyRole).(rbac.Role)
	return id, role, true
}

// userID returns the caller's ID as a string for cache and rate limit keys,
// or "guest" for unauthenticated requests.
func userID(c echo.Context) string {
	if id, _, ok := CurrentUser(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "guest"
}
