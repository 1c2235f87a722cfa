package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sql.DB and the redis client wrapper used in main.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness and, when dependencies are configured,
// their reachability.
type HealthHandler struct {
	Deps map[string]Pinger
}

// Health returns 200 "ok" when every dependency answers a ping within two
// seconds, and 503 with the failing names otherwise.
func (h *HealthHandler) Health(c echo.Context) error {
	if len(h.Deps) == 0 {
		return c.String(http.StatusOK, "ok")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, p := range h.Deps {
		if err := p.PingContext(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "failed": failed})
	}
	return c.String(http.StatusOK, "ok")
}
