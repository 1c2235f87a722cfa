package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/stall-dashboard/internal/status"
)

func TestRequestIDAssignsAndPropagates(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	var seen string
	e.GET("/x", func(c echo.Context) error {
		seen = requestIDOf(c)
		return c.NoContent(http.StatusNoContent)
	})

	rec := serve(e, http.MethodGet, "/x", "")
	require.NotEmpty(t, seen)
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(echo.HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc-123")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(echo.HeaderXRequestID))
}

func TestRequestLoggerIncludesOutcome(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(RequestID(), RequestLogger(logger))
	e.GET("/stalls/:id", func(c echo.Context) error {
		c.Set(KeyOutcome, status.NotFound)
		return c.JSON(http.StatusNotFound, echo.Map{"code": -104})
	})

	rec := serve(e, http.MethodGet, "/stalls/9", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "/stalls/:id", line["route"])
	assert.Equal(t, "NotFound", line["outcome"])
	assert.Equal(t, float64(-104), line["code"])
	assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), line["request_id"])
}

func TestRequestLoggerRendersErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })

	rec := serve(e, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "boom", line["error"])
	assert.NotContains(t, line, "outcome")
}
