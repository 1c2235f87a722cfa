package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/stall-dashboard/internal/rbac"
	"github.com/iliyamo/stall-dashboard/internal/utils"
)

const testSecret = "test-secret"

func bearer(t *testing.T, uid uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, uid, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func serve(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthSetsIdentity(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error {
		uid, role, ok := CurrentUser(c)
		require.True(t, ok)
		assert.Equal(t, uint64(7), uid)
		assert.Equal(t, rbac.RoleRental, role)
		return c.NoContent(http.StatusNoContent)
	}, JWTAuth(testSecret))

	rec := serve(e, http.MethodGet, "/x", bearer(t, 7, "rental"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestJWTAuthRejects(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, JWTAuth(testSecret))

	other, err := utils.NewAccessToken("other-secret", 1, "admin", 5)
	require.NoError(t, err)

	for name, auth := range map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"garbage":      "Bearer not-a-jwt",
		"wrong secret": "Bearer " + other.Token,
	} {
		rec := serve(e, http.MethodGet, "/x", auth)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
}

func TestRequireCapability(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.GET("/read", ok, JWTAuth(testSecret), RequireCapability(logger, rbac.ResourceDashboard, rbac.ActionRead))
	e.DELETE("/delete", ok, JWTAuth(testSecret), RequireCapability(logger, rbac.ResourceDashboard, rbac.ActionDelete))
	e.PUT("/update", ok, JWTAuth(testSecret), RequireCapability(logger, rbac.ResourceDashboard, rbac.ActionUpdate))

	cases := []struct {
		role   string
		method string
		path   string
		want   int
	}{
		{"admin", http.MethodDelete, "/delete", http.StatusNoContent},
		{"user", http.MethodGet, "/read", http.StatusNoContent},
		{"user", http.MethodPut, "/update", http.StatusForbidden},
		{"user", http.MethodDelete, "/delete", http.StatusForbidden},
		{"rental", http.MethodPut, "/update", http.StatusNoContent},
		{"rental", http.MethodDelete, "/delete", http.StatusForbidden},
	}
	for _, tc := range cases {
		rec := serve(e, tc.method, tc.path, bearer(t, 1, tc.role))
		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.role, tc.path)
		if tc.want == http.StatusForbidden {
			assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
		}
	}
	assert.Empty(t, logs.String())
}

func TestRequireCapabilityUnknownRole(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	e := echo.New()
	e.GET("/read", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		JWTAuth(testSecret), RequireCapability(logger, rbac.ResourceDashboard, rbac.ActionRead))

	rec := serve(e, http.MethodGet, "/read", bearer(t, 1, "OWNER"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, logs.String(), "unknown role")
	assert.Contains(t, logs.String(), `"role":"OWNER"`)
}

func TestRequireCapabilityWithoutIdentity(t *testing.T) {
	e := echo.New()
	e.GET("/read", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		RequireCapability(nil, rbac.ResourceDashboard, rbac.ActionRead))
	rec := serve(e, http.MethodGet, "/read", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.PUT("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		JWTAuth(testSecret), RequireRole(rbac.RoleAdmin))

	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodPut, "/admin", bearer(t, 1, "admin")).Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodPut, "/admin", bearer(t, 1, "rental")).Code)
}
