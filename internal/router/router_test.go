package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/stall-dashboard/internal/config"
	"github.com/iliyamo/stall-dashboard/internal/handler"
	"github.com/iliyamo/stall-dashboard/internal/metrics"
	"github.com/iliyamo/stall-dashboard/internal/model"
	"github.com/iliyamo/stall-dashboard/internal/repository"
	"github.com/iliyamo/stall-dashboard/internal/utils"
)

const secret = "router-secret"

// emptyStalls answers every dashboard store call with an empty result.
type emptyStalls struct{}

func (emptyStalls) Create(context.Context, *model.Stall) error { return nil }
func (emptyStalls) GetByID(context.Context, uint64) (*model.Stall, error) {
	return nil, repository.ErrStallNotFound
}
func (emptyStalls) List(context.Context, model.StallFilter) ([]*model.Stall, error) {
	return []*model.Stall{}, nil
}
func (emptyStalls) Update(context.Context, *model.Stall) error { return nil }
func (emptyStalls) Delete(context.Context, uint64) error { return nil }
func (emptyStalls) CountByStatus(context.Context) (map[model.StallStatus]int64, error) {
	return map[model.StallStatus]int64{}, nil
}

// stallNine serves a single AVAILABLE stall with id 9.
type stallNine struct{ emptyStalls }

func (stallNine) GetByID(_ context.Context, id uint64) (*model.Stall, error) {
	if id != 9 {
		return nil, repository.ErrStallNotFound
	}
	return &model.Stall{ID: 9, Code: "S-9", Name: "Nine", MonthlyRentCents: 500, Status: model.StallAvailable}, nil
}

type emptyRentals struct{}

func (emptyRentals) Create(context.Context, *model.Rental) error { return nil }
func (emptyRentals) GetByID(context.Context, uint64) (*model.Rental, error) {
	return nil, repository.ErrRentalNotFound
}
func (emptyRentals) List(context.Context, model.RentalFilter) ([]*model.Rental, error) {
	return []*model.Rental{}, nil
}
func (emptyRentals) UpdateTerms(context.Context, *model.Rental) error { return nil }
func (emptyRentals) End(context.Context, uint64, time.Time) (*model.Rental, error) {
	return nil, repository.ErrRentalNotFound
}
func (emptyRentals) Delete(context.Context, uint64) error { return nil }
func (emptyRentals) CountActive(context.Context) (int64, error) { return 0, nil }

type emptyPayments struct{}

func (emptyPayments) Create(context.Context, *model.Payment) error { return nil }
func (emptyPayments) GetByID(context.Context, uint64) (*model.Payment, error) {
	return nil, repository.ErrPaymentNotFound
}
func (emptyPayments) List(context.Context, model.PaymentFilter) ([]*model.Payment, error) {
	return []*model.Payment{}, nil
}
func (emptyPayments) Delete(context.Context, uint64) error { return nil }
func (emptyPayments) Totals(context.Context, time.Time, time.Time) (int64, int64, error) {
	return 0, 0, nil
}

type emptyExpenses struct{}

func (emptyExpenses) Create(context.Context, *model.Expense) error { return nil }
func (emptyExpenses) CreateMany(context.Context, []*model.Expense) error { return nil }
func (emptyExpenses) GetByID(context.Context, uint64) (*model.Expense, error) {
	return nil, repository.ErrExpenseNotFound
}
func (emptyExpenses) List(context.Context, model.ExpenseFilter) ([]*model.Expense, error) {
	return []*model.Expense{}, nil
}
func (emptyExpenses) Update(context.Context, *model.Expense) error { return nil }
func (emptyExpenses) Delete(context.Context, uint64) error { return nil }
func (emptyExpenses) Totals(context.Context, time.Time, time.Time) (int64, int64, error) {
	return 0, 0, nil
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func newServer(t *testing.T, deps map[string]handler.Pinger) *echo.Echo {
	t.Helper()
	return newServerWith(t, deps, emptyStalls{})
}

func newServerWith(t *testing.T, deps map[string]handler.Pinger, stalls handler.StallStore) *echo.Echo {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := echo.New()
	e.Validator = handler.NewValidator()

	col := metrics.New("test")
	e.Use(col.Middleware())
	RegisterRoutes(e, &handler.HealthHandler{Deps: deps}, col.Handler())
	RegisterAuth(e, handler.NewAuthHandler(config.Config{JWTSecret: secret}, nil, nil, logger), secret)
	RegisterDashboard(e,
		handler.NewDashboardHandler(stalls, emptyRentals{}, emptyPayments{}, emptyExpenses{}, nil, logger),
		DashboardDeps{JWTSecret: secret, Logger: logger})
	return e
}

func call(t *testing.T, e *echo.Echo, method, path, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if role != "" {
		tok, err := utils.NewAccessToken(secret, 5, role, 5)
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestDashboardRoutesEnforceCapabilities(t *testing.T) {
	e := newServer(t, nil)
	cases := []struct {
		role   string
		method string
		path   string
		want   int
	}{
		{"", http.MethodGet, "/v1/dashboard/stalls", http.StatusUnauthorized},
		{"user", http.MethodGet, "/v1/dashboard/stalls", http.StatusOK},
		{"user", http.MethodGet, "/v1/dashboard/summary", http.StatusOK},
		{"user", http.MethodPost, "/v1/dashboard/stalls", http.StatusForbidden},
		{"user", http.MethodPatch, "/v1/dashboard/rentals/1", http.StatusForbidden},
		{"user", http.MethodDelete, "/v1/dashboard/payments/1", http.StatusForbidden},
		{"rental", http.MethodGet, "/v1/dashboard/rentals", http.StatusOK},
		{"rental", http.MethodPost, "/v1/dashboard/rentals/1/end", http.StatusNotFound},
		{"rental", http.MethodPost, "/v1/dashboard/payments", http.StatusForbidden},
		{"rental", http.MethodDelete, "/v1/dashboard/expenses/1", http.StatusForbidden},
		{"admin", http.MethodDelete, "/v1/dashboard/expenses/1", http.StatusOK},
		{"admin", http.MethodGet, "/v1/dashboard/payments/export", http.StatusOK},
		{"ghost", http.MethodGet, "/v1/dashboard/stalls", http.StatusForbidden},
	}
	for _, tc := range cases {
		rec := call(t, e, tc.method, tc.path, tc.role, "")
		assert.Equal(t, tc.want, rec.Code, "%s %s %s", tc.role, tc.method, tc.path)
		if tc.want == http.StatusForbidden {
			assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
		}
	}
}

func TestTenantsCannotReachSiteWideData(t *testing.T) {
	e := newServerWith(t, nil, stallNine{})
	cases := []struct {
		role   string
		method string
		path   string
		body   string
		want   int
	}{
		{"rental", http.MethodPatch, "/v1/dashboard/stalls/9", `{"monthly_rent_cents":0,"status":"MAINTENANCE"}`, http.StatusNotFound},
		{"rental", http.MethodPut, "/v1/dashboard/stalls/9", `{"name":"Mine now"}`, http.StatusNotFound},
		{"admin", http.MethodPatch, "/v1/dashboard/stalls/9", `{"status":"MAINTENANCE"}`, http.StatusOK},
		{"rental", http.MethodGet, "/v1/dashboard/summary", "", http.StatusForbidden},
		{"rental", http.MethodGet, "/v1/dashboard/expenses", "", http.StatusForbidden},
		{"rental", http.MethodGet, "/v1/dashboard/expenses/1", "", http.StatusForbidden},
		{"rental", http.MethodPatch, "/v1/dashboard/expenses/1", `{"amount_cents":1}`, http.StatusForbidden},
		{"rental", http.MethodPut, "/v1/dashboard/expenses/1", `{"amount_cents":1}`, http.StatusForbidden},
		{"user", http.MethodGet, "/v1/dashboard/expenses", "", http.StatusOK},
		{"admin", http.MethodPatch, "/v1/dashboard/expenses/1", `{"amount_cents":1}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := call(t, e, tc.method, tc.path, tc.role, tc.body)
		assert.Equal(t, tc.want, rec.Code, "%s %s %s: %s", tc.role, tc.method, tc.path, rec.Body.String())
		if tc.want == http.StatusForbidden {
			assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
		}
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	e := newServer(t, nil)
	rec := call(t, e, http.MethodPut, "/v1/admin/users/2/role", "user", `{"role":"admin"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = call(t, e, http.MethodPut, "/v1/admin/users/2/role", "", `{"role":"admin"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newServer(t, map[string]handler.Pinger{"mysql": pinger{}})
	rec := call(t, e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	call(t, e, http.MethodGet, "/v1/dashboard/stalls", "user", "")
	rec = call(t, e, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
	assert.Contains(t, rec.Body.String(), `outcome="Success"`)

	e = newServer(t, map[string]handler.Pinger{"mysql": pinger{}, "redis": pinger{err: errors.New("refused")}})
	rec = call(t, e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}
