package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stall-dashboard/internal/middleware"
	"github.com/iliyamo/stall-dashboard/internal/model"
	"github.com/iliyamo/stall-dashboard/internal/rbac"
	"github.com/iliyamo/stall-dashboard/internal/status"
)

// DashboardHandler serves the /v1/dashboard API.  Authorization happens in
// middleware.RequireCapability before any method here runs; handlers only
// apply per-record ownership rules for the rental role.
type DashboardHandler struct {
	Stalls   StallStore
	Rentals  RentalStore
	Payments PaymentStore
	Expenses ExpenseStore
	Events   EventPublisher // optional
	Logger   *slog.Logger
	Now      func() time.Time
}

// NewDashboardHandler panics if a store is missing.
func NewDashboardHandler(stalls StallStore, rentals RentalStore, payments PaymentStore, expenses ExpenseStore, events EventPublisher, logger *slog.Logger) *DashboardHandler {
	if stalls == nil || rentals == nil || payments == nil || expenses == nil {
		panic("nil store passed to NewDashboardHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{
		Stalls:   stalls,
		Rentals:  rentals,
		Payments: payments,
		Expenses: expenses,
		Events:   events,
		Logger:   logger,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func (h *DashboardHandler) fail(c echo.Context, err error) error { return fail(c, h.Logger, err) }

type capabilitiesResp struct {
	Role         rbac.Role         `json:"role"`
	Capabilities []rbac.Capability `json:"capabilities"`
}

// Capabilities handles GET /v1/dashboard/capabilities and lists what the
// caller's role may do, so the front-end can hide unavailable actions.
func (h *DashboardHandler) Capabilities(c echo.Context) error {
	_, role, _ := middleware.CurrentUser(c)
	set, err := rbac.CapabilitiesOf(role)
	if err != nil {
		return respond(c, httpStatusFor(status.OperationFailed), status.OperationFailed, "unknown role", nil)
	}
	return ok(c, capabilitiesResp{Role: role, Capabilities: set.List()})
}

// Summary handles GET /v1/dashboard/summary?from=YYYY-MM-DD&to=YYYY-MM-DD.
// The range defaults to the current month up to today.
func (h *DashboardHandler) Summary(c echo.Context) error {
	now := h.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if v := c.QueryParam("from"); v != "" {
		t, err := parseDate("from", v)
		if err != nil {
			return h.fail(c, err)
		}
		from = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := parseDate("to", v)
		if err != nil {
			return h.fail(c, err)
		}
		to = t
	}
	if to.Before(from) {
		return h.fail(c, invalidInput("to must not be before from"))
	}

	s, err := h.summary(c.Request().Context(), from, to)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, s)
}

func (h *DashboardHandler) summary(ctx context.Context, from, to time.Time) (*model.Summary, error) {
	byStatus, err := h.Stalls.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	active, err := h.Rentals.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	pCount, pCents, err := h.Payments.Totals(ctx, from, to)
	if err != nil {
		return nil, err
	}
	eCount, eCents, err := h.Expenses.Totals(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &model.Summary{
		From:           from,
		To:             to,
		StallsByStatus: byStatus,
		ActiveRentals:  active,
		PaymentsCents:  pCents,
		ExpensesCents:  eCents,
		NetCents:       pCents - eCents,
		PaymentCount:   pCount,
		ExpenseCount:   eCount,
	}, nil
}
