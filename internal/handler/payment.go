package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stall-dashboard/internal/middleware"
	"github.com/iliyamo/stall-dashboard/internal/model"
	"github.com/iliyamo/stall-dashboard/internal/queue"
	"github.com/iliyamo/stall-dashboard/internal/rbac"
	"github.com/iliyamo/stall-dashboard/internal/repository"
	"github.com/iliyamo/stall-dashboard/internal/status"
)

const publishTimeout = 5 * time.Second

type createPaymentReq struct {
	RentalID    uint64 `json:"rental_id" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	PaidOn      string `json:"paid_on"`
	Method      string `json:"method" validate:"required,oneof=CASH TRANSFER CARD"`
	Reference   string `json:"reference" validate:"max=64"`
	Note        string `json:"note" validate:"max=255"`
}

// paymentRow is one line of the CSV export.
type paymentRow struct {
	ID          uint64 `csv:"id"`
	RentalID    uint64 `csv:"rental_id"`
	PaidOn      string `csv:"paid_on"`
	Method      string `csv:"method"`
	AmountCents int64  `csv:"amount_cents"`
	Reference   string `csv:"reference"`
	Note        string `csv:"note"`
}

// paymentFilter reads rental_id, from and to.  Rental-role callers must
// name one of their own rentals.
func (h *DashboardHandler) paymentFilter(c echo.Context) (model.PaymentFilter, error) {
	var f model.PaymentFilter
	var err error
	if f.RentalID, err = queryUint(c, "rental_id"); err != nil {
		return f, err
	}
	if f.From, err = optionalDate("from", c.QueryParam("from")); err != nil {
		return f, err
	}
	if f.To, err = optionalDate("to", c.QueryParam("to")); err != nil {
		return f, err
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, invalidInput("to must not be before from")
	}
	if _, role, _ := middleware.CurrentUser(c); role == rbac.RoleRental {
		if f.RentalID == 0 {
			return f, missingField("missing required field: rental_id")
		}
		if _, err := h.ownedRental(c, f.RentalID); err != nil {
			return f, err
		}
	}
	return f, nil
}

// ListPayments handles GET /v1/dashboard/payments?rental_id=&from=&to=.
func (h *DashboardHandler) ListPayments(c echo.Context) error {
	f, err := h.paymentFilter(c)
	if err != nil {
		return h.fail(c, err)
	}
	if f.Limit, f.Offset, err = pageParams(c); err != nil {
		return h.fail(c, err)
	}
	items, err := h.Payments.List(c.Request().Context(), f)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, listResult[*model.Payment]{Items: items, Limit: f.Limit, Offset: f.Offset})
}

// GetPayment handles GET /v1/dashboard/payments/:id.
func (h *DashboardHandler) GetPayment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	p, err := h.Payments.GetByID(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	if _, role, _ := middleware.CurrentUser(c); role == rbac.RoleRental {
		if _, err := h.ownedRental(c, p.RentalID); err != nil {
			return h.fail(c, repository.ErrPaymentNotFound)
		}
	}
	return ok(c, p)
}

// ExportPayments handles GET /v1/dashboard/payments/export and streams the
// filtered payments as CSV.  Paging is ignored; the repository cap still
// applies.
func (h *DashboardHandler) ExportPayments(c echo.Context) error {
	f, err := h.paymentFilter(c)
	if err != nil {
		return h.fail(c, err)
	}
	f.Limit = 500
	items, err := h.Payments.List(c.Request().Context(), f)
	if err != nil {
		return h.fail(c, err)
	}

	rows := make([]paymentRow, 0, len(items))
	for _, p := range items {
		rows = append(rows, paymentRow{
			ID:          p.ID,
			RentalID:    p.RentalID,
			PaidOn:      p.PaidOn.Format(dateLayout),
			Method:      string(p.Method),
			AmountCents: p.AmountCents,
			Reference:   p.Reference,
			Note:        p.Note,
		})
	}
	out, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return h.fail(c, err)
	}
	c.Set(middleware.KeyOutcome, status.Success)
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="payments.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", out)
}

// CreatePayment handles POST /v1/dashboard/payments.  paid_on defaults to
// today and reference to a fresh uuid.  A PaymentRecordedEvent is
// published afterwards; publish failures are only logged.
func (h *DashboardHandler) CreatePayment(c echo.Context) error {
	var req createPaymentReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	now := h.Now()
	paidOn := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if req.PaidOn != "" {
		t, err := parseDate("paid_on", req.PaidOn)
		if err != nil {
			return h.fail(c, err)
		}
		paidOn = t
	}
	ref := strings.TrimSpace(req.Reference)
	if ref == "" {
		ref = uuid.NewString()
	}
	p := &model.Payment{
		RentalID:    req.RentalID,
		AmountCents: req.AmountCents,
		PaidOn:      paidOn,
		Method:      model.PaymentMethod(req.Method),
		Reference:   ref,
		Note:        strings.TrimSpace(req.Note),
	}
	ctx := c.Request().Context()
	if err := h.Payments.Create(ctx, p); err != nil {
		return h.fail(c, err)
	}
	uid, _, _ := middleware.CurrentUser(c)
	h.publishPayment(ctx, p, uid)
	return created(c, p)
}

func (h *DashboardHandler) publishPayment(ctx context.Context, p *model.Payment, by uint64) {
	if h.Events == nil {
		return
	}
	ev := queue.PaymentRecordedEvent{
		PaymentID:   p.ID,
		RentalID:    p.RentalID,
		AmountCents: p.AmountCents,
		Method:      string(p.Method),
		Reference:   p.Reference,
		PaidOn:      p.PaidOn.Format(dateLayout),
		RecordedBy:  by,
		RecordedAt:  h.Now().Format(time.RFC3339),
	}
	if rt, err := h.Rentals.GetByID(ctx, p.RentalID); err == nil {
		ev.StallID = rt.StallID
		ev.TenantName = rt.TenantName
		if s, err := h.Stalls.GetByID(ctx, rt.StallID); err == nil {
			ev.StallCode = s.Code
		}
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := h.Events.PublishPaymentRecorded(pctx, ev); err != nil {
		h.Logger.Warn("publish payment event failed",
			slog.Uint64("payment_id", p.ID),
			slog.Any("error", err))
	}
}

// DeletePayment handles DELETE /v1/dashboard/payments/:id.
func (h *DashboardHandler) DeletePayment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Payments.Delete(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	return ok(c, nil)
}
