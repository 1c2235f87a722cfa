package handler

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stall-dashboard/internal/middleware"
	"github.com/iliyamo/stall-dashboard/internal/model"
	"github.com/iliyamo/stall-dashboard/internal/rbac"
	"github.com/iliyamo/stall-dashboard/internal/repository"
)

type createRentalReq struct {
	StallID          uint64  `json:"stall_id" validate:"required"`
	TenantUserID     *uint64 `json:"tenant_user_id" validate:"omitempty,gt=0"`
	TenantName       string  `json:"tenant_name" validate:"required,max=128"`
	StartsOn         string  `json:"starts_on" validate:"required"`
	EndsOn           string  `json:"ends_on"`
	MonthlyRentCents int64   `json:"monthly_rent_cents" validate:"gte=0"`
}

type updateRentalReq struct {
	TenantName       *string `json:"tenant_name" validate:"omitempty,min=1,max=128"`
	EndsOn           *string `json:"ends_on"`
	MonthlyRentCents *int64  `json:"monthly_rent_cents" validate:"omitempty,gte=0"`
}

type endRentalReq struct {
	EndsOn string `json:"ends_on"`
}

// ownedRental loads a rental and hides it from rental-role callers who are
// not its tenant.
func (h *DashboardHandler) ownedRental(c echo.Context, id uint64) (*model.Rental, error) {
	rt, err := h.Rentals.GetByID(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	uid, role, _ := middleware.CurrentUser(c)
	if role == rbac.RoleRental && (rt.TenantUserID == nil || *rt.TenantUserID != uid) {
		return nil, repository.ErrRentalNotFound
	}
	return rt, nil
}

// ListRentals handles GET /v1/dashboard/rentals?stall_id=&status=.  Callers
// with the rental role only see their own rentals.
func (h *DashboardHandler) ListRentals(c echo.Context) error {
	limit, offset, err := pageParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	stallID, err := queryUint(c, "stall_id")
	if err != nil {
		return h.fail(c, err)
	}
	f := model.RentalFilter{
		StallID: stallID,
		Status:  model.RentalStatus(strings.ToUpper(c.QueryParam("status"))),
		Limit:   limit,
		Offset:  offset,
	}
	switch f.Status {
	case "", model.RentalActive, model.RentalEnded:
	default:
		return h.fail(c, invalidInput("unknown status filter"))
	}
	if uid, role, _ := middleware.CurrentUser(c); role == rbac.RoleRental {
		f.TenantUserID = uid
	}
	items, err := h.Rentals.List(c.Request().Context(), f)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, listResult[*model.Rental]{Items: items, Limit: limit, Offset: offset})
}

// GetRental handles GET /v1/dashboard/rentals/:id.
func (h *DashboardHandler) GetRental(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	rt, err := h.ownedRental(c, id)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, rt)
}

// CreateRental handles POST /v1/dashboard/rentals.  The stall must be
// AVAILABLE; otherwise the result is OperationFailed.
func (h *DashboardHandler) CreateRental(c echo.Context) error {
	var req createRentalReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	starts, err := parseDate("starts_on", req.StartsOn)
	if err != nil {
		return h.fail(c, err)
	}
	ends, err := optionalDate("ends_on", req.EndsOn)
	if err != nil {
		return h.fail(c, err)
	}
	if ends != nil && ends.Before(starts) {
		return h.fail(c, invalidInput("ends_on must not be before starts_on"))
	}
	name := strings.TrimSpace(req.TenantName)
	if name == "" {
		return h.fail(c, missingField("tenant_name must not be blank"))
	}
	rt := &model.Rental{
		StallID:          req.StallID,
		TenantUserID:     req.TenantUserID,
		TenantName:       name,
		StartsOn:         starts,
		EndsOn:           ends,
		MonthlyRentCents: req.MonthlyRentCents,
	}
	if err := h.Rentals.Create(c.Request().Context(), rt); err != nil {
		return h.fail(c, err)
	}
	return created(c, rt)
}

// UpdateRental handles PUT/PATCH /v1/dashboard/rentals/:id.  Only the
// tenant name, rent and planned end date can change; an empty ends_on
// clears it.
func (h *DashboardHandler) UpdateRental(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req updateRentalReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	rt, err := h.ownedRental(c, id)
	if err != nil {
		return h.fail(c, err)
	}
	if rt.Status != model.RentalActive {
		return h.fail(c, repository.ErrConflict)
	}
	if req.TenantName != nil {
		if rt.TenantName = strings.TrimSpace(*req.TenantName); rt.TenantName == "" {
			return h.fail(c, missingField("tenant_name must not be blank"))
		}
	}
	if req.MonthlyRentCents != nil {
		rt.MonthlyRentCents = *req.MonthlyRentCents
	}
	if req.EndsOn != nil {
		ends, err := optionalDate("ends_on", *req.EndsOn)
		if err != nil {
			return h.fail(c, err)
		}
		if ends != nil && ends.Before(rt.StartsOn) {
			return h.fail(c, invalidInput("ends_on must not be before starts_on"))
		}
		rt.EndsOn = ends
	}
	if err := h.Rentals.UpdateTerms(c.Request().Context(), rt); err != nil {
		return h.fail(c, err)
	}
	return ok(c, rt)
}

// EndRental handles POST /v1/dashboard/rentals/:id/end.  ends_on defaults
// to today.  The stall becomes AVAILABLE again.
func (h *DashboardHandler) EndRental(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req endRentalReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	rt, err := h.ownedRental(c, id)
	if err != nil {
		return h.fail(c, err)
	}
	now := h.Now()
	endsOn := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if req.EndsOn != "" {
		if endsOn, err = parseDate("ends_on", req.EndsOn); err != nil {
			return h.fail(c, err)
		}
	}
	if endsOn.Before(rt.StartsOn) {
		return h.fail(c, invalidInput("ends_on must not be before starts_on"))
	}
	ended, err := h.Rentals.End(c.Request().Context(), id, endsOn)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, ended)
}

// DeleteRental handles DELETE /v1/dashboard/rentals/:id.  Rentals with
// payments answer OperationFailed.
func (h *DashboardHandler) DeleteRental(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Rentals.Delete(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	return ok(c, nil)
}
