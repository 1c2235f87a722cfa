package handler

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stall-dashboard/internal/middleware"
	"github.com/iliyamo/stall-dashboard/internal/model"
	"github.com/iliyamo/stall-dashboard/internal/rbac"
	"github.com/iliyamo/stall-dashboard/internal/repository"
)

type createStallReq struct {
	Code             string `json:"code" validate:"required,max=32"`
	Name             string `json:"name" validate:"required,max=128"`
	Location         string `json:"location" validate:"max=255"`
	MonthlyRentCents *int64 `json:"monthly_rent_cents" validate:"required,gte=0"`
	Status           string `json:"status" validate:"omitempty,oneof=AVAILABLE MAINTENANCE"`
}

// updateStallReq is used for both PUT and PATCH; absent fields are kept.
type updateStallReq struct {
	Code             *string `json:"code" validate:"omitempty,min=1,max=32"`
	Name             *string `json:"name" validate:"omitempty,min=1,max=128"`
	Location         *string `json:"location" validate:"omitempty,max=255"`
	MonthlyRentCents *int64  `json:"monthly_rent_cents" validate:"omitempty,gte=0"`
	Status           *string `json:"status" validate:"omitempty,oneof=AVAILABLE MAINTENANCE"`
}

// ListStalls handles GET /v1/dashboard/stalls?status=&q=&limit=&offset=.
func (h *DashboardHandler) ListStalls(c echo.Context) error {
	limit, offset, err := pageParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	f := model.StallFilter{
		Status: model.StallStatus(strings.ToUpper(c.QueryParam("status"))),
		Search: c.QueryParam("q"),
		Limit:  limit,
		Offset: offset,
	}
	switch f.Status {
	case "", model.StallAvailable, model.StallRented, model.StallMaintenance:
	default:
		return h.fail(c, invalidInput("unknown status filter"))
	}
	items, err := h.Stalls.List(c.Request().Context(), f)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, listResult[*model.Stall]{Items: items, Limit: limit, Offset: offset})
}

// GetStall handles GET /v1/dashboard/stalls/:id.
func (h *DashboardHandler) GetStall(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	s, err := h.Stalls.GetByID(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, s)
}

// CreateStall handles POST /v1/dashboard/stalls.  A reused code answers
// AlreadyExists.
func (h *DashboardHandler) CreateStall(c echo.Context) error {
	var req createStallReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	s := &model.Stall{
		Code:             strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:             strings.TrimSpace(req.Name),
		Location:         strings.TrimSpace(req.Location),
		MonthlyRentCents: *req.MonthlyRentCents,
		Status:           model.StallStatus(req.Status),
	}
	if s.Code == "" || s.Name == "" {
		return h.fail(c, missingField("code and name must not be blank"))
	}
	if err := h.Stalls.Create(c.Request().Context(), s); err != nil {
		return h.fail(c, err)
	}
	return created(c, s)
}

// rentsStall reports whether uid holds an ACTIVE rental on stallID.
func (h *DashboardHandler) rentsStall(ctx context.Context, stallID, uid uint64) (bool, error) {
	items, err := h.Rentals.List(ctx, model.RentalFilter{
		StallID:      stallID,
		TenantUserID: uid,
		Status:       model.RentalActive,
		Limit:        1,
	})
	return len(items) > 0, err
}

// UpdateStall handles PUT/PATCH /v1/dashboard/stalls/:id.  The RENTED
// status is owned by rentals and the store refuses to move a stall into or
// out of it.  Rental-role callers may only rename or relocate a stall they
// currently rent; other stalls answer NotFound.
func (h *DashboardHandler) UpdateStall(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req updateStallReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx := c.Request().Context()
	s, err := h.Stalls.GetByID(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	if uid, role, _ := middleware.CurrentUser(c); role == rbac.RoleRental {
		rents, err := h.rentsStall(ctx, id, uid)
		if err != nil {
			return h.fail(c, err)
		}
		if !rents {
			return h.fail(c, repository.ErrStallNotFound)
		}
		if req.Code != nil || req.MonthlyRentCents != nil || req.Status != nil {
			return h.fail(c, invalidInput("tenants may only change name and location"))
		}
	}
	if req.Code != nil {
		s.Code = strings.ToUpper(strings.TrimSpace(*req.Code))
	}
	if req.Name != nil {
		s.Name = strings.TrimSpace(*req.Name)
	}
	if req.Location != nil {
		s.Location = strings.TrimSpace(*req.Location)
	}
	if req.MonthlyRentCents != nil {
		s.MonthlyRentCents = *req.MonthlyRentCents
	}
	s.Status = ""
	if req.Status != nil {
		s.Status = model.StallStatus(*req.Status)
	}
	if s.Code == "" || s.Name == "" {
		return h.fail(c, missingField("code and name must not be blank"))
	}
	if err := h.Stalls.Update(ctx, s); err != nil {
		return h.fail(c, err)
	}
	return ok(c, s)
}

// DeleteStall handles DELETE /v1/dashboard/stalls/:id.  Stalls with an
// active rental or with history answer OperationFailed.
func (h *DashboardHandler) DeleteStall(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Stalls.Delete(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	return ok(c, nil)
}
