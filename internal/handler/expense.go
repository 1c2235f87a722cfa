package handler

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stall-dashboard/internal/model"
)

const (
	maxImportRows  = 1000
	maxImportBytes = 1 << 20
)

type createExpenseReq struct {
	StallID     *uint64 `json:"stall_id" validate:"omitempty,gt=0"`
	Category    string  `json:"category" validate:"required,max=64"`
	AmountCents int64   `json:"amount_cents" validate:"required,gt=0"`
	SpentOn     string  `json:"spent_on" validate:"required"`
	Description string  `json:"description" validate:"max=255"`
}

type updateExpenseReq struct {
	StallID     *uint64 `json:"stall_id" validate:"omitempty,gte=0"`
	Category    *string `json:"category" validate:"omitempty,min=1,max=64"`
	AmountCents *int64  `json:"amount_cents" validate:"omitempty,gt=0"`
	SpentOn     *string `json:"spent_on"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

// expenseRow is one line of an expense CSV upload.
type expenseRow struct {
	StallID     uint64 `csv:"stall_id" validate:"omitempty,gt=0"`
	Category    string `csv:"category" validate:"required,max=64"`
	AmountCents int64  `csv:"amount_cents" validate:"required,gt=0"`
	SpentOn     string `csv:"spent_on" validate:"required"`
	Description string `csv:"description" validate:"max=255"`
}

type importResult struct {
	Created int              `json:"created"`
	Items   []*model.Expense `json:"items"`
}

// ListExpenses handles GET /v1/dashboard/expenses?stall_id=&category=&from=&to=.
func (h *DashboardHandler) ListExpenses(c echo.Context) error {
	var (
		f   model.ExpenseFilter
		err error
	)
	if f.Limit, f.Offset, err = pageParams(c); err != nil {
		return h.fail(c, err)
	}
	if f.StallID, err = queryUint(c, "stall_id"); err != nil {
		return h.fail(c, err)
	}
	if f.From, err = optionalDate("from", c.QueryParam("from")); err != nil {
		return h.fail(c, err)
	}
	if f.To, err = optionalDate("to", c.QueryParam("to")); err != nil {
		return h.fail(c, err)
	}
	f.Category = strings.TrimSpace(c.QueryParam("category"))

	items, err := h.Expenses.List(c.Request().Context(), f)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, listResult[*model.Expense]{Items: items, Limit: f.Limit, Offset: f.Offset})
}

// GetExpense handles GET /v1/dashboard/expenses/:id.
func (h *DashboardHandler) GetExpense(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	e, err := h.Expenses.GetByID(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, e)
}

// CreateExpense handles POST /v1/dashboard/expenses.
func (h *DashboardHandler) CreateExpense(c echo.Context) error {
	var req createExpenseReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	spent, err := parseDate("spent_on", req.SpentOn)
	if err != nil {
		return h.fail(c, err)
	}
	e := &model.Expense{
		StallID:     req.StallID,
		Category:    strings.TrimSpace(req.Category),
		AmountCents: req.AmountCents,
		SpentOn:     spent,
		Description: strings.TrimSpace(req.Description),
	}
	if e.Category == "" {
		return h.fail(c, missingField("category must not be blank"))
	}
	if err := h.Expenses.Create(c.Request().Context(), e); err != nil {
		return h.fail(c, err)
	}
	return created(c, e)
}

// UpdateExpense handles PUT/PATCH /v1/dashboard/expenses/:id.  A stall_id
// of 0 detaches the expense from its stall.
func (h *DashboardHandler) UpdateExpense(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req updateExpenseReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx := c.Request().Context()
	e, err := h.Expenses.GetByID(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	if req.StallID != nil {
		if *req.StallID == 0 {
			e.StallID = nil
		} else {
			e.StallID = req.StallID
		}
	}
	if req.Category != nil {
		if e.Category = strings.TrimSpace(*req.Category); e.Category == "" {
			return h.fail(c, missingField("category must not be blank"))
		}
	}
	if req.AmountCents != nil {
		e.AmountCents = *req.AmountCents
	}
	if req.SpentOn != nil {
		if e.SpentOn, err = parseDate("spent_on", *req.SpentOn); err != nil {
			return h.fail(c, err)
		}
	}
	if req.Description != nil {
		e.Description = strings.TrimSpace(*req.Description)
	}
	if err := h.Expenses.Update(ctx, e); err != nil {
		return h.fail(c, err)
	}
	return ok(c, e)
}

// DeleteExpense handles DELETE /v1/dashboard/expenses/:id.
func (h *DashboardHandler) DeleteExpense(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Expenses.Delete(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	return ok(c, nil)
}

// ImportExpenses handles POST /v1/dashboard/expenses/import, a multipart
// upload with a CSV "file" field of at most maxImportBytes.  Every row is
// validated before any is stored, and the rows are stored together or not
// at all.
func (h *DashboardHandler) ImportExpenses(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return h.fail(c, missingField("missing required field: file"))
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".csv") {
		return h.fail(c, invalidInput("file must be a .csv file"))
	}
	if fh.Size > maxImportBytes {
		return h.fail(c, invalidInput(fmt.Sprintf("csv file is larger than %d bytes", maxImportBytes)))
	}
	f, err := fh.Open()
	if err != nil {
		return h.fail(c, err)
	}
	defer f.Close()

	var rows []expenseRow
	if err := gocsv.Unmarshal(io.LimitReader(f, maxImportBytes), &rows); err != nil {
		return h.fail(c, invalidInput("malformed csv: "+err.Error()))
	}
	if len(rows) == 0 {
		return h.fail(c, invalidInput("csv file has no data rows"))
	}
	if len(rows) > maxImportRows {
		return h.fail(c, invalidInput(fmt.Sprintf("csv file has more than %d rows", maxImportRows)))
	}

	expenses := make([]*model.Expense, 0, len(rows))
	for i, row := range rows {
		if err := c.Validate(&row); err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				o, msg := validationOutcome(ve)
				return respond(c, httpStatusFor(o), o, fmt.Sprintf("row %d: %s", i+2, msg), nil)
			}
			return h.fail(c, invalidInput(fmt.Sprintf("row %d: %v", i+2, err)))
		}
		spent, err := parseDate("spent_on", row.SpentOn)
		if err != nil {
			return h.fail(c, invalidInput(fmt.Sprintf("row %d: %v", i+2, err)))
		}
		e := &model.Expense{
			Category:    strings.TrimSpace(row.Category),
			AmountCents: row.AmountCents,
			SpentOn:     spent,
			Description: strings.TrimSpace(row.Description),
		}
		if row.StallID != 0 {
			id := row.StallID
			e.StallID = &id
		}
		expenses = append(expenses, e)
	}

	if err := h.Expenses.CreateMany(c.Request().Context(), expenses); err != nil {
		return h.fail(c, err)
	}
	return created(c, importResult{Created: len(expenses), Items: expenses})
}
