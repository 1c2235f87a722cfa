package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/stall-dashboard/internal/model"
)

type ExpenseRepo struct {
	db *sql.DB
}

func NewExpenseRepo(db *sql.DB) *ExpenseRepo { return &ExpenseRepo{db: db} }

const expenseColumns = "id, stall_id, category, amount_cents, spent_on, description, created_at, updated_at"

func scanExpense(sc interface{ Scan(...any) error }) (*model.Expense, error) {
	var (
		e     model.Expense
		stall sql.NullInt64
	)
	if err := sc.Scan(&e.ID, &stall, &e.Category, &e.AmountCents, &e.SpentOn, &e.Description, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if stall.Valid {
		id := uint64(stall.Int64)
		e.StallID = &id
	}
	return &e, nil
}

// Create inserts an expense.  A stall_id that does not exist is reported
// as ErrStallNotFound.
func (r *ExpenseRepo) Create(ctx context.Context, e *model.Expense) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO expenses (stall_id, category, amount_cents, spent_on, description) VALUES (?, ?, ?, ?, ?)",
		nullableID(e.StallID), e.Category, e.AmountCents, e.SpentOn, e.Description)
	if err != nil {
		if err = translate(err); errors.Is(err, ErrConflict) {
			return ErrStallNotFound
		}
		return fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*e = *fresh
	return nil
}

// CreateMany inserts every expense in one transaction; if any insert fails
// none are stored.
func (r *ExpenseRepo) CreateMany(ctx context.Context, es []*model.Expense) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO expenses (stall_id, category, amount_cents, spent_on, description) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	fresh := make([]*model.Expense, len(es))
	for i, e := range es {
		res, err := stmt.ExecContext(ctx, nullableID(e.StallID), e.Category, e.AmountCents, e.SpentOn, e.Description)
		if err != nil {
			if err = translate(err); errors.Is(err, ErrConflict) {
				return fmt.Errorf("expense %d: %w", i+1, ErrStallNotFound)
			}
			return fmt.Errorf("insert expense %d: %w", i+1, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if fresh[i], err = scanExpense(tx.QueryRowContext(ctx,
			"SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id)); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	for i := range es {
		*es[i] = *fresh[i]
	}
	return nil
}

func (r *ExpenseRepo) GetByID(ctx context.Context, id uint64) (*model.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExpenseNotFound
	}
	return e, err
}

func (r *ExpenseRepo) List(ctx context.Context, f model.ExpenseFilter) ([]*model.Expense, error) {
	var w where
	if f.StallID != 0 {
		w.add("stall_id = ?", f.StallID)
	}
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}
	if f.From != nil {
		w.add("spent_on >= ?", *f.From)
	}
	if f.To != nil {
		w.add("spent_on <= ?", *f.To)
	}
	limit, offset := page(f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses"+w.String()+" ORDER BY spent_on DESC, id DESC LIMIT ? OFFSET ?",
		append(w.args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *ExpenseRepo) Update(ctx context.Context, e *model.Expense) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET stall_id = ?, category = ?, amount_cents = ?, spent_on = ?, description = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nullableID(e.StallID), e.Category, e.AmountCents, e.SpentOn, e.Description, e.ID)
	if err != nil {
		if err = translate(err); errors.Is(err, ErrConflict) {
			return ErrStallNotFound
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, e.ID); err != nil {
			return err
		}
	}
	fresh, err := r.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	*e = *fresh
	return nil
}

func (r *ExpenseRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

// Totals returns the count and sum of expenses within [from, to].
func (r *ExpenseRepo) Totals(ctx context.Context, from, to time.Time) (count, cents int64, err error) {
	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(amount_cents), 0) FROM expenses WHERE spent_on BETWEEN ? AND ?",
		from, to).Scan(&count, &cents)
	return count, cents, err
}
