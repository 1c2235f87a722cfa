package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/stall-dashboard/internal/model"
)

// StallRepo encapsulates queries on the `stalls` table.
type StallRepo struct {
	db *sql.DB
}

func NewStallRepo(db *sql.DB) *StallRepo { return &StallRepo{db: db} }

const stallColumns = "id, code, name, location, monthly_rent_cents, status, created_at, updated_at"

func scanStall(sc interface{ Scan(...any) error }) (*model.Stall, error) {
	s := new(model.Stall)
	if err := sc.Scan(&s.ID, &s.Code, &s.Name, &s.Location, &s.MonthlyRentCents, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts s and refreshes it from the database so defaults and
// timestamps are populated.
func (r *StallRepo) Create(ctx context.Context, s *model.Stall) error {
	if s.Status == "" {
		s.Status = model.StallAvailable
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO stalls (code, name, location, monthly_rent_cents, status) VALUES (?, ?, ?, ?, ?)",
		s.Code, s.Name, s.Location, s.MonthlyRentCents, s.Status)
	if err != nil {
		return fmt.Errorf("insert stall: %w", translate(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*s = *fresh
	return nil
}

func (r *StallRepo) GetByID(ctx context.Context, id uint64) (*model.Stall, error) {
	s, err := scanStall(r.db.QueryRowContext(ctx, "SELECT "+stallColumns+" FROM stalls WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStallNotFound
	}
	return s, err
}

// List returns stalls matching f ordered by code.
func (r *StallRepo) List(ctx context.Context, f model.StallFilter) ([]*model.Stall, error) {
	var w where
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		like := "%" + q + "%"
		w.add("(code LIKE ? OR name LIKE ?)", like, like)
	}
	limit, offset := page(f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+stallColumns+" FROM stalls"+w.String()+" ORDER BY code LIMIT ? OFFSET ?",
		append(w.args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Stall{}
	for rows.Next() {
		s, err := scanStall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Update overwrites the editable columns of s.  An empty s.Status keeps
// the current status.  RENTED is owned by rentals, so moving a stall into
// or out of RENTED returns ErrConflict; the check runs under the same row
// lock RentalRepo.Create takes.
func (r *StallRepo) Update(ctx context.Context, s *model.Stall) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var cur model.StallStatus
	if err = tx.QueryRowContext(ctx, "SELECT status FROM stalls WHERE id = ? FOR UPDATE", s.ID).Scan(&cur); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStallNotFound
		}
		return err
	}
	next := cur
	if s.Status != "" && s.Status != cur {
		if cur == model.StallRented || s.Status == model.StallRented {
			return ErrConflict
		}
		next = s.Status
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE stalls
		 SET code = ?, name = ?, location = ?, monthly_rent_cents = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		s.Code, s.Name, s.Location, s.MonthlyRentCents, next, s.ID); err != nil {
		return fmt.Errorf("update stall: %w", translate(err))
	}
	fresh, err := scanStall(tx.QueryRowContext(ctx, "SELECT "+stallColumns+" FROM stalls WHERE id = ?", s.ID))
	if err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	*s = *fresh
	return nil
}

// Delete removes a stall.  A stall with an active rental is refused with
// ErrConflict; ended rentals and their payments block deletion through the
// foreign keys, which also surfaces as ErrConflict.
func (r *StallRepo) Delete(ctx context.Context, id uint64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var st model.StallStatus
	if err = tx.QueryRowContext(ctx, "SELECT status FROM stalls WHERE id = ? FOR UPDATE", id).Scan(&st); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStallNotFound
		}
		return err
	}
	var active int
	if err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM rentals WHERE stall_id = ? AND status = ?", id, model.RentalActive).Scan(&active); err != nil {
		return err
	}
	if active > 0 {
		return ErrConflict
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM stalls WHERE id = ?", id); err != nil {
		return translate(err)
	}
	return tx.Commit()
}

// CountByStatus returns the number of stalls per status.
func (r *StallRepo) CountByStatus(ctx context.Context) (map[model.StallStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM stalls GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[model.StallStatus]int64{
		model.StallAvailable:   0,
		model.StallRented:      0,
		model.StallMaintenance: 0,
	}
	for rows.Next() {
		var st model.StallStatus
		var n int64
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, rows.Err()
}
