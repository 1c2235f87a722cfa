package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/stall-dashboard/internal/model"
)

// RentalRepo manages `rentals` and keeps the owning stall's status in step.
type RentalRepo struct {
	db *sql.DB
}

func NewRentalRepo(db *sql.DB) *RentalRepo { return &RentalRepo{db: db} }

const rentalColumns = "id, stall_id, tenant_user_id, tenant_name, starts_on, ends_on, monthly_rent_cents, status, created_at, updated_at"

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanRental(sc interface{ Scan(...any) error }) (*model.Rental, error) {
	var (
		rt     model.Rental
		tenant sql.NullInt64
		ends   sql.NullTime
	)
	if err := sc.Scan(&rt.ID, &rt.StallID, &tenant, &rt.TenantName, &rt.StartsOn, &ends,
		&rt.MonthlyRentCents, &rt.Status, &rt.CreatedAt, &rt.UpdatedAt); err != nil {
		return nil, err
	}
	if tenant.Valid {
		id := uint64(tenant.Int64)
		rt.TenantUserID = &id
	}
	if ends.Valid {
		t := ends.Time
		rt.EndsOn = &t
	}
	return &rt, nil
}

func nullableID(p *uint64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}

func getRental(ctx context.Context, q queryer, id uint64, lock bool) (*model.Rental, error) {
	query := "SELECT " + rentalColumns + " FROM rentals WHERE id = ?"
	if lock {
		query += " FOR UPDATE"
	}
	rt, err := scanRental(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRentalNotFound
	}
	return rt, err
}

// Create opens a rental on an available stall and marks the stall RENTED.
// Renting a stall that is not AVAILABLE returns ErrConflict.  When
// rt.MonthlyRentCents is zero the stall's rent is used.
func (r *RentalRepo) Create(ctx context.Context, rt *model.Rental) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var (
		st   model.StallStatus
		rent int64
	)
	if err = tx.QueryRowContext(ctx,
		"SELECT status, monthly_rent_cents FROM stalls WHERE id = ? FOR UPDATE", rt.StallID).Scan(&st, &rent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStallNotFound
		}
		return err
	}
	if st != model.StallAvailable {
		return ErrConflict
	}
	if rt.MonthlyRentCents == 0 {
		rt.MonthlyRentCents = rent
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO rentals (stall_id, tenant_user_id, tenant_name, starts_on, ends_on, monthly_rent_cents, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rt.StallID, nullableID(rt.TenantUserID), rt.TenantName, rt.StartsOn, nullableTime(rt.EndsOn),
		rt.MonthlyRentCents, model.RentalActive)
	if err != nil {
		return fmt.Errorf("insert rental: %w", translate(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		"UPDATE stalls SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", model.StallRented, rt.StallID); err != nil {
		return err
	}
	fresh, err := getRental(ctx, tx, uint64(id), false)
	if err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	*rt = *fresh
	return nil
}

func (r *RentalRepo) GetByID(ctx context.Context, id uint64) (*model.Rental, error) {
	return getRental(ctx, r.db, id, false)
}

// List returns rentals matching f, newest first.
func (r *RentalRepo) List(ctx context.Context, f model.RentalFilter) ([]*model.Rental, error) {
	var w where
	if f.StallID != 0 {
		w.add("stall_id = ?", f.StallID)
	}
	if f.TenantUserID != 0 {
		w.add("tenant_user_id = ?", f.TenantUserID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	limit, offset := page(f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+rentalColumns+" FROM rentals"+w.String()+" ORDER BY starts_on DESC, id DESC LIMIT ? OFFSET ?",
		append(w.args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Rental{}
	for rows.Next() {
		rt, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

// UpdateTerms changes the tenant name, rent and planned end date.
func (r *RentalRepo) UpdateTerms(ctx context.Context, rt *model.Rental) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rentals SET tenant_name = ?, monthly_rent_cents = ?, ends_on = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		rt.TenantName, rt.MonthlyRentCents, nullableTime(rt.EndsOn), rt.ID)
	if err != nil {
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, rt.ID); err != nil {
			return err
		}
	}
	fresh, err := r.GetByID(ctx, rt.ID)
	if err != nil {
		return err
	}
	*rt = *fresh
	return nil
}

// End closes an active rental on endsOn and frees its stall.  Ending a
// rental that is already ENDED returns ErrConflict.
func (r *RentalRepo) End(ctx context.Context, id uint64, endsOn time.Time) (rt *model.Rental, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cur, err := getRental(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if cur.Status != model.RentalActive {
		return nil, ErrConflict
	}
	if _, err = tx.ExecContext(ctx,
		"UPDATE rentals SET status = ?, ends_on = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		model.RentalEnded, endsOn, id); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx,
		"UPDATE stalls SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?",
		model.StallAvailable, cur.StallID, model.StallRented); err != nil {
		return nil, err
	}
	if rt, err = getRental(ctx, tx, id, false); err != nil {
		return nil, err
	}
	return rt, tx.Commit()
}

// Delete removes a rental without payments.  Deleting an active rental
// frees its stall.
func (r *RentalRepo) Delete(ctx context.Context, id uint64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cur, err := getRental(ctx, tx, id, true)
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM rentals WHERE id = ?", id); err != nil {
		return translate(err)
	}
	if cur.Status == model.RentalActive {
		if _, err = tx.ExecContext(ctx,
			"UPDATE stalls SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?",
			model.StallAvailable, cur.StallID, model.StallRented); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *RentalRepo) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rentals WHERE status = ?", model.RentalActive).Scan(&n)
	return n, err
}
