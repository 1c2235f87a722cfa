package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/stall-dashboard/internal/model"
)

type PaymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = "id, rental_id, amount_cents, paid_on, method, reference, note, created_at"

func scanPayment(sc interface{ Scan(...any) error }) (*model.Payment, error) {
	p := new(model.Payment)
	if err := sc.Scan(&p.ID, &p.RentalID, &p.AmountCents, &p.PaidOn, &p.Method, &p.Reference, &p.Note, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// Create records a payment.  The rental must exist; a reused reference
// returns ErrDuplicate.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	var exists int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rentals WHERE id = ?", p.RentalID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrRentalNotFound
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO payments (rental_id, amount_cents, paid_on, method, reference, note) VALUES (?, ?, ?, ?, ?, ?)",
		p.RentalID, p.AmountCents, p.PaidOn, p.Method, p.Reference, p.Note)
	if err != nil {
		return fmt.Errorf("insert payment: %w", translate(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*p = *fresh
	return nil
}

func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

func paymentWhere(f model.PaymentFilter) *where {
	w := &where{}
	if f.RentalID != 0 {
		w.add("rental_id = ?", f.RentalID)
	}
	if f.From != nil {
		w.add("paid_on >= ?", *f.From)
	}
	if f.To != nil {
		w.add("paid_on <= ?", *f.To)
	}
	return w
}

// List returns payments matching f, most recent first.
func (r *PaymentRepo) List(ctx context.Context, f model.PaymentFilter) ([]*model.Payment, error) {
	w := paymentWhere(f)
	limit, offset := page(f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+paymentColumns+" FROM payments"+w.String()+" ORDER BY paid_on DESC, id DESC LIMIT ? OFFSET ?",
		append(w.args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PaymentRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// Totals returns the count and sum of payments made within [from, to].
func (r *PaymentRepo) Totals(ctx context.Context, from, to time.Time) (count, cents int64, err error) {
	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(amount_cents), 0) FROM payments WHERE paid_on BETWEEN ? AND ?",
		from, to).Scan(&count, &cents)
	return count, cents, err
}
