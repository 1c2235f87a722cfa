package handler

import (
	"context"
	"time"

	"github.com/iliyamo/stall-dashboard/internal/model"
	"github.com/iliyamo/stall-dashboard/internal/queue"
)

// The store interfaces are satisfied by the repository types.

type StallStore interface {
	Create(ctx context.Context, s *model.Stall) error
	GetByID(ctx context.Context, id uint64) (*model.Stall, error)
	List(ctx context.Context, f model.StallFilter) ([]*model.Stall, error)
	Update(ctx context.Context, s *model.Stall) error
	Delete(ctx context.Context, id uint64) error
	CountByStatus(ctx context.Context) (map[model.StallStatus]int64, error)
}

type RentalStore interface {
	Create(ctx context.Context, rt *model.Rental) error
	GetByID(ctx context.Context, id uint64) (*model.Rental, error)
	List(ctx context.Context, f model.RentalFilter) ([]*model.Rental, error)
	UpdateTerms(ctx context.Context, rt *model.Rental) error
	End(ctx context.Context, id uint64, endsOn time.Time) (*model.Rental, error)
	Delete(ctx context.Context, id uint64) error
	CountActive(ctx context.Context) (int64, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByID(ctx context.Context, id uint64) (*model.Payment, error)
	List(ctx context.Context, f model.PaymentFilter) ([]*model.Payment, error)
	Delete(ctx context.Context, id uint64) error
	Totals(ctx context.Context, from, to time.Time) (count, cents int64, err error)
}

type ExpenseStore interface {
	Create(ctx context.Context, e *model.Expense) error
	CreateMany(ctx context.Context, es []*model.Expense) error
	GetByID(ctx context.Context, id uint64) (*model.Expense, error)
	List(ctx context.Context, f model.ExpenseFilter) ([]*model.Expense, error)
	Update(ctx context.Context, e *model.Expense) error
	Delete(ctx context.Context, id uint64) error
	Totals(ctx context.Context, from, to time.Time) (count, cents int64, err error)
}

type UserStore interface {
	Create(ctx context.Context, email, password, role string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdateRole(ctx context.Context, id uint64, role string) error
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	Rotate(ctx context.Context, oldHash string, userID uint64, newHash string, exp time.Time) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// EventPublisher delivers domain events.  Publishing is best effort.
type EventPublisher interface {
	PublishPaymentRecorded(ctx context.Context, ev queue.PaymentRecordedEvent) error
}
