package model

import "time"

// Expense is money spent on the market, optionally attributed to a stall.
type Expense struct {
	ID          uint64    `json:"id"`
	StallID     *uint64   `json:"stall_id,omitempty"`
	Category    string    `json:"category"`
	AmountCents int64     `json:"amount_cents"`
	SpentOn     time.Time `json:"spent_on"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ExpenseFilter struct {
	StallID  uint64
	Category string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// Summary is the dashboard overview for a date range.
type Summary struct {
	From           time.Time             `json:"from"`
	To             time.Time             `json:"to"`
	StallsByStatus map[StallStatus]int64 `json:"stalls_by_status"`
	ActiveRentals  int64                 `json:"active_rentals"`
	PaymentsCents  int64                 `json:"payments_cents"`
	ExpensesCents  int64                 `json:"expenses_cents"`
	NetCents       int64                 `json:"net_cents"`
	PaymentCount   int64                 `json:"payment_count"`
	ExpenseCount   int64                 `json:"expense_count"`
}
