package model

import "time"

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentCard     PaymentMethod = "CARD"
)

// Payment is money received against a rental.  Reference is unique and
// generated when the client does not supply one.
type Payment struct {
	ID          uint64        `json:"id"`
	RentalID    uint64        `json:"rental_id"`
	AmountCents int64         `json:"amount_cents"`
	PaidOn      time.Time     `json:"paid_on"`
	Method      PaymentMethod `json:"method"`
	Reference   string        `json:"reference"`
	Note        string        `json:"note,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

type PaymentFilter struct {
	RentalID uint64
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}
