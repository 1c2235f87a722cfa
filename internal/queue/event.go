// Package queue defines the payment events exchanged over RabbitMQ and the
// consumer that writes them to the payment log.
package queue

// PaymentRecordedEvent is published after a payment is stored.  It carries
// enough context for consumers to log or notify without querying the
// database.
type PaymentRecordedEvent struct {
	PaymentID   uint64 `json:"payment_id"`
	RentalID    uint64 `json:"rental_id"`
	StallID     uint64 `json:"stall_id"`
	StallCode   string `json:"stall_code"`
	TenantName  string `json:"tenant_name"`
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
	Reference   string `json:"reference"`
	PaidOn      string `json:"paid_on"`
	RecordedBy  uint64 `json:"recorded_by"`
	RecordedAt  string `json:"recorded_at"`
}
