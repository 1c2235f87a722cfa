package model

import "time"

type RentalStatus string

const (
	RentalActive RentalStatus = "ACTIVE"
	RentalEnded  RentalStatus = "ENDED"
)

// Rental binds a tenant to a stall for a period.  While a rental is ACTIVE
// its stall is RENTED.
type Rental struct {
	ID               uint64       `json:"id"`
	StallID          uint64       `json:"stall_id"`
	TenantUserID     *uint64      `json:"tenant_user_id,omitempty"`
	TenantName       string       `json:"tenant_name"`
	StartsOn         time.Time    `json:"starts_on"`
	EndsOn           *time.Time   `json:"ends_on,omitempty"`
	MonthlyRentCents int64        `json:"monthly_rent_cents"`
	Status           RentalStatus `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

type RentalFilter struct {
	StallID      uint64
	TenantUserID uint64
	Status       RentalStatus
	Limit        int
	Offset       int
}
