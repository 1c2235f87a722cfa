package model

import "time"

// StallStatus is the occupancy state of a stall.
type StallStatus string

const (
	StallAvailable   StallStatus = "AVAILABLE"
	StallRented      StallStatus = "RENTED"
	StallMaintenance StallStatus = "MAINTENANCE"
)

// Stall is a rentable unit.  Code is the unique label painted on the stall
// (e.g. "A-12").
type Stall struct {
	ID               uint64      `json:"id"`
	Code             string      `json:"code"`
	Name             string      `json:"name"`
	Location         string      `json:"location"`
	MonthlyRentCents int64       `json:"monthly_rent_cents"`
	Status           StallStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// StallFilter narrows stall listings.  Empty fields are ignored.
type StallFilter struct {
	Status StallStatus
	Search string // matched against code and name
	Limit  int
	Offset int
}
