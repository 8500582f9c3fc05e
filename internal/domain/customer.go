package domain

import "time"

// Customer is a row of the tenant's customer roster. The roster belongs to
// the booking application; this module only reads it.
type Customer struct {
	ID            string     `json:"id" db:"id"`
	TenantID      string     `json:"tenant_id" db:"tenant_id"`
	Name          string     `json:"name" db:"name"`
	Phone         string     `json:"phone" db:"phone"`
	LastBookingAt *time.Time `json:"last_booking_at,omitempty" db:"last_booking_at"`
}

// Recipient is a resolved campaign target: a normalized phone and the name
// used for personalization.
type Recipient struct {
	CustomerID string `json:"customer_id"`
	Phone      string `json:"phone"`
	Name       string `json:"name"`
}

// Service is a bookable service a campaign may promote.
type Service struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Name     string `json:"name" db:"name"`
}
