package models

import "time"

// Booking occupies [Time, Time+DurationMinutes) on Date.
type Booking struct {
	ID              int64     `json:"id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
	ServiceName     string    `json:"service"`
	ClientID        *int64    `json:"client_id,omitempty"`
	ClientName      string    `json:"client_name"`
	ClientPhone     string    `json:"client_phone,omitempty"`
	HomeService     bool      `json:"home_service"`
	Source          string    `json:"source"`
	CreatedAt       time.Time `json:"created_at"`
}

// IsBlock reports whether the booking is an administrator closure.
func (b *Booking) IsBlock() bool {
	return b.ClientName == BlockedName
}
