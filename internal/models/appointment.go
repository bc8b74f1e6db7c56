package models

import "time"

// Appointment is the authoritative booking record.
type Appointment struct {
	ID               string     `json:"id"`
	CustomerID       string     `json:"customer_id"`
	ServiceID        string     `json:"service_id"`
	HoldID           string     `json:"hold_id,omitempty"`
	Start            time.Time  `json:"start"`
	End              time.Time  `json:"end"`
	DurationMinutes  int        `json:"duration_minutes"`
	Status           string     `json:"status"`     // pending, confirmed, cancelled, completed
	Attendance       string     `json:"attendance"` // pending, attended, no-show
	BookedPriceCents int64      `json:"booked_price_cents"`
	TipCents         int64      `json:"tip_cents"`
	TotalPriceCents  int64      `json:"total_price_cents"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
}

// IsLive reports whether the appointment still occupies its window.
func (a *Appointment) IsLive() bool {
	return a.Status != StatusCancelled
}

// ConfirmInput carries everything needed to write an appointment.
// When HoldID is set, a zero Start or DurationMinutes is taken from the hold.
type ConfirmInput struct {
	HoldID          string    `json:"hold_id,omitempty"`
	CustomerID      string    `json:"customer_id"`
	ServiceID       string    `json:"service_id"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	TipCents        int64     `json:"tip_cents,omitempty"`
	AdminOverride   bool      `json:"admin_override,omitempty"`
}

// HoldRequest asks for a hold on [Start, Start+DurationMinutes).
type HoldRequest struct {
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	IdempotencyKey  string    `json:"idempotency_key"`
	ServiceID       string    `json:"service_id,omitempty"`
}

// Customer is a person who books appointments.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Service is a bookable catalogue entry. Prices are in minor currency units.
type Service struct {
	ID              string    `json:"id" yaml:"id"`
	Name            string    `json:"name" yaml:"name"`
	Category        string    `json:"category" yaml:"category"`
	PriceCents      int64     `json:"price_cents" yaml:"price_cents"`
	DurationMinutes int       `json:"duration_minutes" yaml:"duration_minutes"`
	Active          bool      `json:"active" yaml:"active"`
	CreatedAt       time.Time `json:"created_at" yaml:"-"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"-"`
}

// Overlaps reports whether half-open windows [aStart,aEnd) and [bStart,bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
