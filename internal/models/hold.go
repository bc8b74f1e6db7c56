package models

import "time"

// Hold is a short-lived reservation of a window. ID is the client idempotency key.
type Hold struct {
	ID              string     `json:"id"`
	ServiceID       string     `json:"service_id,omitempty"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"` // active, released
	ExpiresAt       time.Time  `json:"expires_at"`
	CreatedAt       time.Time  `json:"created_at"`
	ReleasedAt      *time.Time `json:"released_at,omitempty"`
	ReleaseReason   string     `json:"release_reason,omitempty"`
	AppointmentID   string     `json:"appointment_id,omitempty"`
}

// ActiveAt reports whether the hold still reserves its window at now.
func (h *Hold) ActiveAt(now time.Time) bool {
	return h.Status == HoldActive && h.ExpiresAt.After(now)
}

// SameWindow reports whether another request targets the same window.
func (h *Hold) SameWindow(start time.Time, durationMinutes int) bool {
	return h.Start.Equal(start) && h.DurationMinutes == durationMinutes
}
