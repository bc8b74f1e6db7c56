package models

import "time"

// AvailabilitySlot mirrors a live appointment or active hold in the read index.
// ID is the index key built by SlotID; SourceID is the mirrored document id.
type AvailabilitySlot struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	SourceID  string     `json:"source_id"`
	Start     time.Time  `json:"start"`
	End       time.Time  `json:"end"`
	Status    string     `json:"status"` // held, booked
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// SlotID keys a source document in the index. Hold ids come from clients,
// so each source gets its own key space.
func SlotID(source, id string) string {
	return source + ":" + id
}

// ExpiredAt reports whether a held slot outlived its hold.
func (s *AvailabilitySlot) ExpiredAt(now time.Time) bool {
	return s.Status == SlotHeld && s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// SweepResult summarises one expiry sweep.
type SweepResult struct {
	HoldsReleased int `json:"holds_released"`
	SlotsDeleted  int `json:"slots_deleted"`
}

// ResyncResult summarises one index backfill.
type ResyncResult struct {
	Upserted int `json:"upserted"`
	Deleted  int `json:"deleted"`
}
