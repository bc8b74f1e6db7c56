package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"salonbook/internal/models"
)

// MemoryIndex keeps the index in process memory. It serves single-instance
// deployments without redis and tests.
type MemoryIndex struct {
	mu    sync.RWMutex
	slots map[string]*models.AvailabilitySlot
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{slots: make(map[string]*models.AvailabilitySlot)}
}

func (m *MemoryIndex) Upsert(ctx context.Context, slot *models.AvailabilitySlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot.ID] = cloneSlot(slot)
	return nil
}

func (m *MemoryIndex) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.slots[id]
	delete(m.slots, id)
	return ok, nil
}

func (m *MemoryIndex) Get(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, nil
	}
	return cloneSlot(s), nil
}

func (m *MemoryIndex) Overlapping(ctx context.Context, start, end time.Time) ([]*models.AvailabilitySlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.AvailabilitySlot
	for _, s := range m.slots {
		if models.Overlaps(s.Start, s.End, start, end) {
			out = append(out, cloneSlot(s))
		}
	}
	sortSlots(out)
	return out, nil
}

func (m *MemoryIndex) ExpiredHeld(ctx context.Context, now time.Time, limit int) ([]*models.AvailabilitySlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.AvailabilitySlot
	for _, s := range m.slots {
		if s.ExpiredAt(now) {
			out = append(out, cloneSlot(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(*out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(*out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryIndex) IDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.slots))
	for id := range m.slots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func sortSlots(slots []*models.AvailabilitySlot) {
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Start.Equal(slots[j].Start) {
			return slots[i].Start.Before(slots[j].Start)
		}
		return slots[i].ID < slots[j].ID
	})
}
