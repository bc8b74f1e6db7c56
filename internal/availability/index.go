// Package availability maintains the advisory read model of booked and held
// windows. It is derived from the authoritative store and never decides
// whether a booking may be written.
package availability

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/models"
)

// Index stores one AvailabilitySlot per live appointment or active hold,
// keyed by models.SlotID.
type Index interface {
	// Upsert fully overwrites the slot with the same id.
	Upsert(ctx context.Context, slot *models.AvailabilitySlot) error
	// Delete removes a slot and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	// Get returns nil, nil when the slot does not exist.
	Get(ctx context.Context, id string) (*models.AvailabilitySlot, error)
	Overlapping(ctx context.Context, start, end time.Time) ([]*models.AvailabilitySlot, error)
	// ExpiredHeld returns up to limit held slots whose expiry is not after now.
	ExpiredHeld(ctx context.Context, now time.Time, limit int) ([]*models.AvailabilitySlot, error)
	IDs(ctx context.Context) ([]string, error)
}

const (
	MutationUpsert = "upsert"
	MutationDelete = "delete"
)

// Mutation is one index write derived from a source change.
type Mutation struct {
	Kind string
	ID   string
	Slot *models.AvailabilitySlot
}

func upsert(slot *models.AvailabilitySlot) Mutation {
	return Mutation{Kind: MutationUpsert, ID: slot.ID, Slot: slot}
}

func remove(id string) Mutation {
	return Mutation{Kind: MutationDelete, ID: id}
}

// ApplyMutations writes mutations in order and stops at the first failure.
// Every mutation is idempotent, so a failed batch can be re-applied whole.
func ApplyMutations(ctx context.Context, idx Index, mutations []Mutation) error {
	for _, m := range mutations {
		switch m.Kind {
		case MutationUpsert:
			if err := idx.Upsert(ctx, m.Slot); err != nil {
				return err
			}
		case MutationDelete:
			if _, err := idx.Delete(ctx, m.ID); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown mutation kind %q", m.Kind)
		}
	}
	return nil
}

func cloneSlot(s *models.AvailabilitySlot) *models.AvailabilitySlot {
	c := *s
	if s.ExpiresAt != nil {
		exp := *s.ExpiresAt
		c.ExpiresAt = &exp
	}
	return &c
}
