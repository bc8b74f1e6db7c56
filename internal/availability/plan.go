package availability

import (
	"encoding/json"
	"fmt"

	"salonbook/internal/models"
)

// PlanAppointment maps an appointment write to index mutations. A live
// appointment is mirrored as a booked slot; a cancelled or vanished one
// loses its slot.
func PlanAppointment(before, after *models.Appointment) []Mutation {
	if after == nil {
		if before == nil {
			return nil
		}
		return []Mutation{remove(appointmentSlotID(before.ID))}
	}
	if !after.IsLive() {
		return []Mutation{remove(appointmentSlotID(after.ID))}
	}
	return []Mutation{upsert(&models.AvailabilitySlot{
		ID:        appointmentSlotID(after.ID),
		Source:    models.SourceAppointment,
		SourceID:  after.ID,
		Start:     after.Start,
		End:       after.End,
		Status:    models.SlotBooked,
		CreatedAt: after.CreatedAt,
	})}
}

// PlanAppointmentDeleted handles hard deletes, which carry no snapshots.
func PlanAppointmentDeleted(id string) []Mutation {
	return []Mutation{remove(appointmentSlotID(id))}
}

// PlanHold mirrors an active hold as a held slot and drops it otherwise.
func PlanHold(before, after *models.Hold) []Mutation {
	if after == nil {
		if before == nil {
			return nil
		}
		return []Mutation{remove(holdSlotID(before.ID))}
	}
	if after.Status != models.HoldActive {
		return []Mutation{remove(holdSlotID(after.ID))}
	}
	expires := after.ExpiresAt
	return []Mutation{upsert(&models.AvailabilitySlot{
		ID:        holdSlotID(after.ID),
		Source:    models.SourceHold,
		SourceID:  after.ID,
		Start:     after.Start,
		End:       after.End,
		Status:    models.SlotHeld,
		ExpiresAt: &expires,
		CreatedAt: after.CreatedAt,
	})}
}

func appointmentSlotID(id string) string { return models.SlotID(models.SourceAppointment, id) }
func holdSlotID(id string) string        { return models.SlotID(models.SourceHold, id) }

// PlanChange decodes a recorded change event and plans its mutations.
func PlanChange(change models.ChangeEvent) ([]Mutation, error) {
	switch change.Collection {
	case models.CollectionAppointments:
		if change.Op == models.ChangeDelete {
			return PlanAppointmentDeleted(change.DocumentID), nil
		}
		var before, after *models.Appointment
		if err := decodeSnapshot(change.Before, &before); err != nil {
			return nil, err
		}
		if err := decodeSnapshot(change.After, &after); err != nil {
			return nil, err
		}
		return PlanAppointment(before, after), nil

	case models.CollectionHolds:
		if change.Op == models.ChangeDelete {
			return []Mutation{remove(holdSlotID(change.DocumentID))}, nil
		}
		var before, after *models.Hold
		if err := decodeSnapshot(change.Before, &before); err != nil {
			return nil, err
		}
		if err := decodeSnapshot(change.After, &after); err != nil {
			return nil, err
		}
		return PlanHold(before, after), nil
	}
	return nil, fmt.Errorf("unknown collection %q", change.Collection)
}

func decodeSnapshot[T any](raw json.RawMessage, dst **T) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	*dst = &v
	return nil
}
