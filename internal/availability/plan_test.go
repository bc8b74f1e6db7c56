package availability

import (
	"context"
	"encoding/json"
	"testing"

	"salonbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanAppointment(t *testing.T) {
	live := &models.Appointment{ID: "a1", Start: at(10, 0), End: at(10, 45), Status: models.StatusConfirmed, CreatedAt: at(8, 0)}
	cancelled := *live
	cancelled.Status = models.StatusCancelled
	completed := *live
	completed.Status = models.StatusCompleted

	tests := []struct {
		name   string
		before *models.Appointment
		after  *models.Appointment
		want   []Mutation
	}{
		{name: "nothing", want: nil},
		{
			name:  "created",
			after: live,
			want:  []Mutation{upsert(mirrored(bookedSlot("a1", at(10, 0), at(10, 45))))},
		},
		{
			name:   "completed stays booked",
			before: live,
			after:  &completed,
			want:   []Mutation{upsert(mirrored(bookedSlot("a1", at(10, 0), at(10, 45))))},
		},
		{name: "cancelled", before: live, after: &cancelled, want: []Mutation{remove("appointment:a1")}},
		{name: "deleted with snapshot", before: live, want: []Mutation{remove("appointment:a1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlanAppointment(tt.before, tt.after))
		})
	}
}

func TestPlanHold(t *testing.T) {
	expires := at(8, 10)
	active := &models.Hold{ID: "h1", Start: at(11, 0), End: at(11, 30), Status: models.HoldActive, ExpiresAt: expires, CreatedAt: at(8, 0)}
	released := *active
	released.Status = models.HoldReleased

	assert.Equal(t, []Mutation{upsert(mirrored(heldSlot("h1", at(11, 0), at(11, 30), expires)))}, PlanHold(nil, active))
	assert.Equal(t, []Mutation{remove("hold:h1")}, PlanHold(active, &released))
	assert.Equal(t, []Mutation{remove("hold:h1")}, PlanHold(active, nil))
	assert.Nil(t, PlanHold(nil, nil))
}

func TestPlanKeysBySource(t *testing.T) {
	appt := &models.Appointment{ID: "same", Start: at(10, 0), End: at(10, 45), Status: models.StatusConfirmed}
	hold := &models.Hold{ID: "same", Start: at(10, 0), End: at(10, 45), Status: models.HoldActive, ExpiresAt: at(8, 10)}

	booked := PlanAppointment(nil, appt)[0]
	held := PlanHold(nil, hold)[0]
	assert.NotEqual(t, booked.ID, held.ID)
	assert.Equal(t, "same", booked.Slot.SourceID)
	assert.Equal(t, "same", held.Slot.SourceID)

	released := *hold
	released.Status = models.HoldReleased
	assert.Equal(t, []Mutation{remove(held.ID)}, PlanHold(hold, &released))
	assert.NotEqual(t, booked.ID, PlanHold(hold, &released)[0].ID)
}

// mirrored turns a raw-id fixture into the slot the planner writes for it.
func mirrored(slot *models.AvailabilitySlot) *models.AvailabilitySlot {
	slot.SourceID = slot.ID
	slot.ID = models.SlotID(slot.Source, slot.ID)
	return slot
}

func TestPlanChange(t *testing.T) {
	appt := &models.Appointment{ID: "a1", Start: at(10, 0), End: at(10, 45), Status: models.StatusConfirmed, CreatedAt: at(8, 0)}
	raw, err := json.Marshal(appt)
	require.NoError(t, err)

	mutations, err := PlanChange(models.ChangeEvent{
		Collection: models.CollectionAppointments,
		DocumentID: "a1",
		Op:         models.ChangeWrite,
		After:      raw,
	})
	require.NoError(t, err)
	require.Len(t, mutations, 1)
	assert.Equal(t, MutationUpsert, mutations[0].Kind)
	assert.Equal(t, models.SlotBooked, mutations[0].Slot.Status)
	assert.True(t, mutations[0].Slot.Start.Equal(at(10, 0)))

	mutations, err = PlanChange(models.ChangeEvent{
		Collection: models.CollectionAppointments,
		DocumentID: "a1",
		Op:         models.ChangeDelete,
	})
	require.NoError(t, err)
	assert.Equal(t, []Mutation{remove("appointment:a1")}, mutations)

	mutations, err = PlanChange(models.ChangeEvent{
		Collection: models.CollectionHolds,
		DocumentID: "a1",
		Op:         models.ChangeDelete,
	})
	require.NoError(t, err)
	assert.Equal(t, []Mutation{remove("hold:a1")}, mutations)

	_, err = PlanChange(models.ChangeEvent{Collection: "unknown"})
	assert.Error(t, err)

	_, err = PlanChange(models.ChangeEvent{Collection: models.CollectionHolds, After: json.RawMessage(`{"start":`)})
	assert.Error(t, err)

	mutations, err = PlanChange(models.ChangeEvent{Collection: models.CollectionHolds, Before: json.RawMessage(`null`)})
	require.NoError(t, err)
	assert.Empty(t, mutations)
}

func TestApplyMutationsUnknownKind(t *testing.T) {
	err := ApplyMutations(context.Background(), NewMemoryIndex(), []Mutation{{Kind: "rename", ID: "x"}})
	assert.Error(t, err)
}
