package service

import (
	"context"
	"testing"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func salonSettings() *staticSettings {
	weekday := []models.MinuteRange{{Open: models.NewMinuteOfDay(9, 0), Close: models.NewMinuteOfDay(18, 0)}}
	return &staticSettings{
		hours: models.BusinessHours{
			TimeZone: "UTC",
			Days: map[string][]models.MinuteRange{
				"monday":  weekday,
				"tuesday": weekday,
			},
		},
		closures: []models.DayClosure{{Date: "2025-01-13", Reason: "inventory"}},
	}
}

func at(h, m int) time.Time {
	return time.Date(2025, 1, 7, h, m, 0, 0, time.UTC)
}

func TestScheduleService_OpenWindows(t *testing.T) {
	ctx := context.Background()
	svc := NewScheduleService(salonSettings(), nil, 15, nil)

	windows, err := svc.OpenWindows(ctx, "2025-01-07")
	require.NoError(t, err)
	assert.Equal(t, []models.Window{{Start: at(9, 0), End: at(18, 0)}}, windows)

	closed, err := svc.OpenWindows(ctx, "2025-01-13")
	require.NoError(t, err)
	assert.Empty(t, closed)

	_, err = svc.OpenWindows(ctx, "07.01.2025")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestScheduleService_FreeWindows(t *testing.T) {
	ctx := context.Background()
	index := new(mockIndex)
	svc := NewScheduleService(salonSettings(), index, 15, nil)
	svc.now = fixedClock(testNow)

	expired := testNow.Add(-time.Minute)
	index.On("Overlapping", ctx, at(9, 0), at(18, 0)).Return([]*models.AvailabilitySlot{
		{ID: "a1", Status: models.SlotBooked, Start: at(10, 0), End: at(10, 45)},
		{ID: "stale", Status: models.SlotHeld, Start: at(12, 0), End: at(13, 0), ExpiresAt: &expired},
	}, nil).Once()

	free, err := svc.FreeWindows(ctx, "2025-01-07")
	require.NoError(t, err)
	assert.Equal(t, []models.Window{
		{Start: at(9, 0), End: at(10, 0)},
		{Start: at(10, 45), End: at(18, 0)},
	}, free)
	index.AssertExpectations(t)
}

func TestScheduleService_CandidateStarts(t *testing.T) {
	ctx := context.Background()
	index := new(mockIndex)
	settings := salonSettings()
	settings.special = []models.SpecialHours{{
		Date:   "2025-01-07",
		Ranges: []models.MinuteRange{{Open: models.NewMinuteOfDay(9, 0), Close: models.NewMinuteOfDay(10, 0)}},
	}}
	svc := NewScheduleService(settings, index, 15, nil)
	svc.now = fixedClock(testNow)

	index.On("Overlapping", ctx, mock.Anything, mock.Anything).Return([]*models.AvailabilitySlot{}, nil)

	starts, err := svc.CandidateStarts(ctx, "2025-01-07", 30)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{at(9, 0), at(9, 15), at(9, 30)}, starts)

	_, err = svc.CandidateStarts(ctx, "2025-01-07", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestScheduleService_SlotsHidesExpiredHolds(t *testing.T) {
	ctx := context.Background()
	index := new(mockIndex)
	svc := NewScheduleService(salonSettings(), index, 15, nil)
	svc.now = fixedClock(testNow)

	expired := testNow.Add(-time.Second)
	live := testNow.Add(time.Minute)
	day := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)
	index.On("Overlapping", ctx, day, day.AddDate(0, 0, 1)).Return([]*models.AvailabilitySlot{
		{ID: "old", Status: models.SlotHeld, ExpiresAt: &expired},
		{ID: "new", Status: models.SlotHeld, ExpiresAt: &live},
	}, nil).Once()

	slots, err := svc.Slots(ctx, "2025-01-07")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "new", slots[0].ID)
}
