package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestHoldService(store *mockHoldStore, index *mockIndex) (*HoldService, *countingNotifier, *recordingPublisher) {
	notifier := &countingNotifier{}
	bus := &recordingPublisher{}
	var reader domain.AvailabilityIndex
	if index != nil {
		reader = index
	}
	svc := NewHoldService(store, reader, notifier, bus, config.BookingConfig{HoldTTL: 10 * time.Minute, MaxBookingDays: 30}, nil)
	svc.now = fixedClock(testNow)
	return svc, notifier, bus
}

func holdRequest(key string) models.HoldRequest {
	return models.HoldRequest{
		Start:           time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 45,
		IdempotencyKey:  key,
	}
}

func TestHoldService_CreateHold(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		store := new(mockHoldStore)
		index := new(mockIndex)
		svc, notifier, bus := newTestHoldService(store, index)

		req := holdRequest("k1")
		end := req.Start.Add(45 * time.Minute)
		stored := &models.Hold{ID: "k1", Start: req.Start, End: end, DurationMinutes: 45, Status: models.HoldActive, ExpiresAt: testNow.Add(10 * time.Minute)}

		store.On("GetHold", ctx, "k1").Return(nil, domain.ErrNotFound).Once()
		index.On("Overlapping", ctx, req.Start, end).Return([]*models.AvailabilitySlot{}, nil).Once()
		store.On("CreateHold", ctx, mock.MatchedBy(func(h *models.Hold) bool {
			return h.ID == "k1" && h.ExpiresAt.Equal(testNow.Add(10*time.Minute))
		}), testNow).Return(stored, true, nil).Once()

		hold, err := svc.CreateHold(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "k1", hold.ID)
		assert.Equal(t, 1, notifier.count())
		assert.Equal(t, []string{events.EventHoldCreated}, bus.types())
		store.AssertExpectations(t)
		index.AssertExpectations(t)
	})

	t.Run("RepeatedKeySkipsPrecheck", func(t *testing.T) {
		store := new(mockHoldStore)
		index := new(mockIndex)
		svc, notifier, bus := newTestHoldService(store, index)

		req := holdRequest("k1")
		existing := &models.Hold{ID: "k1", Start: req.Start, DurationMinutes: 45, Status: models.HoldActive}
		store.On("GetHold", ctx, "k1").Return(existing, nil).Once()
		store.On("CreateHold", ctx, mock.Anything, testNow).Return(existing, false, nil).Once()

		hold, err := svc.CreateHold(ctx, req)
		require.NoError(t, err)
		assert.Same(t, existing, hold)
		assert.Zero(t, notifier.count())
		assert.Empty(t, bus.types())
		index.AssertNotCalled(t, "Overlapping", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PrecheckConflict", func(t *testing.T) {
		store := new(mockHoldStore)
		index := new(mockIndex)
		svc, _, _ := newTestHoldService(store, index)

		req := holdRequest("k2")
		store.On("GetHold", ctx, "k2").Return(nil, domain.ErrNotFound).Once()
		index.On("Overlapping", ctx, mock.Anything, mock.Anything).Return([]*models.AvailabilitySlot{
			{ID: "appt-1", Status: models.SlotBooked, Start: req.Start, End: req.Start.Add(time.Hour)},
		}, nil).Once()

		_, err := svc.CreateHold(ctx, req)
		assert.ErrorIs(t, err, domain.ErrSlotConflict)
		store.AssertNotCalled(t, "CreateHold", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PrecheckSkipsOnlyOwnHoldSlot", func(t *testing.T) {
		store := new(mockHoldStore)
		index := new(mockIndex)
		svc, _, _ := newTestHoldService(store, index)

		req := holdRequest("k7")
		store.On("GetHold", ctx, "k7").Return(nil, domain.ErrNotFound).Once()
		index.On("Overlapping", ctx, mock.Anything, mock.Anything).Return([]*models.AvailabilitySlot{
			{ID: models.SlotID(models.SourceHold, "k7"), SourceID: "k7", Status: models.SlotHeld, Start: req.Start, End: req.Start.Add(time.Hour)},
			{ID: models.SlotID(models.SourceAppointment, "k7"), SourceID: "k7", Status: models.SlotBooked, Start: req.Start, End: req.Start.Add(time.Hour)},
		}, nil).Once()

		_, err := svc.CreateHold(ctx, req)
		assert.ErrorIs(t, err, domain.ErrSlotConflict)
		store.AssertNotCalled(t, "CreateHold", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PrecheckIgnoresExpiredHeld", func(t *testing.T) {
		store := new(mockHoldStore)
		index := new(mockIndex)
		svc, _, _ := newTestHoldService(store, index)

		req := holdRequest("k3")
		expired := testNow.Add(-time.Minute)
		store.On("GetHold", ctx, "k3").Return(nil, domain.ErrNotFound).Once()
		index.On("Overlapping", ctx, mock.Anything, mock.Anything).Return([]*models.AvailabilitySlot{
			{ID: "old", Status: models.SlotHeld, Start: req.Start, End: req.Start.Add(time.Hour), ExpiresAt: &expired},
		}, nil).Once()
		store.On("CreateHold", ctx, mock.Anything, testNow).Return(&models.Hold{ID: "k3"}, true, nil).Once()

		_, err := svc.CreateHold(ctx, req)
		assert.NoError(t, err)
	})

	t.Run("IndexErrorDoesNotBlock", func(t *testing.T) {
		store := new(mockHoldStore)
		index := new(mockIndex)
		svc, _, _ := newTestHoldService(store, index)

		req := holdRequest("k4")
		store.On("GetHold", ctx, "k4").Return(nil, domain.ErrNotFound).Once()
		index.On("Overlapping", ctx, mock.Anything, mock.Anything).Return(nil, domain.ErrTransientStorage).Once()
		store.On("CreateHold", ctx, mock.Anything, testNow).Return(&models.Hold{ID: "k4"}, true, nil).Once()

		_, err := svc.CreateHold(ctx, req)
		assert.NoError(t, err)
	})

	t.Run("StoreConflict", func(t *testing.T) {
		store := new(mockHoldStore)
		svc, notifier, _ := newTestHoldService(store, nil)

		store.On("GetHold", ctx, "k5").Return(nil, domain.ErrNotFound).Once()
		store.On("CreateHold", ctx, mock.Anything, testNow).Return(nil, false, domain.Conflict("window is held")).Once()

		_, err := svc.CreateHold(ctx, holdRequest("k5"))
		assert.ErrorIs(t, err, domain.ErrSlotConflict)
		assert.Zero(t, notifier.count())
	})

	t.Run("LookupErrorPropagates", func(t *testing.T) {
		store := new(mockHoldStore)
		svc, _, _ := newTestHoldService(store, nil)

		store.On("GetHold", ctx, "k6").Return(nil, domain.ErrTransientStorage).Once()

		_, err := svc.CreateHold(ctx, holdRequest("k6"))
		assert.True(t, domain.Retryable(err))
	})
}

func TestHoldService_CreateHoldValidation(t *testing.T) {
	svc, _, _ := newTestHoldService(new(mockHoldStore), nil)
	ctx := context.Background()

	long := make([]byte, models.MaxIdempotencyKeyLength+1)
	for i := range long {
		long[i] = 'a'
	}

	cases := map[string]func(r *models.HoldRequest){
		"MissingKey":   func(r *models.HoldRequest) { r.IdempotencyKey = "" },
		"LongKey":      func(r *models.HoldRequest) { r.IdempotencyKey = string(long) },
		"ZeroDuration": func(r *models.HoldRequest) { r.DurationMinutes = 0 },
		"MissingStart": func(r *models.HoldRequest) { r.Start = time.Time{} },
		"PastStart":    func(r *models.HoldRequest) { r.Start = testNow.Add(-time.Hour) },
		"TooFarAhead":  func(r *models.HoldRequest) { r.Start = testNow.AddDate(0, 0, 31) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := holdRequest("k")
			mutate(&req)
			_, err := svc.CreateHold(ctx, req)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
}

func TestHoldService_ReleaseHold(t *testing.T) {
	ctx := context.Background()

	t.Run("Released", func(t *testing.T) {
		store := new(mockHoldStore)
		svc, notifier, bus := newTestHoldService(store, nil)

		released := &models.Hold{ID: "k1", Status: models.HoldReleased, ReleaseReason: models.ReleaseCancelled}
		store.On("ReleaseHold", ctx, "k1", models.ReleaseCancelled, testNow).Return(released, true, nil).Once()

		hold, err := svc.ReleaseHold(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, models.HoldReleased, hold.Status)
		assert.Equal(t, 1, notifier.count())
		assert.Equal(t, []string{events.EventHoldReleased}, bus.types())
	})

	t.Run("DropsSlotFromIndex", func(t *testing.T) {
		store := new(mockHoldStore)
		index := new(mockIndex)
		svc, notifier, _ := newTestHoldService(store, index)

		released := &models.Hold{ID: "k1", Status: models.HoldReleased, ReleaseReason: models.ReleaseCancelled}
		store.On("ReleaseHold", ctx, "k1", models.ReleaseCancelled, testNow).Return(released, true, nil).Once()
		index.On("Delete", ctx, models.SlotID(models.SourceHold, "k1")).Return(true, nil).Once()

		_, err := svc.ReleaseHold(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, 1, notifier.count())
		index.AssertExpectations(t)
	})

	t.Run("IndexDeleteFailureIsNotFatal", func(t *testing.T) {
		store := new(mockHoldStore)
		index := new(mockIndex)
		svc, notifier, bus := newTestHoldService(store, index)

		released := &models.Hold{ID: "k1", Status: models.HoldReleased, ReleaseReason: models.ReleaseCancelled}
		store.On("ReleaseHold", ctx, "k1", models.ReleaseCancelled, testNow).Return(released, true, nil).Once()
		index.On("Delete", ctx, models.SlotID(models.SourceHold, "k1")).Return(false, errors.New("redis down")).Once()

		hold, err := svc.ReleaseHold(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, models.HoldReleased, hold.Status)
		assert.Equal(t, 1, notifier.count())
		assert.Equal(t, []string{events.EventHoldReleased}, bus.types())
	})

	t.Run("AlreadyReleased", func(t *testing.T) {
		store := new(mockHoldStore)
		index := new(mockIndex)
		svc, notifier, bus := newTestHoldService(store, index)

		released := &models.Hold{ID: "k1", Status: models.HoldReleased}
		store.On("ReleaseHold", ctx, "k1", models.ReleaseCancelled, testNow).Return(released, false, nil).Once()

		_, err := svc.ReleaseHold(ctx, "k1")
		require.NoError(t, err)
		assert.Zero(t, notifier.count())
		assert.Empty(t, bus.types())
		index.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("EmptyID", func(t *testing.T) {
		svc, _, _ := newTestHoldService(new(mockHoldStore), nil)
		_, err := svc.ReleaseHold(ctx, "")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("NotFound", func(t *testing.T) {
		store := new(mockHoldStore)
		svc, _, _ := newTestHoldService(store, nil)
		store.On("ReleaseHold", ctx, "nope", models.ReleaseCancelled, testNow).
			Return(nil, false, domain.ErrNotFound).Once()

		_, err := svc.ReleaseHold(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
