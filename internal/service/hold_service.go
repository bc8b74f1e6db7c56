package service

import (
	"context"
	"errors"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
)

type HoldService struct {
	store          domain.HoldStore
	index          domain.AvailabilityIndex
	notifier       domain.SyncNotifier
	eventBus       domain.EventPublisher
	ttl            time.Duration
	maxBookingDays int
	now            func() time.Time
	logger         *zerolog.Logger
}

// NewHoldService wires the hold manager. index, notifier and eventBus may be nil.
func NewHoldService(
	store domain.HoldStore,
	index domain.AvailabilityIndex,
	notifier domain.SyncNotifier,
	eventBus domain.EventPublisher,
	cfg config.BookingConfig,
	logger *zerolog.Logger,
) *HoldService {
	ttl := cfg.HoldTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	maxDays := cfg.MaxBookingDays
	if maxDays <= 0 {
		maxDays = 365
	}
	return &HoldService{
		store:          store,
		index:          index,
		notifier:       notifier,
		eventBus:       eventBus,
		ttl:            ttl,
		maxBookingDays: maxDays,
		now:            time.Now,
		logger:         orNop(logger),
	}
}

func (s *HoldService) validate(req models.HoldRequest, now time.Time) error {
	if req.IdempotencyKey == "" {
		return domain.Invalid("idempotency_key is required")
	}
	if len(req.IdempotencyKey) > models.MaxIdempotencyKeyLength {
		return domain.Invalid("idempotency_key is longer than %d characters", models.MaxIdempotencyKeyLength)
	}
	if req.DurationMinutes <= 0 {
		return domain.Invalid("duration must be positive")
	}
	if req.Start.IsZero() {
		return domain.Invalid("start is required")
	}
	if req.Start.Before(now) {
		return domain.Invalid("start %s is in the past", req.Start.Format(time.RFC3339))
	}
	if req.Start.After(now.AddDate(0, 0, s.maxBookingDays)) {
		return domain.Invalid("start is more than %d days ahead", s.maxBookingDays)
	}
	return nil
}

// CreateHold reserves [start, start+duration) for the hold TTL. The same
// idempotency key always resolves to the same hold.
func (s *HoldService) CreateHold(ctx context.Context, req models.HoldRequest) (*models.Hold, error) {
	now := s.now()
	if err := s.validate(req, now); err != nil {
		return nil, err
	}

	// повтор запроса не проходит предварительную проверку
	_, err := s.store.GetHold(ctx, req.IdempotencyKey)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if err := s.precheck(ctx, req, now); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	hold := &models.Hold{
		ID:              req.IdempotencyKey,
		ServiceID:       req.ServiceID,
		Start:           req.Start,
		DurationMinutes: req.DurationMinutes,
		ExpiresAt:       now.Add(s.ttl),
	}
	stored, created, err := s.store.CreateHold(ctx, hold, now)
	if err != nil {
		if errors.Is(err, domain.ErrSlotConflict) {
			metrics.IncSlotConflict("hold")
		}
		return nil, err
	}

	if created {
		metrics.IncHoldCreated()
		s.wake()
		s.publish(events.EventHoldCreated, stored, "")
		s.logger.Info().
			Str("hold_id", stored.ID).
			Time("start", stored.Start).
			Time("expires_at", stored.ExpiresAt).
			Msg("hold created")
	}
	return stored, nil
}

// precheck consults the advisory index. An index failure does not block the
// request: the store re-checks overlap anyway.
func (s *HoldService) precheck(ctx context.Context, req models.HoldRequest, now time.Time) error {
	if s.index == nil {
		return nil
	}
	end := req.Start.Add(time.Duration(req.DurationMinutes) * time.Minute)
	slots, err := s.index.Overlapping(ctx, req.Start, end)
	if err != nil {
		s.logger.Warn().Err(err).Msg("availability precheck skipped")
		return nil
	}
	own := models.SlotID(models.SourceHold, req.IdempotencyKey)
	for _, slot := range slots {
		if slot.ID == own || slot.ExpiredAt(now) {
			continue
		}
		metrics.IncSlotConflict("precheck")
		return domain.Conflict("window is %s", slot.Status)
	}
	return nil
}

// ReleaseHold cancels a hold. Releasing a released hold returns it unchanged.
// The slot is dropped from the index right away; the queued sync task deletes
// it again if that fails.
func (s *HoldService) ReleaseHold(ctx context.Context, id string) (*models.Hold, error) {
	if id == "" {
		return nil, domain.Invalid("hold id is required")
	}
	hold, changed, err := s.store.ReleaseHold(ctx, id, models.ReleaseCancelled, s.now())
	if err != nil {
		return nil, err
	}
	if changed {
		s.dropSlot(ctx, hold.ID)
		s.wake()
		s.publish(events.EventHoldReleased, hold, hold.ReleaseReason)
	}
	return hold, nil
}

func (s *HoldService) dropSlot(ctx context.Context, holdID string) {
	if s.index == nil {
		return
	}
	if _, err := s.index.Delete(ctx, models.SlotID(models.SourceHold, holdID)); err != nil {
		s.logger.Warn().Err(err).Str("hold_id", holdID).Msg("drop released slot failed, leaving it to sync")
	}
}

func (s *HoldService) wake() {
	if s.notifier != nil {
		s.notifier.Wake()
	}
}

func (s *HoldService) publish(eventType string, hold *models.Hold, reason string) {
	if s.eventBus == nil {
		return
	}
	payload := events.HoldEventPayload{
		HoldID:    hold.ID,
		Start:     hold.Start,
		End:       hold.End,
		ExpiresAt: hold.ExpiresAt,
		Reason:    reason,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("hold_id", hold.ID).Msg("publish event error")
	}
}
