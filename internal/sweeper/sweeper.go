// Package sweeper releases expired holds and completes past appointments.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
)

// SlotIndex is the part of the availability index the sweeper cleans.
type SlotIndex interface {
	Delete(ctx context.Context, id string) (bool, error)
	ExpiredHeld(ctx context.Context, now time.Time, limit int) ([]*models.AvailabilitySlot, error)
}

// maxBatches bounds one run so a flood of expired holds cannot pin the loop.
const maxBatches = 1000

type Sweeper struct {
	holds     domain.ExpiredHoldReleaser
	index     SlotIndex
	notifier  domain.SyncNotifier
	eventBus  domain.EventPublisher
	interval  time.Duration
	batchSize int
	now       func() time.Time
	logger    *zerolog.Logger
}

// NewSweeper wires the expiry sweeper. index, notifier and eventBus may be nil.
func NewSweeper(
	holds domain.ExpiredHoldReleaser,
	index SlotIndex,
	notifier domain.SyncNotifier,
	eventBus domain.EventPublisher,
	cfg config.BookingConfig,
	logger *zerolog.Logger,
) *Sweeper {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	batch := cfg.SweepBatchSize
	if batch <= 0 {
		batch = 100
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Sweeper{
		holds:     holds,
		index:     index,
		notifier:  notifier,
		eventBus:  eventBus,
		interval:  interval,
		batchSize: batch,
		now:       time.Now,
		logger:    logger,
	}
}

// Start runs Sweep every interval until ctx is done. Errors are logged and
// the next tick retries.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("expiry sweep failed")
			}
		}
	}
}

// Sweep releases every active hold whose TTL has passed, deletes the
// mirrored held slots, then deletes held slots whose source is gone.
// Running it again right away returns a zero result.
func (s *Sweeper) Sweep(ctx context.Context) (models.SweepResult, error) {
	now := s.now()
	var res models.SweepResult

	err := s.releaseExpired(ctx, now, &res)
	if err == nil {
		err = s.deleteOrphans(ctx, now, &res)
	}

	if res.HoldsReleased > 0 || res.SlotsDeleted > 0 {
		metrics.AddSweep(res.HoldsReleased, res.SlotsDeleted)
		if s.notifier != nil {
			s.notifier.Wake()
		}
		if s.eventBus != nil {
			payload := events.SweepEventPayload{HoldsReleased: res.HoldsReleased, SlotsDeleted: res.SlotsDeleted}
			if perr := s.eventBus.PublishJSON(events.EventHoldsSwept, payload); perr != nil {
				s.logger.Error().Err(perr).Msg("publish event error")
			}
		}
		s.logger.Info().
			Int("holds_released", res.HoldsReleased).
			Int("slots_deleted", res.SlotsDeleted).
			Msg("expired holds swept")
	}
	return res, err
}

func (s *Sweeper) releaseExpired(ctx context.Context, now time.Time, res *models.SweepResult) error {
	for i := 0; i < maxBatches; i++ {
		released, err := s.holds.ReleaseExpiredHolds(ctx, now, s.batchSize)
		if err != nil {
			return fmt.Errorf("release expired holds: %w", err)
		}
		res.HoldsReleased += len(released)

		for _, hold := range released {
			if err := s.deleteSlot(ctx, models.SlotID(models.SourceHold, hold.ID), res); err != nil {
				return err
			}
		}
		if len(released) < s.batchSize {
			return nil
		}
	}
	return nil
}

func (s *Sweeper) deleteOrphans(ctx context.Context, now time.Time, res *models.SweepResult) error {
	if s.index == nil {
		return nil
	}
	for i := 0; i < maxBatches; i++ {
		slots, err := s.index.ExpiredHeld(ctx, now, s.batchSize)
		if err != nil {
			return fmt.Errorf("list expired held slots: %w", err)
		}
		for _, slot := range slots {
			if err := s.deleteSlot(ctx, slot.ID, res); err != nil {
				return err
			}
		}
		if len(slots) < s.batchSize {
			return nil
		}
	}
	return nil
}

func (s *Sweeper) deleteSlot(ctx context.Context, id string, res *models.SweepResult) error {
	if s.index == nil {
		return nil
	}
	deleted, err := s.index.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete slot %s: %w", id, err)
	}
	if deleted {
		res.SlotsDeleted++
	}
	return nil
}
