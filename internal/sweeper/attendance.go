package sweeper

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/metrics"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
)

// HoursSource resolves the salon time zone.
type HoursSource interface {
	GetBusinessHours(ctx context.Context) (models.BusinessHours, error)
}

// AttendanceSweeper completes appointments from previous days that nobody
// marked: they are assumed attended.
type AttendanceSweeper struct {
	store     domain.AttendanceStore
	hours     HoursSource
	at        models.MinuteOfDay
	batchSize int
	now       func() time.Time
	logger    *zerolog.Logger
}

func NewAttendanceSweeper(store domain.AttendanceStore, hours HoursSource, cfg config.BookingConfig, logger *zerolog.Logger) (*AttendanceSweeper, error) {
	raw := cfg.AttendanceSweepTime
	if raw == "" {
		raw = "23:30"
	}
	at, err := models.ParseMinuteOfDay(raw)
	if err != nil {
		return nil, fmt.Errorf("attendance sweep time: %w", err)
	}
	batch := cfg.SweepBatchSize
	if batch <= 0 {
		batch = 100
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AttendanceSweeper{
		store:     store,
		hours:     hours,
		at:        at,
		batchSize: batch,
		now:       time.Now,
		logger:    logger,
	}, nil
}

func (s *AttendanceSweeper) location(ctx context.Context) *time.Location {
	hours, err := s.hours.GetBusinessHours(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("business hours unavailable, using UTC")
		return time.UTC
	}
	loc, err := hours.Location()
	if err != nil {
		s.logger.Warn().Err(err).Msg("bad time zone, using UTC")
		return time.UTC
	}
	return loc
}

// SweepAttendance completes pending and confirmed appointments that started
// before the start of today in the salon time zone.
func (s *AttendanceSweeper) SweepAttendance(ctx context.Context) (int, error) {
	now := s.now()
	local := now.In(s.location(ctx))
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())

	total := 0
	for i := 0; i < maxBatches; i++ {
		done, err := s.store.CompletePastAppointments(ctx, today, now, s.batchSize)
		if err != nil {
			return total, fmt.Errorf("complete past appointments: %w", err)
		}
		total += len(done)
		if len(done) < s.batchSize {
			break
		}
	}

	if total > 0 {
		metrics.AddAttendanceCompleted(total)
		s.logger.Info().Int("completed", total).Time("before", today).Msg("attendance sweep done")
	}
	return total, nil
}

// Start runs SweepAttendance once a day at the configured local time.
func (s *AttendanceSweeper) Start(ctx context.Context) {
	timer := time.NewTimer(s.untilNextRun(ctx))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := s.SweepAttendance(ctx); err != nil {
				s.logger.Error().Err(err).Msg("attendance sweep failed")
			}
			timer.Reset(s.untilNextRun(ctx))
		}
	}
}

func (s *AttendanceSweeper) untilNextRun(ctx context.Context) time.Duration {
	return untilMinuteOfDay(s.now().In(s.location(ctx)), s.at)
}

// untilMinuteOfDay returns the wait from now to the next occurrence of at.
func untilMinuteOfDay(now time.Time, at models.MinuteOfDay) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, int(at), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
