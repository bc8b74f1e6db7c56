package service

import (
	"context"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/internal/schedule"

	"github.com/rs/zerolog"
)

// ScheduleService answers slot-picker queries: opening hours from settings,
// minus what the availability index reports as taken.
type ScheduleService struct {
	domain.SettingsStore
	index  domain.AvailabilityReader
	step   time.Duration
	now    func() time.Time
	logger *zerolog.Logger
}

func NewScheduleService(settings domain.SettingsStore, index domain.AvailabilityReader, stepMinutes int, logger *zerolog.Logger) *ScheduleService {
	if stepMinutes <= 0 {
		stepMinutes = models.DefaultSlotStepMinutes
	}
	return &ScheduleService{
		SettingsStore: settings,
		index:         index,
		step:          time.Duration(stepMinutes) * time.Minute,
		now:           time.Now,
		logger:        orNop(logger),
	}
}

type daySchedule struct {
	start    time.Time
	hours    models.BusinessHours
	closures []models.DayClosure
	special  []models.SpecialHours
}

func (s *ScheduleService) load(ctx context.Context, day string) (*daySchedule, error) {
	hours, err := s.GetBusinessHours(ctx)
	if err != nil {
		return nil, err
	}
	loc, err := hours.Location()
	if err != nil {
		return nil, err
	}
	start, err := time.ParseInLocation(models.DateLayout, day, loc)
	if err != nil {
		return nil, domain.Invalid("invalid date %q: expected %s", day, models.DateLayout)
	}
	closures, err := s.GetDayClosures(ctx)
	if err != nil {
		return nil, err
	}
	special, err := s.GetSpecialHours(ctx)
	if err != nil {
		return nil, err
	}
	return &daySchedule{start: start, hours: hours, closures: closures, special: special}, nil
}

// OpenWindows returns the business-hours windows of a YYYY-MM-DD day.
func (s *ScheduleService) OpenWindows(ctx context.Context, day string) ([]models.Window, error) {
	d, err := s.load(ctx, day)
	if err != nil {
		return nil, err
	}
	return schedule.ComputeOpenWindows(d.start, d.hours, d.closures, d.special), nil
}

// FreeWindows returns open windows minus held and booked slots.
func (s *ScheduleService) FreeWindows(ctx context.Context, day string) ([]models.Window, error) {
	d, err := s.load(ctx, day)
	if err != nil {
		return nil, err
	}
	open := schedule.ComputeOpenWindows(d.start, d.hours, d.closures, d.special)
	if len(open) == 0 {
		return nil, nil
	}

	slots, err := s.slotsBetween(ctx, open[0].Start, open[len(open)-1].End)
	if err != nil {
		return nil, err
	}
	busy := make([]models.Window, 0, len(slots))
	for _, slot := range slots {
		busy = append(busy, models.Window{Start: slot.Start, End: slot.End})
	}
	return schedule.FreeWindows(open, busy), nil
}

// CandidateStarts lists start times on the slot grid that fit the duration.
func (s *ScheduleService) CandidateStarts(ctx context.Context, day string, durationMinutes int) ([]time.Time, error) {
	if durationMinutes <= 0 {
		return nil, domain.Invalid("duration must be positive")
	}
	free, err := s.FreeWindows(ctx, day)
	if err != nil {
		return nil, err
	}
	return schedule.CandidateStarts(free, time.Duration(durationMinutes)*time.Minute, s.step, s.now()), nil
}

// Slots returns the index entries touching a day.
func (s *ScheduleService) Slots(ctx context.Context, day string) ([]*models.AvailabilitySlot, error) {
	d, err := s.load(ctx, day)
	if err != nil {
		return nil, err
	}
	return s.slotsBetween(ctx, d.start, d.start.AddDate(0, 0, 1))
}

// slotsBetween reads the index, hiding held slots that already expired.
func (s *ScheduleService) slotsBetween(ctx context.Context, start, end time.Time) ([]*models.AvailabilitySlot, error) {
	if s.index == nil {
		return nil, nil
	}
	slots, err := s.index.Overlapping(ctx, start, end)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := slots[:0]
	for _, slot := range slots {
		if !slot.ExpiredAt(now) {
			out = append(out, slot)
		}
	}
	return out, nil
}
