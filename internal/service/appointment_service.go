package service

import (
	"context"
	"errors"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
)

type AppointmentService struct {
	store    domain.AppointmentStore
	catalog  domain.CatalogStore
	notifier domain.SyncNotifier
	eventBus domain.EventPublisher
	now      func() time.Time
	logger   *zerolog.Logger
}

// NewAppointmentService wires the appointment writer. catalog is only used
// to enrich events and may be nil, as may notifier and eventBus.
func NewAppointmentService(
	store domain.AppointmentStore,
	catalog domain.CatalogStore,
	notifier domain.SyncNotifier,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *AppointmentService {
	return &AppointmentService{
		store:    store,
		catalog:  catalog,
		notifier: notifier,
		eventBus: eventBus,
		now:      time.Now,
		logger:   orNop(logger),
	}
}

// ConfirmAppointment writes an appointment, consuming the hold when one is
// given. Re-submitting a consumed hold returns the existing appointment.
func (s *AppointmentService) ConfirmAppointment(ctx context.Context, in models.ConfirmInput) (*models.Appointment, error) {
	appt, created, err := s.store.ConfirmAppointment(ctx, in, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrSlotConflict) {
			metrics.IncSlotConflict("confirm")
		}
		return nil, err
	}

	if created {
		metrics.IncAppointmentConfirmed()
		s.wake()
		s.publish(ctx, events.EventAppointmentConfirmed, appt, changedBy(in.AdminOverride))
		s.logger.Info().
			Str("appointment_id", appt.ID).
			Str("hold_id", appt.HoldID).
			Time("start", appt.Start).
			Bool("admin_override", in.AdminOverride).
			Msg("appointment confirmed")
	}
	return appt, nil
}

func (s *AppointmentService) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	return s.store.GetAppointment(ctx, id)
}

func (s *AppointmentService) ListAppointments(ctx context.Context, from, to time.Time) ([]*models.Appointment, error) {
	if !to.After(from) {
		return nil, domain.Invalid("range end must be after start")
	}
	return s.store.ListAppointments(ctx, from, to)
}

func (s *AppointmentService) CancelAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	appt, err := s.store.CancelAppointment(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	s.wake()
	s.publish(ctx, events.EventAppointmentCancelled, appt, "admin")
	return appt, nil
}

func (s *AppointmentService) DeleteAppointment(ctx context.Context, id string) error {
	if err := s.store.DeleteAppointment(ctx, id, s.now()); err != nil {
		return err
	}
	s.wake()
	if s.eventBus != nil {
		payload := events.AppointmentEventPayload{AppointmentID: id, ChangedBy: "admin"}
		if err := s.eventBus.PublishJSON(events.EventAppointmentDeleted, payload); err != nil {
			s.logger.Error().Err(err).Str("appointment_id", id).Msg("publish event error")
		}
	}
	return nil
}

func (s *AppointmentService) SetAttendance(ctx context.Context, id, attendance string) (*models.Appointment, error) {
	appt, err := s.store.SetAttendance(ctx, id, attendance, s.now())
	if err != nil {
		return nil, err
	}
	s.wake()
	return appt, nil
}

func (s *AppointmentService) wake() {
	if s.notifier != nil {
		s.notifier.Wake()
	}
}

func (s *AppointmentService) publish(ctx context.Context, eventType string, appt *models.Appointment, by string) {
	if s.eventBus == nil {
		return
	}

	payload := events.AppointmentEventPayload{
		AppointmentID:   appt.ID,
		CustomerID:      appt.CustomerID,
		ServiceID:       appt.ServiceID,
		Status:          appt.Status,
		Start:           appt.Start,
		End:             appt.End,
		TotalPriceCents: appt.TotalPriceCents,
		ChangedBy:       by,
	}
	if s.catalog != nil {
		if svc, err := s.catalog.GetService(ctx, appt.ServiceID); err == nil {
			payload.ServiceName = svc.Name
		}
		if c, err := s.catalog.GetCustomer(ctx, appt.CustomerID); err == nil {
			payload.CustomerName = c.Name
		}
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("appointment_id", appt.ID).Msg("publish event error")
	}
}

func changedBy(admin bool) string {
	if admin {
		return "admin"
	}
	return "customer"
}

func orNop(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return logger
}
