package domain

import (
	"context"
	"time"

	"salonbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// HoldStore is the authoritative hold storage.
type HoldStore interface {
	CreateHold(ctx context.Context, hold *models.Hold, now time.Time) (*models.Hold, bool, error)
	GetHold(ctx context.Context, id string) (*models.Hold, error)
	ReleaseHold(ctx context.Context, id, reason string, now time.Time) (*models.Hold, bool, error)
}

type ExpiredHoldReleaser interface {
	ReleaseExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*models.Hold, error)
}

// AppointmentStore is the authoritative appointment storage.
type AppointmentStore interface {
	ConfirmAppointment(ctx context.Context, in models.ConfirmInput, now time.Time) (*models.Appointment, bool, error)
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	ListAppointments(ctx context.Context, from, to time.Time) ([]*models.Appointment, error)
	CancelAppointment(ctx context.Context, id string, now time.Time) (*models.Appointment, error)
	DeleteAppointment(ctx context.Context, id string, now time.Time) error
	SetAttendance(ctx context.Context, id, attendance string, now time.Time) (*models.Appointment, error)
}

type AttendanceStore interface {
	CompletePastAppointments(ctx context.Context, before, now time.Time, limit int) ([]*models.Appointment, error)
}

type CatalogStore interface {
	UpsertService(ctx context.Context, svc *models.Service) error
	GetService(ctx context.Context, id string) (*models.Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]*models.Service, error)
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
}

type SettingsStore interface {
	GetBusinessHours(ctx context.Context) (models.BusinessHours, error)
	SaveBusinessHours(ctx context.Context, hours models.BusinessHours) error
	GetDayClosures(ctx context.Context) ([]models.DayClosure, error)
	SaveDayClosures(ctx context.Context, closures []models.DayClosure) error
	GetSpecialHours(ctx context.Context) ([]models.SpecialHours, error)
	SaveSpecialHours(ctx context.Context, special []models.SpecialHours) error
}

// SourceLister pages through the records the availability index mirrors.
type SourceLister interface {
	ListLiveAppointments(ctx context.Context, afterID string, limit int) ([]*models.Appointment, error)
	ListActiveHolds(ctx context.Context, now time.Time, afterID string, limit int) ([]*models.Hold, error)
}

// AvailabilityReader is the advisory read side of the availability index.
type AvailabilityReader interface {
	Overlapping(ctx context.Context, start, end time.Time) ([]*models.AvailabilitySlot, error)
}

// AvailabilityIndex also lets a writer drop a slot ahead of the sync worker.
type AvailabilityIndex interface {
	AvailabilityReader
	Delete(ctx context.Context, id string) (bool, error)
}

// SyncNotifier nudges the index sync worker after a committed write.
type SyncNotifier interface {
	Wake()
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type HoldService interface {
	CreateHold(ctx context.Context, req models.HoldRequest) (*models.Hold, error)
	ReleaseHold(ctx context.Context, id string) (*models.Hold, error)
}

type AppointmentService interface {
	ConfirmAppointment(ctx context.Context, in models.ConfirmInput) (*models.Appointment, error)
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	ListAppointments(ctx context.Context, from, to time.Time) ([]*models.Appointment, error)
	CancelAppointment(ctx context.Context, id string) (*models.Appointment, error)
	DeleteAppointment(ctx context.Context, id string) error
	SetAttendance(ctx context.Context, id, attendance string) (*models.Appointment, error)
}

type ScheduleService interface {
	OpenWindows(ctx context.Context, day string) ([]models.Window, error)
	FreeWindows(ctx context.Context, day string) ([]models.Window, error)
	CandidateStarts(ctx context.Context, day string, durationMinutes int) ([]time.Time, error)
	Slots(ctx context.Context, day string) ([]*models.AvailabilitySlot, error)
	SettingsStore
}

type CatalogService interface {
	ListServices(ctx context.Context, activeOnly bool) ([]*models.Service, error)
	SaveService(ctx context.Context, svc *models.Service) (*models.Service, error)
	CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error)
}

type HoldSweeper interface {
	Sweep(ctx context.Context) (models.SweepResult, error)
}

type AttendanceSweeper interface {
	SweepAttendance(ctx context.Context) (int, error)
}

type IndexResyncer interface {
	Resync(ctx context.Context) (models.ResyncResult, error)
}

type SheetsPublisher interface {
	PublishAppointments(ctx context.Context, appointments []*models.Appointment, services map[string]*models.Service) error
}
