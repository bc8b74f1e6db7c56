package service

import (
	"context"
	"sync"
	"time"

	"salonbook/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockHoldStore struct {
	mock.Mock
}

func (m *mockHoldStore) CreateHold(ctx context.Context, h *models.Hold, now time.Time) (*models.Hold, bool, error) {
	args := m.Called(ctx, h, now)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Hold), args.Bool(1), args.Error(2)
}
func (m *mockHoldStore) GetHold(ctx context.Context, id string) (*models.Hold, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Hold), args.Error(1)
}
func (m *mockHoldStore) ReleaseHold(ctx context.Context, id, reason string, now time.Time) (*models.Hold, bool, error) {
	args := m.Called(ctx, id, reason, now)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Hold), args.Bool(1), args.Error(2)
}

type mockAppointmentStore struct {
	mock.Mock
}

func (m *mockAppointmentStore) ConfirmAppointment(ctx context.Context, in models.ConfirmInput, now time.Time) (*models.Appointment, bool, error) {
	args := m.Called(ctx, in, now)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Appointment), args.Bool(1), args.Error(2)
}
func (m *mockAppointmentStore) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}
func (m *mockAppointmentStore) ListAppointments(ctx context.Context, from, to time.Time) ([]*models.Appointment, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Appointment), args.Error(1)
}
func (m *mockAppointmentStore) CancelAppointment(ctx context.Context, id string, now time.Time) (*models.Appointment, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}
func (m *mockAppointmentStore) DeleteAppointment(ctx context.Context, id string, now time.Time) error {
	return m.Called(ctx, id, now).Error(0)
}
func (m *mockAppointmentStore) SetAttendance(ctx context.Context, id, attendance string, now time.Time) (*models.Appointment, error) {
	args := m.Called(ctx, id, attendance, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}

type mockIndex struct {
	mock.Mock
}

func (m *mockIndex) Overlapping(ctx context.Context, start, end time.Time) ([]*models.AvailabilitySlot, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AvailabilitySlot), args.Error(1)
}

func (m *mockIndex) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// staticSettings is an in-memory SettingsStore.
type staticSettings struct {
	hours    models.BusinessHours
	closures []models.DayClosure
	special  []models.SpecialHours
}

func (s *staticSettings) GetBusinessHours(context.Context) (models.BusinessHours, error) {
	return s.hours, nil
}
func (s *staticSettings) SaveBusinessHours(_ context.Context, h models.BusinessHours) error {
	s.hours = h
	return nil
}
func (s *staticSettings) GetDayClosures(context.Context) ([]models.DayClosure, error) {
	return s.closures, nil
}
func (s *staticSettings) SaveDayClosures(_ context.Context, c []models.DayClosure) error {
	s.closures = c
	return nil
}
func (s *staticSettings) GetSpecialHours(context.Context) ([]models.SpecialHours, error) {
	return s.special, nil
}
func (s *staticSettings) SaveSpecialHours(_ context.Context, sp []models.SpecialHours) error {
	s.special = sp
	return nil
}

type countingNotifier struct {
	mu    sync.Mutex
	wakes int
}

func (n *countingNotifier) Wake() {
	n.mu.Lock()
	n.wakes++
	n.mu.Unlock()
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.wakes
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishJSON(eventType string, _ interface{}) error {
	p.mu.Lock()
	p.events = append(p.events, eventType)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

var (
	// 2025-01-07, вторник
	testNow = time.Date(2025, 1, 7, 8, 0, 0, 0, time.UTC)
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
