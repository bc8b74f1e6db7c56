package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/events"
	"salonbook/internal/models"
	"salonbook/internal/service"
	"salonbook/internal/sweeper"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	clientKey   = "client-key"
	clientExtra = "client-extra"
	adminKey    = "admin-key"
	adminExtra  = "admin-extra"
)

type testAPI struct {
	ts    *httptest.Server
	db    *database.DB
	index *availability.MemoryIndex
}

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true},
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: clientKey, Extra: clientExtra, Name: "web"},
				{Key: adminKey, Extra: adminExtra, Name: "dashboard", Permissions: []string{"admin"}},
			},
		},
	}
}

func newTestAPI(t *testing.T, cfg config.APIConfig) *testAPI {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	weekday := []models.MinuteRange{{Open: models.NewMinuteOfDay(9, 0), Close: models.NewMinuteOfDay(18, 0)}}
	days := map[string][]models.MinuteRange{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		days[models.WeekdayKey(d)] = weekday
	}
	require.NoError(t, db.SaveBusinessHours(ctx, models.BusinessHours{TimeZone: "UTC", Days: days}))
	require.NoError(t, db.UpsertService(ctx, &models.Service{ID: "cut", Name: "Haircut", PriceCents: 4500, DurationMinutes: 45, Active: true}))

	booking := config.BookingConfig{HoldTTL: 10 * time.Minute, MaxBookingDays: 90, SweepBatchSize: 50}
	index := availability.NewMemoryIndex()
	bus := events.NewEventBus()

	attendance, err := sweeper.NewAttendanceSweeper(db, db, booking, &logger)
	require.NoError(t, err)

	svc := Services{
		Holds:        service.NewHoldService(db, index, nil, bus, booking, &logger),
		Appointments: service.NewAppointmentService(db, db, nil, bus, &logger),
		Schedule:     service.NewScheduleService(db, index, 15, &logger),
		Catalog:      service.NewCatalogService(db, &logger),
		Sweeper:      sweeper.NewSweeper(db, index, nil, bus, booking, &logger),
		Attendance:   attendance,
		Resyncer:     availability.NewResyncer(db, index, 100, &logger),
		ReadyChecks:  []ReadyCheck{{Name: "sqlite", Check: db.PingContext}},
	}
	server := NewHTTPServer(cfg, svc, &logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &testAPI{ts: ts, db: db, index: index}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

func (a *testAPI) do(t *testing.T, method, path, key, extra string, body any) (int, apiResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.ts.URL+path, reader)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("x-api-key", key)
		req.Header.Set("x-api-extra", extra)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (a *testAPI) client(t *testing.T, method, path string, body any) (int, apiResponse) {
	t.Helper()
	return a.do(t, method, path, clientKey, clientExtra, body)
}

func (a *testAPI) admin(t *testing.T, method, path string, body any) (int, apiResponse) {
	t.Helper()
	return a.do(t, method, path, adminKey, adminExtra, body)
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	return v
}

// futureSlot returns a whole hour at least two days ahead.
func futureSlot(hour int) time.Time {
	d := time.Now().UTC().AddDate(0, 0, 2)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC)
}
