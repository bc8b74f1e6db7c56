package database

import (
	"context"
	"testing"

	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMinute(t *testing.T, s string) models.MinuteOfDay {
	t.Helper()
	m, err := models.ParseMinuteOfDay(s)
	require.NoError(t, err)
	return m
}

func TestSettingsRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	hours, err := db.GetBusinessHours(ctx)
	require.NoError(t, err)
	assert.Empty(t, hours.Days)

	want := models.BusinessHours{
		TimeZone: "UTC",
		Days: map[string][]models.MinuteRange{
			"tuesday": {{Open: mustMinute(t, "09:00"), Close: mustMinute(t, "18:00")}},
		},
	}
	require.NoError(t, db.SaveBusinessHours(ctx, want))
	hours, err = db.GetBusinessHours(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, hours)

	bad := models.BusinessHours{Days: map[string][]models.MinuteRange{
		"monday": {{Open: mustMinute(t, "18:00"), Close: mustMinute(t, "09:00")}},
	}}
	assert.ErrorIs(t, db.SaveBusinessHours(ctx, bad), domain.ErrInvalidArgument)
	assert.ErrorIs(t, db.SaveBusinessHours(ctx, models.BusinessHours{TimeZone: "Mars/Olympus"}), domain.ErrInvalidArgument)

	closures := []models.DayClosure{{Date: "2025-01-09", Reason: "inventory"}, {Date: "2025-01-01", Reason: "holiday"}}
	require.NoError(t, db.SaveDayClosures(ctx, closures))
	gotClosures, err := db.GetDayClosures(ctx)
	require.NoError(t, err)
	require.Len(t, gotClosures, 2)
	assert.Equal(t, "2025-01-01", gotClosures[0].Date)

	assert.ErrorIs(t, db.SaveDayClosures(ctx, []models.DayClosure{{Date: "tomorrow"}}), domain.ErrInvalidArgument)

	special := []models.SpecialHours{{Date: "2025-01-07", Ranges: []models.MinuteRange{{Open: mustMinute(t, "12:00"), Close: mustMinute(t, "15:00")}}}}
	require.NoError(t, db.SaveSpecialHours(ctx, special))
	gotSpecial, err := db.GetSpecialHours(ctx)
	require.NoError(t, err)
	assert.Equal(t, special, gotSpecial)
}

func TestSeedSettingsKeepsExisting(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seed := models.BusinessHours{Days: map[string][]models.MinuteRange{
		"monday": {{Open: mustMinute(t, "10:00"), Close: mustMinute(t, "19:00")}},
	}}
	require.NoError(t, db.SeedSettings(ctx, seed, nil, nil))

	edited := models.BusinessHours{Days: map[string][]models.MinuteRange{
		"monday": {{Open: mustMinute(t, "11:00"), Close: mustMinute(t, "20:00")}},
	}}
	require.NoError(t, db.SaveBusinessHours(ctx, edited))
	require.NoError(t, db.SeedSettings(ctx, seed, nil, nil))

	hours, err := db.GetBusinessHours(ctx)
	require.NoError(t, err)
	assert.Equal(t, edited, hours)

	closures, err := db.GetDayClosures(ctx)
	require.NoError(t, err)
	assert.Empty(t, closures)
}

func TestCatalog(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SeedServices(ctx, []models.Service{
		{ID: "cut", Name: "Haircut", Category: "hair", PriceCents: 4500, DurationMinutes: 45, Active: true},
		{ID: "old", Name: "Perm", Category: "hair", PriceCents: 9000, DurationMinutes: 120, Active: false},
	}))

	active, err := db.ListServices(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "cut", active[0].ID)

	all, err := db.ListServices(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// seeding again must not overwrite admin edits
	svc, err := db.GetService(ctx, "cut")
	require.NoError(t, err)
	svc.PriceCents = 5000
	require.NoError(t, db.UpsertService(ctx, svc))
	require.NoError(t, db.SeedServices(ctx, []models.Service{{ID: "cut", Name: "Haircut", PriceCents: 4500, DurationMinutes: 45, Active: true}}))
	svc, err = db.GetService(ctx, "cut")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), svc.PriceCents)

	assert.ErrorIs(t, db.UpsertService(ctx, &models.Service{ID: "x", DurationMinutes: 0}), domain.ErrInvalidArgument)

	_, err = db.GetService(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	c := &models.Customer{Name: "Olga"}
	require.NoError(t, db.CreateCustomer(ctx, c))
	assert.NotEmpty(t, c.ID)
	got, err := db.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Olga", got.Name)

	assert.ErrorIs(t, db.CreateCustomer(ctx, &models.Customer{}), domain.ErrInvalidArgument)
}
