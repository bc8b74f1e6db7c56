package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"salonbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// вторник, 7 января 2025
var testDay = time.Date(2025, time.January, 7, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// seedCatalog creates one active service and one customer.
func seedCatalog(t *testing.T, db *DB) (*models.Service, *models.Customer) {
	t.Helper()
	ctx := context.Background()

	svc := &models.Service{ID: "cut", Name: "Haircut", Category: "hair", PriceCents: 4500, DurationMinutes: 45, Active: true}
	require.NoError(t, db.UpsertService(ctx, svc))

	customer := &models.Customer{Name: "Anna", Phone: "+70000000000"}
	require.NoError(t, db.CreateCustomer(ctx, customer))
	return svc, customer
}

func newHold(id string, start time.Time, minutes int, expires time.Time) *models.Hold {
	return &models.Hold{ID: id, Start: start, DurationMinutes: minutes, ExpiresAt: expires}
}

func countTasks(t *testing.T, db *DB, documentID string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sync_queue WHERE document_id = ?`, documentID).Scan(&n))
	return n
}
