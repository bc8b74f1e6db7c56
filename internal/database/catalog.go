package database

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/google/uuid"
)

const serviceColumns = `id, name, category, price_cents, duration_minutes, active, created_at, updated_at`

func scanService(row rowScanner) (*models.Service, error) {
	var (
		s                  models.Service
		created, updatedAt int64
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Category, &s.PriceCents, &s.DurationMinutes, &s.Active, &created, &updatedAt); err != nil {
		return nil, err
	}
	s.CreatedAt = fromUnix(created)
	s.UpdatedAt = fromUnix(updatedAt)
	return &s, nil
}

func getService(ctx context.Context, q queryer, id string) (*models.Service, error) {
	s, err := scanService(q.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id))
	if err != nil {
		return nil, classify(fmt.Sprintf("get service %s", id), err)
	}
	return s, nil
}

// UpsertService inserts or replaces a catalogue entry. Appointments keep the
// price snapshot taken at confirmation.
func (db *DB) UpsertService(ctx context.Context, svc *models.Service) error {
	if svc.ID == "" {
		return domain.Invalid("service id is required")
	}
	if svc.DurationMinutes <= 0 {
		return domain.Invalid("service %s must have a positive duration", svc.ID)
	}
	if svc.PriceCents < 0 {
		return domain.Invalid("service %s has negative price", svc.ID)
	}

	now := time.Now().UTC().Truncate(time.Second)
	query := `INSERT INTO services (id, name, category, price_cents, duration_minutes, active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                category = excluded.category,
                price_cents = excluded.price_cents,
                duration_minutes = excluded.duration_minutes,
                active = excluded.active,
                updated_at = excluded.updated_at`
	if _, err := db.ExecContext(ctx, query,
		svc.ID, svc.Name, svc.Category, svc.PriceCents, svc.DurationMinutes, svc.Active, unix(now), unix(now),
	); err != nil {
		return classify("upsert service", err)
	}
	svc.UpdatedAt = now
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = now
	}
	return nil
}

func (db *DB) GetService(ctx context.Context, id string) (*models.Service, error) {
	return getService(ctx, db, id)
}

func (db *DB) ListServices(ctx context.Context, activeOnly bool) ([]*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY category, name, id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify("list services", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, classify("scan service", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate services", err)
	}
	return services, nil
}

// SeedServices inserts configured services that do not exist yet. Existing
// rows are left alone so admin edits survive restarts.
func (db *DB) SeedServices(ctx context.Context, services []models.Service) error {
	now := unix(time.Now())
	for i := range services {
		svc := services[i]
		_, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO services (id, name, category, price_cents, duration_minutes, active, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			svc.ID, svc.Name, svc.Category, svc.PriceCents, svc.DurationMinutes, svc.Active, now, now)
		if err != nil {
			return classify(fmt.Sprintf("seed service %s", svc.ID), err)
		}
	}
	return nil
}

func getCustomer(ctx context.Context, q queryer, id string) (*models.Customer, error) {
	var (
		c       models.Customer
		created int64
	)
	err := q.QueryRowContext(ctx, `SELECT id, name, phone, email, created_at FROM customers WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &created)
	if err != nil {
		return nil, classify(fmt.Sprintf("get customer %s", id), err)
	}
	c.CreatedAt = fromUnix(created)
	return &c, nil
}

// CreateCustomer stores a customer, generating an id when none is given.
func (db *DB) CreateCustomer(ctx context.Context, c *models.Customer) error {
	if c.Name == "" {
		return domain.Invalid("customer name is required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC().Truncate(time.Second)

	_, err := db.ExecContext(ctx,
		`INSERT INTO customers (id, name, phone, email, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Phone, c.Email, unix(c.CreatedAt))
	if err != nil {
		return classify("create customer", err)
	}
	return nil
}

func (db *DB) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	return getCustomer(ctx, db, id)
}
