package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"
)

const holdColumns = `id, service_id, start_at, end_at, duration_minutes, status, expires_at,
                     created_at, released_at, release_reason, appointment_id`

func scanHold(row rowScanner) (*models.Hold, error) {
	var (
		h                                  models.Hold
		startAt, endAt, expiresAt, created int64
		releasedAt                         sql.NullInt64
	)
	if err := row.Scan(
		&h.ID, &h.ServiceID, &startAt, &endAt, &h.DurationMinutes, &h.Status, &expiresAt,
		&created, &releasedAt, &h.ReleaseReason, &h.AppointmentID,
	); err != nil {
		return nil, err
	}
	h.Start = fromUnix(startAt)
	h.End = fromUnix(endAt)
	h.ExpiresAt = fromUnix(expiresAt)
	h.CreatedAt = fromUnix(created)
	h.ReleasedAt = fromNullUnix(releasedAt)
	return &h, nil
}

func getHold(ctx context.Context, q queryer, id string) (*models.Hold, error) {
	row := q.QueryRowContext(ctx, `SELECT `+holdColumns+` FROM holds WHERE id = ?`, id)
	h, err := scanHold(row)
	if err != nil {
		return nil, classify(fmt.Sprintf("get hold %s", id), err)
	}
	return h, nil
}

// CreateHold inserts an active hold keyed by its idempotency key. A repeated
// key with the same window returns the stored hold and created=false; a
// repeated key with another window is an invalid argument. The window must
// not overlap a live appointment or another active hold.
func (db *DB) CreateHold(ctx context.Context, hold *models.Hold, now time.Time) (*models.Hold, bool, error) {
	if hold.ID == "" {
		return nil, false, domain.Invalid("hold id is required")
	}
	if hold.DurationMinutes <= 0 {
		return nil, false, domain.Invalid("duration must be positive")
	}
	start := hold.Start.UTC().Truncate(time.Second)
	end := start.Add(time.Duration(hold.DurationMinutes) * time.Minute)

	var (
		stored  *models.Hold
		created bool
	)
	err := db.withTx(ctx, "create hold", func(tx *sql.Tx) error {
		existing, err := getHold(ctx, tx, hold.ID)
		switch {
		case err == nil:
			if !existing.SameWindow(start, hold.DurationMinutes) {
				return domain.Invalid("idempotency key %s already used for another window", hold.ID)
			}
			// ключ не оживляет освобожденный или просроченный hold
			if !existing.ActiveAt(now) {
				return domain.Conflict("hold %s is no longer active", hold.ID)
			}
			stored = existing
			return nil
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		if err := checkWindowFree(ctx, tx, start, end, hold.ID, now); err != nil {
			return err
		}

		h := *hold
		h.Start = start
		h.End = end
		h.Status = models.HoldActive
		h.CreatedAt = now.UTC().Truncate(time.Second)
		h.ReleasedAt = nil
		h.ReleaseReason = ""
		h.AppointmentID = ""

		query := `INSERT INTO holds (id, service_id, start_at, end_at, duration_minutes, status, expires_at, created_at)
                  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query,
			h.ID, h.ServiceID, unix(h.Start), unix(h.End), h.DurationMinutes,
			h.Status, unix(h.ExpiresAt), unix(h.CreatedAt),
		); err != nil {
			return classify("insert hold", err)
		}

		// re-read so callers see the stored (second precision, UTC) values
		inserted, err := getHold(ctx, tx, h.ID)
		if err != nil {
			return err
		}
		change, err := holdChange(nil, inserted, now)
		if err != nil {
			return err
		}
		if err := enqueueChange(ctx, tx, change); err != nil {
			return err
		}
		stored = inserted
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (db *DB) GetHold(ctx context.Context, id string) (*models.Hold, error) {
	return getHold(ctx, db, id)
}

// ReleaseHold flips an active hold to released. Releasing a released hold is
// a no-op that returns changed=false.
func (db *DB) ReleaseHold(ctx context.Context, id, reason string, now time.Time) (*models.Hold, bool, error) {
	var (
		result  *models.Hold
		changed bool
	)
	err := db.withTx(ctx, "release hold", func(tx *sql.Tx) error {
		h, err := getHold(ctx, tx, id)
		if err != nil {
			return err
		}
		if h.Status == models.HoldReleased {
			result = h
			return nil
		}
		released, err := releaseHoldTx(ctx, tx, h, reason, "", now)
		if err != nil {
			return err
		}
		result = released
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, changed, nil
}

// ReleaseExpiredHolds releases up to limit active holds whose expiry has
// passed, in one transaction, and returns them.
func (db *DB) ReleaseExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*models.Hold, error) {
	if limit <= 0 {
		limit = 100
	}
	var released []*models.Hold
	err := db.withTx(ctx, "release expired holds", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+holdColumns+` FROM holds WHERE status = ? AND expires_at <= ? ORDER BY expires_at, id LIMIT ?`,
			models.HoldActive, unix(now), limit)
		if err != nil {
			return classify("list expired holds", err)
		}
		expired, err := collectHolds(rows)
		if err != nil {
			return err
		}

		for _, h := range expired {
			r, err := releaseHoldTx(ctx, tx, h, models.ReleaseExpired, "", now)
			if err != nil {
				return err
			}
			released = append(released, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// ListActiveHolds pages unexpired active holds ordered by id.
func (db *DB) ListActiveHolds(ctx context.Context, now time.Time, afterID string, limit int) ([]*models.Hold, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+holdColumns+` FROM holds WHERE status = ? AND expires_at > ? AND id > ? ORDER BY id LIMIT ?`,
		models.HoldActive, unix(now), afterID, limit)
	if err != nil {
		return nil, classify("list active holds", err)
	}
	return collectHolds(rows)
}

func releaseHoldTx(ctx context.Context, tx *sql.Tx, h *models.Hold, reason, appointmentID string, now time.Time) (*models.Hold, error) {
	releasedAt := now.UTC().Truncate(time.Second)
	res, err := tx.ExecContext(ctx,
		`UPDATE holds SET status = ?, released_at = ?, release_reason = ?, appointment_id = ? WHERE id = ? AND status = ?`,
		models.HoldReleased, unix(releasedAt), reason, appointmentID, h.ID, models.HoldActive)
	if err != nil {
		return nil, classify("release hold", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("release hold %s: %w", h.ID, domain.Conflict("hold is no longer active"))
	}

	after := *h
	after.Status = models.HoldReleased
	after.ReleasedAt = &releasedAt
	after.ReleaseReason = reason
	after.AppointmentID = appointmentID

	change, err := holdChange(h, &after, now)
	if err != nil {
		return nil, err
	}
	if err := enqueueChange(ctx, tx, change); err != nil {
		return nil, err
	}
	return &after, nil
}

func collectHolds(rows *sql.Rows) ([]*models.Hold, error) {
	defer rows.Close()
	var holds []*models.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, classify("scan hold", err)
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate holds", err)
	}
	return holds, nil
}

// checkWindowFree fails with a slot conflict when [start,end) intersects a
// live appointment or an unexpired active hold other than skipHoldID.
func checkWindowFree(ctx context.Context, tx *sql.Tx, start, end time.Time, skipHoldID string, now time.Time) error {
	var id string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM appointments WHERE status <> ? AND start_at < ? AND end_at > ? LIMIT 1`,
		models.StatusCancelled, unix(end), unix(start)).Scan(&id)
	switch {
	case err == nil:
		return domain.Conflict("overlaps appointment %s", id)
	case !errors.Is(err, sql.ErrNoRows):
		return classify("check appointment overlap", err)
	}

	err = tx.QueryRowContext(ctx,
		`SELECT id FROM holds WHERE status = ? AND expires_at > ? AND id <> ? AND start_at < ? AND end_at > ? LIMIT 1`,
		models.HoldActive, unix(now), skipHoldID, unix(end), unix(start)).Scan(&id)
	switch {
	case err == nil:
		return domain.Conflict("overlaps hold %s", id)
	case !errors.Is(err, sql.ErrNoRows):
		return classify("check hold overlap", err)
	}
	return nil
}

// queryer is satisfied by *DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
