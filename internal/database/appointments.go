package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/google/uuid"
)

const appointmentColumns = `id, customer_id, service_id, hold_id, start_at, end_at, duration_minutes, status,
                            attendance, booked_price_cents, tip_cents, total_price_cents, created_at,
                            updated_at, cancelled_at`

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var (
		a                                   models.Appointment
		startAt, endAt, createdAt, updateAt int64
		cancelledAt                         sql.NullInt64
	)
	if err := row.Scan(
		&a.ID, &a.CustomerID, &a.ServiceID, &a.HoldID, &startAt, &endAt, &a.DurationMinutes, &a.Status,
		&a.Attendance, &a.BookedPriceCents, &a.TipCents, &a.TotalPriceCents, &createdAt,
		&updateAt, &cancelledAt,
	); err != nil {
		return nil, err
	}
	a.Start = fromUnix(startAt)
	a.End = fromUnix(endAt)
	a.CreatedAt = fromUnix(createdAt)
	a.UpdatedAt = fromUnix(updateAt)
	a.CancelledAt = fromNullUnix(cancelledAt)
	return &a, nil
}

func getAppointment(ctx context.Context, q queryer, id string) (*models.Appointment, error) {
	row := q.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	a, err := scanAppointment(row)
	if err != nil {
		return nil, classify(fmt.Sprintf("get appointment %s", id), err)
	}
	return a, nil
}

func getAppointmentByHold(ctx context.Context, q queryer, holdID string) (*models.Appointment, error) {
	row := q.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE hold_id = ?`, holdID)
	a, err := scanAppointment(row)
	if err != nil {
		return nil, classify(fmt.Sprintf("get appointment by hold %s", holdID), err)
	}
	return a, nil
}

// ConfirmAppointment is the only place overlapping bookings are excluded.
// Inside one immediate transaction it resolves the hold (if any), re-queries
// overlap against live appointments and other active holds, inserts the
// appointment with a price snapshot and releases the consumed hold.
// Re-submitting an already consumed hold returns the stored appointment with
// created=false.
func (db *DB) ConfirmAppointment(ctx context.Context, in models.ConfirmInput, now time.Time) (*models.Appointment, bool, error) {
	if in.CustomerID == "" {
		return nil, false, domain.Invalid("customer_id is required")
	}
	if in.ServiceID == "" {
		return nil, false, domain.Invalid("service_id is required")
	}
	if in.DurationMinutes < 0 {
		return nil, false, domain.Invalid("duration must be positive")
	}
	if in.TipCents < 0 {
		return nil, false, domain.Invalid("tip must not be negative")
	}

	var (
		result  *models.Appointment
		created bool
	)
	err := db.withTx(ctx, "confirm appointment", func(tx *sql.Tx) error {
		start := in.Start.UTC().Truncate(time.Second)
		duration := in.DurationMinutes

		var hold *models.Hold
		if in.HoldID != "" {
			existing, err := getAppointmentByHold(ctx, tx, in.HoldID)
			if err == nil {
				result = existing
				return nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}

			hold, err = getHold(ctx, tx, in.HoldID)
			if err != nil {
				return err
			}
			if !hold.ActiveAt(now) {
				return domain.Conflict("hold %s is expired or released", hold.ID)
			}
			if in.Start.IsZero() {
				start = hold.Start
			}
			if duration == 0 {
				duration = hold.DurationMinutes
			}
			if !hold.SameWindow(start, duration) {
				return domain.Invalid("window does not match hold %s", hold.ID)
			}
		}

		if duration <= 0 {
			return domain.Invalid("duration must be positive")
		}
		if in.Start.IsZero() && hold == nil {
			return domain.Invalid("start is required")
		}
		if start.Before(now) && !in.AdminOverride {
			return domain.Invalid("start %s is in the past", start.Format(time.RFC3339))
		}

		svc, err := getService(ctx, tx, in.ServiceID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Invalid("unknown service %s", in.ServiceID)
		}
		if err != nil {
			return err
		}
		if !svc.Active {
			return domain.Invalid("service %s is not active", svc.ID)
		}

		if _, err := getCustomer(ctx, tx, in.CustomerID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Invalid("unknown customer %s", in.CustomerID)
			}
			return err
		}

		end := start.Add(time.Duration(duration) * time.Minute)
		if err := checkWindowFree(ctx, tx, start, end, in.HoldID, now); err != nil {
			return err
		}

		stamp := now.UTC().Truncate(time.Second)
		appt := &models.Appointment{
			ID:               uuid.NewString(),
			CustomerID:       in.CustomerID,
			ServiceID:        svc.ID,
			HoldID:           in.HoldID,
			Start:            start,
			End:              end,
			DurationMinutes:  duration,
			Status:           models.StatusConfirmed,
			Attendance:       models.AttendancePending,
			BookedPriceCents: svc.PriceCents,
			TipCents:         in.TipCents,
			TotalPriceCents:  svc.PriceCents + in.TipCents,
			CreatedAt:        stamp,
			UpdatedAt:        stamp,
		}

		query := `INSERT INTO appointments (
                    id, customer_id, service_id, hold_id, start_at, end_at, duration_minutes, status,
                    attendance, booked_price_cents, tip_cents, total_price_cents, created_at, updated_at
                  ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query,
			appt.ID, appt.CustomerID, appt.ServiceID, appt.HoldID, unix(appt.Start), unix(appt.End),
			appt.DurationMinutes, appt.Status, appt.Attendance, appt.BookedPriceCents, appt.TipCents,
			appt.TotalPriceCents, unix(appt.CreatedAt), unix(appt.UpdatedAt),
		); err != nil {
			return classify("insert appointment", err)
		}

		if hold != nil {
			if _, err := releaseHoldTx(ctx, tx, hold, models.ReleaseConfirmed, appt.ID, now); err != nil {
				return err
			}
		}

		change, err := appointmentChange(nil, appt, now)
		if err != nil {
			return err
		}
		if err := enqueueChange(ctx, tx, change); err != nil {
			return err
		}

		result = appt
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func (db *DB) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	return getAppointment(ctx, db, id)
}

// ListAppointments returns appointments starting in [from, to).
func (db *DB) ListAppointments(ctx context.Context, from, to time.Time) ([]*models.Appointment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE start_at >= ? AND start_at < ? ORDER BY start_at, id`,
		unix(from), unix(to))
	if err != nil {
		return nil, classify("list appointments", err)
	}
	return collectAppointments(rows)
}

// ListLiveAppointments pages non-cancelled appointments ordered by id.
func (db *DB) ListLiveAppointments(ctx context.Context, afterID string, limit int) ([]*models.Appointment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE status <> ? AND id > ? ORDER BY id LIMIT ?`,
		models.StatusCancelled, afterID, limit)
	if err != nil {
		return nil, classify("list live appointments", err)
	}
	return collectAppointments(rows)
}

// CancelAppointment cancels a pending or confirmed appointment. Cancelling a
// cancelled appointment returns it unchanged.
func (db *DB) CancelAppointment(ctx context.Context, id string, now time.Time) (*models.Appointment, error) {
	var result *models.Appointment
	err := db.withTx(ctx, "cancel appointment", func(tx *sql.Tx) error {
		before, err := getAppointment(ctx, tx, id)
		if err != nil {
			return err
		}
		switch before.Status {
		case models.StatusCancelled:
			result = before
			return nil
		case models.StatusCompleted:
			return domain.Invalid("appointment %s is already completed", id)
		}

		stamp := now.UTC().Truncate(time.Second)
		after := *before
		after.Status = models.StatusCancelled
		after.CancelledAt = &stamp
		after.UpdatedAt = stamp
		if err := updateAppointmentTx(ctx, tx, before, &after, now); err != nil {
			return err
		}
		result = &after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteAppointment hard-deletes an appointment. The change event carries no
// snapshots.
func (db *DB) DeleteAppointment(ctx context.Context, id string, now time.Time) error {
	return db.withTx(ctx, "delete appointment", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
		if err != nil {
			return classify("delete appointment", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("delete appointment %s: %w", id, domain.ErrNotFound)
		}
		return enqueueChange(ctx, tx, models.ChangeEvent{
			Collection: models.CollectionAppointments,
			DocumentID: id,
			Op:         models.ChangeDelete,
			OccurredAt: now,
		})
	})
}

// SetAttendance records attendance. Marking attended or no-show completes a
// pending or confirmed appointment.
func (db *DB) SetAttendance(ctx context.Context, id, attendance string, now time.Time) (*models.Appointment, error) {
	switch attendance {
	case models.AttendancePending, models.AttendanceAttended, models.AttendanceNoShow:
	default:
		return nil, domain.Invalid("unknown attendance %q", attendance)
	}

	var result *models.Appointment
	err := db.withTx(ctx, "set attendance", func(tx *sql.Tx) error {
		before, err := getAppointment(ctx, tx, id)
		if err != nil {
			return err
		}
		if before.Status == models.StatusCancelled {
			return domain.Invalid("appointment %s is cancelled", id)
		}

		after := *before
		after.Attendance = attendance
		after.UpdatedAt = now.UTC().Truncate(time.Second)
		if attendance != models.AttendancePending && after.Status != models.StatusCompleted {
			after.Status = models.StatusCompleted
		}
		if err := updateAppointmentTx(ctx, tx, before, &after, now); err != nil {
			return err
		}
		result = &after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CompletePastAppointments marks up to limit pending or confirmed
// appointments starting before the cut-off as completed and attended.
func (db *DB) CompletePastAppointments(ctx context.Context, before, now time.Time, limit int) ([]*models.Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	var completed []*models.Appointment
	err := db.withTx(ctx, "complete past appointments", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+appointmentColumns+` FROM appointments
             WHERE start_at < ? AND status IN (?, ?) ORDER BY start_at, id LIMIT ?`,
			unix(before), models.StatusPending, models.StatusConfirmed, limit)
		if err != nil {
			return classify("list past appointments", err)
		}
		past, err := collectAppointments(rows)
		if err != nil {
			return err
		}

		stamp := now.UTC().Truncate(time.Second)
		for _, a := range past {
			after := *a
			after.Status = models.StatusCompleted
			if after.Attendance == models.AttendancePending {
				after.Attendance = models.AttendanceAttended
			}
			after.UpdatedAt = stamp
			if err := updateAppointmentTx(ctx, tx, a, &after, now); err != nil {
				return err
			}
			completed = append(completed, &after)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

func updateAppointmentTx(ctx context.Context, tx *sql.Tx, before, after *models.Appointment, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE appointments SET status = ?, attendance = ?, updated_at = ?, cancelled_at = ? WHERE id = ?`,
		after.Status, after.Attendance, unix(after.UpdatedAt), nullUnix(after.CancelledAt), after.ID)
	if err != nil {
		return classify("update appointment", err)
	}

	change, err := appointmentChange(before, after, now)
	if err != nil {
		return err
	}
	return enqueueChange(ctx, tx, change)
}

func collectAppointments(rows *sql.Rows) ([]*models.Appointment, error) {
	defer rows.Close()
	var appts []*models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, classify("scan appointment", err)
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate appointments", err)
	}
	return appts, nil
}
