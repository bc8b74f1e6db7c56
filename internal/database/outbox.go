package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"salonbook/internal/models"
)

// enqueueChange records a source write for the index sync worker. It must run
// inside the transaction that performs the write.
func enqueueChange(ctx context.Context, tx *sql.Tx, change models.ChangeEvent) error {
	if change.Op == "" {
		change.Op = models.ChangeWrite
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}

	query := `INSERT INTO sync_queue (task_type, document_id, payload, status, retry_count, created_at)
              VALUES (?, ?, ?, ?, 0, ?)`
	if _, err := tx.ExecContext(ctx, query,
		models.TaskIndexSync,
		change.DocumentID,
		string(payload),
		models.SyncPending,
		unix(change.OccurredAt),
	); err != nil {
		return classify("enqueue change", err)
	}
	return nil
}

// snapshot encodes a document for a change event; nil stays absent.
func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return raw, nil
}

func holdChange(before, after *models.Hold, now time.Time) (models.ChangeEvent, error) {
	change := models.ChangeEvent{Collection: models.CollectionHolds, Op: models.ChangeWrite, OccurredAt: now}
	var err error
	if before != nil {
		change.DocumentID = before.ID
		if change.Before, err = snapshot(before); err != nil {
			return change, err
		}
	}
	if after != nil {
		change.DocumentID = after.ID
		if change.After, err = snapshot(after); err != nil {
			return change, err
		}
	}
	return change, nil
}

func appointmentChange(before, after *models.Appointment, now time.Time) (models.ChangeEvent, error) {
	change := models.ChangeEvent{Collection: models.CollectionAppointments, Op: models.ChangeWrite, OccurredAt: now}
	var err error
	if before != nil {
		change.DocumentID = before.ID
		if change.Before, err = snapshot(before); err != nil {
			return change, err
		}
	}
	if after != nil {
		change.DocumentID = after.ID
		if change.After, err = snapshot(after); err != nil {
			return change, err
		}
	}
	return change, nil
}
