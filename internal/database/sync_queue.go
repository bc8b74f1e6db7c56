package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salonbook/internal/models"
)

const syncTaskColumns = `id, task_type, document_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func scanSyncTask(row rowScanner) (models.SyncTask, error) {
	var (
		t                        models.SyncTask
		lastError                sql.NullString
		created                  int64
		processedAt, nextRetryAt sql.NullInt64
	)
	if err := row.Scan(
		&t.ID, &t.TaskType, &t.DocumentID, &t.Payload, &t.Status, &t.RetryCount, &lastError, &created, &processedAt, &nextRetryAt,
	); err != nil {
		return t, err
	}
	if lastError.Valid {
		t.LastError = &lastError.String
	}
	t.CreatedAt = fromUnix(created)
	t.ProcessedAt = fromNullUnix(processedAt)
	t.NextRetryAt = fromNullUnix(nextRetryAt)
	return t, nil
}

// GetPendingSyncTasks returns due tasks that are the oldest unfinished task
// of their document, so changes to one document apply in commit order.
func (db *DB) GetPendingSyncTasks(ctx context.Context, now time.Time, limit int) ([]models.SyncTask, error) {
	query := `SELECT ` + syncTaskColumns + `
              FROM sync_queue q
              WHERE q.status IN ('pending', 'retry')
                AND (q.next_retry_at IS NULL OR q.next_retry_at <= ?)
                AND NOT EXISTS (
                    SELECT 1 FROM sync_queue e
                    WHERE e.document_id = q.document_id
                      AND e.id < q.id
                      AND e.status IN ('pending', 'retry')
                )
              ORDER BY q.id ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, unix(now), limit)
	if err != nil {
		return nil, classify("get pending sync tasks", err)
	}
	return collectSyncTasks(rows)
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now()

	var lastError sql.NullString
	if errMsg != "" {
		lastError = sql.NullString{String: errMsg, Valid: true}
	}

	switch status {
	case models.SyncRetry:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, lastError, nullUnix(nextRetryAt), id}
	case models.SyncCompleted, models.SyncFailed:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, lastError, nullUnix(nextRetryAt), unix(now), id}
	default:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, lastError, nullUnix(nextRetryAt), id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return classify("update sync task status", err)
	}
	return nil
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+syncTaskColumns+` FROM sync_queue WHERE status = 'failed' ORDER BY id DESC`)
	if err != nil {
		return nil, classify("get failed sync tasks", err)
	}
	return collectSyncTasks(rows)
}

// CountPendingSyncTasks reports the backlog; readiness uses it.
func (db *DB) CountPendingSyncTasks(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE status IN ('pending', 'retry')`).Scan(&n)
	if err != nil {
		return 0, classify("count pending sync tasks", err)
	}
	return n, nil
}

// PurgeCompletedSyncTasks deletes completed tasks processed before the cut-off.
func (db *DB) PurgeCompletedSyncTasks(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE status = 'completed' AND processed_at < ?`, unix(before))
	if err != nil {
		return 0, classify("purge sync tasks", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func collectSyncTasks(rows *sql.Rows) ([]models.SyncTask, error) {
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		t, err := scanSyncTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate sync tasks", err)
	}
	return tasks, nil
}
