package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"salonbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueuePerDocumentOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := at(8, 0)

	_, _, err := db.CreateHold(ctx, newHold("a", at(10, 0), 30, now.Add(10*time.Minute)), now)
	require.NoError(t, err)
	_, _, err = db.CreateHold(ctx, newHold("b", at(11, 0), 30, now.Add(10*time.Minute)), now)
	require.NoError(t, err)
	_, _, err = db.ReleaseHold(ctx, "a", models.ReleaseCancelled, now)
	require.NoError(t, err)

	// only the head of each document is due
	tasks, err := db.GetPendingSyncTasks(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].DocumentID)
	assert.Equal(t, "b", tasks[1].DocumentID)
	assert.Equal(t, models.TaskIndexSync, tasks[0].TaskType)

	var change models.ChangeEvent
	require.NoError(t, json.Unmarshal([]byte(tasks[0].Payload), &change))
	assert.Equal(t, models.CollectionHolds, change.Collection)
	assert.Empty(t, change.Before)
	assert.NotEmpty(t, change.After)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, tasks[0].ID, models.SyncCompleted, "", nil))

	tasks, err = db.GetPendingSyncTasks(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "b", tasks[0].DocumentID)
	assert.Equal(t, "a", tasks[1].DocumentID)

	require.NoError(t, json.Unmarshal([]byte(tasks[1].Payload), &change))
	assert.NotEmpty(t, change.Before)
	assert.NotEmpty(t, change.After)
}

func TestSyncQueueRetryAndFail(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := at(8, 0)

	_, _, err := db.CreateHold(ctx, newHold("a", at(10, 0), 30, now.Add(10*time.Minute)), now)
	require.NoError(t, err)
	_, _, err = db.ReleaseHold(ctx, "a", models.ReleaseCancelled, now)
	require.NoError(t, err)

	tasks, err := db.GetPendingSyncTasks(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	head := tasks[0]

	nextRetry := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, head.ID, models.SyncRetry, "temporary error", &nextRetry))

	// a retrying head blocks its successors
	tasks, err = db.GetPendingSyncTasks(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	tasks, err = db.GetPendingSyncTasks(ctx, nextRetry.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, head.ID, tasks[0].ID)
	assert.Equal(t, 1, tasks[0].RetryCount)
	require.NotNil(t, tasks[0].LastError)
	assert.Equal(t, "temporary error", *tasks[0].LastError)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, head.ID, models.SyncFailed, "gave up", nil))

	failed, err := db.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "gave up", *failed[0].LastError)
	assert.NotNil(t, failed[0].ProcessedAt)

	pending, err := db.CountPendingSyncTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestPurgeCompletedSyncTasks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := at(8, 0)

	_, _, err := db.CreateHold(ctx, newHold("a", at(10, 0), 30, now.Add(10*time.Minute)), now)
	require.NoError(t, err)

	tasks, err := db.GetPendingSyncTasks(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, tasks[0].ID, models.SyncCompleted, "", nil))

	n, err := db.PurgeCompletedSyncTasks(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, countTasks(t, db, "a"))
}
