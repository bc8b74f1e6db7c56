package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/metrics"
	"salonbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const maxDrainRounds = 100

// SyncQueue is the transactional outbox written by the store.
type SyncQueue interface {
	GetPendingSyncTasks(ctx context.Context, now time.Time, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// ChangeApplier projects one recorded change onto the availability index.
type ChangeApplier interface {
	Apply(ctx context.Context, change models.ChangeEvent) error
}

// SyncWorker drains sync_queue into the availability index. Tasks of one
// document are applied in commit order; failures back off and, after
// MaxRetries, land in the redis dead-letter list.
type SyncWorker struct {
	queue         SyncQueue
	applier       ChangeApplier
	redis         *redis.Client
	retryPolicy   RetryPolicy
	wake          chan struct{}
	drainMu       sync.Mutex
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
	now           func() time.Time
}

// NewSyncWorker builds a worker; redisClient may be nil.
func NewSyncWorker(queue SyncQueue, applier ChangeApplier, redisClient *redis.Client, cfg config.SyncConfig, logger *zerolog.Logger) *SyncWorker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &SyncWorker{
		queue:         queue,
		applier:       applier,
		redis:         redisClient,
		retryPolicy:   newRetryPolicy(cfg),
		wake:          make(chan struct{}, 1),
		deadLetterKey: "availability:deadletter",
		pollInterval:  pollInterval,
		batchSize:     batchSize,
		logger:        logger,
		now:           time.Now,
	}
}

// Wake schedules a drain without waiting for the next poll. Never blocks.
func (w *SyncWorker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Exclusive runs fn while no drain is in progress, then wakes the worker so
// tasks queued meanwhile are applied.
func (w *SyncWorker) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	w.drainMu.Lock()
	defer w.Wake()
	defer w.drainMu.Unlock()
	return fn(ctx)
}

// Start launches main loop; stops when ctx is done.
func (w *SyncWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("poll_interval", w.pollInterval).Msg("sync worker started")
	defer w.logger.Info().Msg("sync worker stopped")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("fetch pending sync tasks")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

// Drain processes due tasks until none are left and returns how many were
// handled.
func (w *SyncWorker) Drain(ctx context.Context) (int, error) {
	w.drainMu.Lock()
	defer w.drainMu.Unlock()

	processed := 0
	for round := 0; round < maxDrainRounds; round++ {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		tasks, err := w.queue.GetPendingSyncTasks(ctx, w.now(), w.batchSize)
		if err != nil {
			return processed, err
		}
		if len(tasks) == 0 {
			return processed, nil
		}
		for i := range tasks {
			w.processTask(ctx, &tasks[i])
			processed++
		}
	}
	return processed, nil
}

func (w *SyncWorker) processTask(ctx context.Context, task *models.SyncTask) {
	if task.TaskType != models.TaskIndexSync {
		w.failTask(ctx, task, fmt.Errorf("unknown task type: %s", task.TaskType))
		return
	}

	change, err := w.decodePayload(task.Payload)
	if err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.applier.Apply(ctx, change); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncIndexSync("applied")
	if err := w.queue.UpdateSyncTaskStatus(ctx, task.ID, models.SyncCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed")
	}
}

func (w *SyncWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncIndexSync("retry")
	nextDelay := w.retryPolicy.NextDelay(attempt)
	nextTime := w.now().Add(nextDelay)
	w.logger.Warn().Err(cause).
		Int64("task_id", task.ID).
		Str("document_id", task.DocumentID).
		Int("attempt", attempt).
		Dur("next_delay", nextDelay).
		Msg("index sync failed, will retry")
	if err := w.queue.UpdateSyncTaskStatus(ctx, task.ID, models.SyncRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
}

func (w *SyncWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	metrics.IncIndexSync("failed")
	w.logger.Error().Err(cause).
		Int64("task_id", task.ID).
		Str("document_id", task.DocumentID).
		Msg("index sync task failed permanently")
	if err := w.queue.UpdateSyncTaskStatus(ctx, task.ID, models.SyncFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *SyncWorker) decodePayload(raw string) (models.ChangeEvent, error) {
	var change models.ChangeEvent
	if err := json.Unmarshal([]byte(raw), &change); err != nil {
		return change, err
	}
	return change, nil
}

func (w *SyncWorker) pushDeadLetter(ctx context.Context, task *models.SyncTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push")
	}
}
