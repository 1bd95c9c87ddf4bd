package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cabo/internal/domain"
	"cabo/internal/metrics"
	"cabo/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskWebhook      = "webhook"
	TaskSheets       = "sheets"
	TaskSheetsResync = "sheets_resync"
	TaskNotify       = "notify"
)

// ErrPermanent marks failures that retrying cannot fix.
var ErrPermanent = errors.New("permanent failure")

// Permanent wraps err so the worker fails the task without retrying.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Handler delivers one task. Returning nil completes it.
type Handler func(ctx context.Context, task *models.OutboxTask) error

type Options struct {
	Retry        RetryPolicy
	PollInterval time.Duration
	BatchSize    int
	QueueKey     string
}

// OutboxWorker persists tasks, then delivers them from the in-memory queue,
// Redis, or by polling the database for due retries.
type OutboxWorker struct {
	store         domain.OutboxRepository
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.OutboxTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewOutboxWorker(store domain.OutboxRepository, redisClient *redis.Client, opts Options, logger *zerolog.Logger) *OutboxWorker {
	retry := opts.Retry
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 10 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 20
	}
	if opts.QueueKey == "" {
		opts.QueueKey = "outbox"
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &OutboxWorker{
		store:         store,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.OutboxTask, 256),
		redisQueueKey: opts.QueueKey + ":queue",
		deadLetterKey: opts.QueueKey + ":deadletter",
		pollInterval:  opts.PollInterval,
		batchSize:     opts.BatchSize,
		logger:        logger,
		handlers:      make(map[string]Handler),
	}
}

// Register sets the handler for a task type.
func (w *OutboxWorker) Register(taskType string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[taskType] = h
}

func (w *OutboxWorker) Handles(taskType string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.handlers[taskType]
	return ok
}

// Enqueue persists the task and schedules it via Redis or the in-memory queue.
func (w *OutboxWorker) Enqueue(ctx context.Context, taskType, reference string, payload interface{}) error {
	if taskType == "" {
		return errors.New("task type is required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.OutboxTask{
		TaskType:  taskType,
		Reference: reference,
		Payload:   string(raw),
		Status:    models.OutboxPending,
		CreatedAt: time.Now(),
	}
	if err := w.store.CreateOutboxTask(ctx, &task); err != nil {
		return fmt.Errorf("persist outbox task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("in-memory queue full, task left to polling")
	}
	return nil
}

// Requeue schedules an existing task, used after an admin resets a failed one.
func (w *OutboxWorker) Requeue(ctx context.Context, id int64) error {
	task, err := w.store.GetOutboxTask(ctx, id)
	if err != nil {
		return err
	}
	select {
	case w.queue <- *task:
	default:
	}
	return nil
}

// Start runs the main loop until ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("outbox worker started")
	defer w.logger.Info().Msg("outbox worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processQueued(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processQueued(ctx, &t)
			continue
		}

		tasks, err := w.store.GetPendingOutboxTasks(ctx, w.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error().Err(err).Msg("fetch pending tasks")
			w.sleep(ctx)
			continue
		}
		if len(tasks) == 0 {
			w.sleep(ctx)
			continue
		}
		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *OutboxWorker) sleep(ctx context.Context) {
	t := time.NewTimer(w.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *OutboxWorker) tryLocalQueue() (models.OutboxTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.OutboxTask{}, false
	}
}

func (w *OutboxWorker) tryRedis(ctx context.Context) (models.OutboxTask, bool) {
	if w.redis == nil {
		return models.OutboxTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil) {
			return models.OutboxTask{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		return models.OutboxTask{}, false
	}
	if len(res) != 2 {
		return models.OutboxTask{}, false
	}
	var task models.OutboxTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.OutboxTask{}, false
	}
	return task, true
}

// processQueued reloads a queued task so one already handled by the
// database poll is not delivered twice.
func (w *OutboxWorker) processQueued(ctx context.Context, queued *models.OutboxTask) {
	task, err := w.store.GetOutboxTask(ctx, queued.ID)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", queued.ID).Msg("reload queued task")
		return
	}
	if task.Status != models.OutboxPending && task.Status != models.OutboxRetry {
		return
	}
	if task.NextRetryAt != nil && task.NextRetryAt.After(time.Now()) {
		return
	}
	w.processTask(ctx, task)
}

func (w *OutboxWorker) processTask(ctx context.Context, task *models.OutboxTask) {
	w.mu.RLock()
	h, ok := w.handlers[task.TaskType]
	w.mu.RUnlock()
	if !ok {
		w.failTask(ctx, task, fmt.Errorf("unknown task type: %s", task.TaskType))
		return
	}

	if err := h(ctx, task); err != nil {
		if errors.Is(err, ErrPermanent) {
			w.failTask(ctx, task, err)
			return
		}
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncOutbox(task.TaskType, "completed")
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed")
	}
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, task *models.OutboxTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncOutbox(task.TaskType, "retry")
	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Str("task_type", task.TaskType).
		Int("attempt", attempt).Time("next_retry_at", nextTime).Msg("delivery failed, will retry")
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
}

func (w *OutboxWorker) failTask(ctx context.Context, task *models.OutboxTask, cause error) {
	metrics.IncOutbox(task.TaskType, "failed")
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("task_type", task.TaskType).Msg("delivery failed permanently")
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *OutboxWorker) pushRedis(ctx context.Context, task models.OutboxTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *OutboxWorker) pushDeadLetter(ctx context.Context, task *models.OutboxTask) {
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
