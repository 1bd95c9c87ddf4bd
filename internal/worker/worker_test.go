package worker

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"cabo/internal/config"
	"cabo/internal/database"
	"cabo/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "worker.db")}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func loadTask(t *testing.T, db *database.DB, id int64) *models.OutboxTask {
	t.Helper()
	task, err := db.GetOutboxTask(context.Background(), id)
	require.NoError(t, err)
	return task
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	w := NewOutboxWorker(db, nil, Options{}, nil)

	var got NotifyPayload
	w.Register(TaskNotify, func(_ context.Context, task *models.OutboxTask) error {
		return json.Unmarshal([]byte(task.Payload), &got)
	})

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, TaskNotify, "lead-1", NotifyPayload{Text: "hi"}))

	queued, ok := w.tryLocalQueue()
	require.True(t, ok, "expected task in local queue")
	w.processQueued(ctx, &queued)

	task := loadTask(t, db, queued.ID)
	assert.Equal(t, models.OutboxCompleted, task.Status)
	assert.Equal(t, 0, task.RetryCount)
	assert.Nil(t, task.NextRetryAt)
	assert.Equal(t, "hi", got.Text)

	// a second delivery of the same queued task is ignored
	calls := 0
	w.Register(TaskNotify, func(context.Context, *models.OutboxTask) error { calls++; return nil })
	w.processQueued(ctx, &queued)
	assert.Zero(t, calls)
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	w := NewOutboxWorker(db, nil, Options{Retry: RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}}, nil)
	w.Register(TaskWebhook, func(context.Context, *models.OutboxTask) error { return errors.New("boom") })

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, TaskWebhook, "lead-2", WebhookPayload{URL: "http://example"}))
	queued, ok := w.tryLocalQueue()
	require.True(t, ok)

	before := time.Now()
	w.processQueued(ctx, &queued)

	task := loadTask(t, db, queued.ID)
	assert.Equal(t, models.OutboxRetry, task.Status)
	assert.Equal(t, 1, task.RetryCount)
	require.NotNil(t, task.NextRetryAt)
	assert.True(t, task.NextRetryAt.After(before))
	require.NotNil(t, task.LastError)
	assert.Equal(t, "boom", *task.LastError)
}

func TestProcessTaskFailsAfterMaxRetries(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	w := NewOutboxWorker(db, client, Options{Retry: RetryPolicy{MaxRetries: 1}, QueueKey: "test"}, nil)
	w.Register(TaskWebhook, func(context.Context, *models.OutboxTask) error { return errors.New("still down") })

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, TaskWebhook, "lead-3", WebhookPayload{URL: "http://example"}))

	queued, ok := w.tryRedis(ctx)
	require.True(t, ok, "expected task in redis queue")
	w.processQueued(ctx, &queued)

	task := loadTask(t, db, queued.ID)
	assert.Equal(t, models.OutboxFailed, task.Status)
	assert.NotNil(t, task.ProcessedAt)

	dead, err := client.LLen(ctx, "test:deadletter").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func TestProcessTaskPermanentError(t *testing.T) {
	db := newTestDB(t)
	w := NewOutboxWorker(db, nil, Options{Retry: RetryPolicy{MaxRetries: 5}}, nil)
	w.Register(TaskWebhook, func(context.Context, *models.OutboxTask) error {
		return Permanent(errors.New("400 bad request"))
	})

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, TaskWebhook, "lead-4", WebhookPayload{URL: "http://example"}))
	queued, _ := w.tryLocalQueue()
	w.processQueued(ctx, &queued)

	task := loadTask(t, db, queued.ID)
	assert.Equal(t, models.OutboxFailed, task.Status)
	assert.Equal(t, 0, task.RetryCount)
}

func TestProcessTaskUnknownType(t *testing.T) {
	db := newTestDB(t)
	w := NewOutboxWorker(db, nil, Options{}, nil)

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, "carrier_pigeon", "", struct{}{}))
	queued, _ := w.tryLocalQueue()
	w.processQueued(ctx, &queued)

	assert.Equal(t, models.OutboxFailed, loadTask(t, db, queued.ID).Status)
}

func TestStartDrainsQueueAndStops(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	w := NewOutboxWorker(db, client, Options{PollInterval: 20 * time.Millisecond}, nil)
	var delivered atomic.Int32
	w.Register(TaskNotify, func(context.Context, *models.OutboxTask) error {
		delivered.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Enqueue(ctx, TaskNotify, "", NotifyPayload{Text: "x"}))
	}

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return delivered.Load() == 3 }, 5*time.Second, 20*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}

	pending, err := db.GetPendingOutboxTasks(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRequeueAfterReset(t *testing.T) {
	db := newTestDB(t)
	w := NewOutboxWorker(db, nil, Options{Retry: RetryPolicy{MaxRetries: 1}}, nil)
	fail := true
	w.Register(TaskNotify, func(context.Context, *models.OutboxTask) error {
		if fail {
			return errors.New("down")
		}
		return nil
	})

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, TaskNotify, "", NotifyPayload{Text: "x"}))
	queued, _ := w.tryLocalQueue()
	w.processQueued(ctx, &queued)
	require.Equal(t, models.OutboxFailed, loadTask(t, db, queued.ID).Status)

	fail = false
	require.NoError(t, db.ResetOutboxTask(ctx, queued.ID))
	require.NoError(t, w.Requeue(ctx, queued.ID))
	again, ok := w.tryLocalQueue()
	require.True(t, ok)
	w.processQueued(ctx, &again)
	assert.Equal(t, models.OutboxCompleted, loadTask(t, db, queued.ID).Status)
}

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 10 * time.Second, BackoffFactor: 2}
	assert.Equal(t, time.Second, p.NextDelay(0))
	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 10*time.Second, p.NextDelay(10))

	assert.Equal(t, time.Second, RetryPolicy{}.NextDelay(1))
}

func TestRetryPolicyExhaustedAndWait(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond}
	assert.False(t, p.Exhausted(2))
	assert.True(t, p.Exhausted(3))
	assert.False(t, RetryPolicy{}.Exhausted(100))

	require.NoError(t, p.Wait(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := RetryPolicy{InitialDelay: time.Hour}
	assert.ErrorIs(t, slow.Wait(ctx, 1), context.Canceled)
}
