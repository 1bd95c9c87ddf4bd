package database

import (
	"context"
	"testing"
	"time"

	"cabo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutbox_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.OutboxTask{TaskType: "webhook", Reference: "lead-1", Payload: `{"url":"http://x"}`}
	require.NoError(t, db.CreateOutboxTask(ctx, task))
	assert.Equal(t, models.OutboxPending, task.Status)

	tasks, err := db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	future := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxRetry, "boom", &future))

	tasks, err = db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks, "task is not due yet")

	got, err := db.GetOutboxTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "boom", *got.LastError)

	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxFailed, "gave up", nil))
	failed, err := db.GetFailedOutboxTasks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.NotNil(t, failed[0].ProcessedAt)

	require.NoError(t, db.ResetOutboxTask(ctx, task.ID))
	assert.ErrorIs(t, db.ResetOutboxTask(ctx, task.ID), ErrNotFound)

	tasks, err = db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 0, tasks[0].RetryCount)
}
