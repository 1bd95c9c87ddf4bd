package database

import (
	"context"
	"fmt"
	"time"

	"cabo/internal/models"

	"gorm.io/gorm"
)

func (db *DB) CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error {
	if task.Status == "" {
		task.Status = models.OutboxPending
	}
	if err := db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create outbox task: %w", err)
	}
	return nil
}

func (db *DB) GetOutboxTask(ctx context.Context, id int64) (*models.OutboxTask, error) {
	var t models.OutboxTask
	if err := db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// GetPendingOutboxTasks returns tasks that are due now, oldest first.
func (db *DB) GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error) {
	var tasks []models.OutboxTask
	err := db.WithContext(ctx).
		Where("status IN ?", []string{models.OutboxPending, models.OutboxRetry}).
		Where("(next_retry_at IS NULL OR next_retry_at <= ?)", time.Now()).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get pending outbox tasks: %w", err)
	}
	return tasks, nil
}

func (db *DB) UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	updates := map[string]interface{}{
		"status":        status,
		"next_retry_at": nextRetryAt,
	}
	if errMsg != "" {
		updates["last_error"] = errMsg
	} else {
		updates["last_error"] = nil
	}

	q := db.WithContext(ctx).Model(&models.OutboxTask{}).Where("id = ?", id)
	switch status {
	case models.OutboxRetry:
		updates["retry_count"] = gorm.Expr("retry_count + 1")
	case models.OutboxCompleted, models.OutboxFailed:
		updates["processed_at"] = time.Now()
	}

	if err := q.Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update outbox task status: %w", err)
	}
	return nil
}

func (db *DB) GetFailedOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error) {
	var tasks []models.OutboxTask
	q := db.WithContext(ctx).Where("status = ?", models.OutboxFailed).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to get failed outbox tasks: %w", err)
	}
	return tasks, nil
}

// ResetOutboxTask puts a failed task back in the queue with a fresh retry budget.
func (db *DB) ResetOutboxTask(ctx context.Context, id int64) error {
	res := db.WithContext(ctx).Model(&models.OutboxTask{}).
		Where("id = ? AND status = ?", id, models.OutboxFailed).
		Updates(map[string]interface{}{
			"status":        models.OutboxPending,
			"retry_count":   0,
			"next_retry_at": nil,
			"processed_at":  nil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reset outbox task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
