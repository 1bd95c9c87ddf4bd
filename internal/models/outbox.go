package models

import "time"

// OutboxTask is a queued delivery to an external system (webhook, sheet, chat).
type OutboxTask struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	TaskType    string     `gorm:"size:32;not null;index" json:"task_type"`
	Reference   string     `gorm:"size:64;index" json:"reference"`
	Payload     string     `gorm:"type:text;not null" json:"payload"`
	Status      string     `gorm:"size:16;not null;index:idx_outbox_due" json:"status"`
	RetryCount  int        `gorm:"not null;default:0" json:"retry_count"`
	LastError   *string    `gorm:"type:text" json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `gorm:"index:idx_outbox_due" json:"next_retry_at"`
}
