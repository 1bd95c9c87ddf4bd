package database

import (
	"context"
	"fmt"

	"cabo/internal/models"
)

func (db *DB) CreateGuideSubmission(ctx context.Context, sub *models.GuideSubmission) error {
	if err := db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to create guide submission: %w", err)
	}
	return nil
}

func (db *DB) ListGuideSubmissions(ctx context.Context, guideSlug string, limit, offset int) ([]models.GuideSubmission, int64, error) {
	q := db.WithContext(ctx).Model(&models.GuideSubmission{})
	if guideSlug != "" {
		q = q.Where("guide_slug = ?", guideSlug)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	var subs []models.GuideSubmission
	if err := q.Order("created_at DESC, id DESC").Find(&subs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list guide submissions: %w", err)
	}
	return subs, total, nil
}

func (db *DB) CountGuideSubmissions(ctx context.Context) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&models.GuideSubmission{}).Count(&n).Error
	return n, err
}
