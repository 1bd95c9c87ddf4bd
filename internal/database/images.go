package database

import (
	"context"
	"fmt"

	"cabo/internal/models"
)

func (db *DB) CreateImage(ctx context.Context, img *models.Image) error {
	if err := db.WithContext(ctx).Create(img).Error; err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	return nil
}

func (db *DB) GetImage(ctx context.Context, id uint) (*models.Image, error) {
	var img models.Image
	if err := db.WithContext(ctx).First(&img, id).Error; err != nil {
		return nil, translate(err)
	}
	return &img, nil
}

func (db *DB) ListImages(ctx context.Context, ownerType string, ownerID uint) ([]models.Image, error) {
	var out []models.Image
	err := db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Order("sort_order ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return out, nil
}

func (db *DB) DeleteImage(ctx context.Context, id uint) error {
	res := db.WithContext(ctx).Delete(&models.Image{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete image: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
