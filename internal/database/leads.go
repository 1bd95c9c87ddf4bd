package database

import (
	"context"
	"fmt"
	"time"

	"cabo/internal/models"
)

func (db *DB) CreateLead(ctx context.Context, lead *models.Lead) error {
	if lead.Status == "" {
		lead.Status = models.LeadNew
	}
	if err := db.WithContext(ctx).Create(lead).Error; err != nil {
		return fmt.Errorf("failed to create lead: %w", translate(err))
	}
	return nil
}

func (db *DB) GetLead(ctx context.Context, id uint) (*models.Lead, error) {
	var lead models.Lead
	if err := db.WithContext(ctx).First(&lead, id).Error; err != nil {
		return nil, translate(err)
	}
	return &lead, nil
}

func (db *DB) GetLeadByPublicID(ctx context.Context, publicID string) (*models.Lead, error) {
	var lead models.Lead
	if err := db.WithContext(ctx).Where("public_id = ?", publicID).First(&lead).Error; err != nil {
		return nil, translate(err)
	}
	return &lead, nil
}

// ListLeads returns the newest leads first together with the unpaged total.
func (db *DB) ListLeads(ctx context.Context, f models.LeadFilter) ([]models.Lead, int64, error) {
	q := db.WithContext(ctx).Model(&models.Lead{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.FormType != "" {
		q = q.Where("form_type = ?", f.FormType)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count leads: %w", err)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var leads []models.Lead
	if err := q.Order("created_at DESC, id DESC").Find(&leads).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, total, nil
}

func (db *DB) UpdateLeadStatus(ctx context.Context, id uint, status string) error {
	res := db.WithContext(ctx).Model(&models.Lead{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to update lead status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) MarkLeadForwarded(ctx context.Context, publicID string, at time.Time) error {
	return db.WithContext(ctx).Model(&models.Lead{}).
		Where("public_id = ? AND forwarded_at IS NULL", publicID).
		Update("forwarded_at", at).Error
}

func (db *DB) LeadStats(ctx context.Context, now time.Time) (*models.LeadStats, error) {
	stats := &models.LeadStats{ByFormType: map[string]int64{}}

	if err := db.WithContext(ctx).Model(&models.Lead{}).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}
	if err := db.WithContext(ctx).Model(&models.Lead{}).
		Where("created_at >= ?", now.AddDate(0, 0, -7)).
		Count(&stats.LastWeek).Error; err != nil {
		return nil, fmt.Errorf("failed to count recent leads: %w", err)
	}

	var rows []struct {
		FormType string
		N        int64
	}
	if err := db.WithContext(ctx).Model(&models.Lead{}).
		Select("form_type, COUNT(*) AS n").
		Group("form_type").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to group leads: %w", err)
	}
	for _, r := range rows {
		stats.ByFormType[r.FormType] = r.N
	}
	return stats, nil
}
