package database

import (
	"context"
	"fmt"
	"strings"

	"cabo/internal/models"
)

// Content is the set of listing types served by ContentStore.
type Content interface {
	models.Villa | models.Resort | models.Adventure | models.Restaurant
}

// ContentStore implements CRUD for one listing table.
type ContentStore[T Content] struct {
	db   *DB
	kind string
}

func NewContentStore[T Content](db *DB, kind string) *ContentStore[T] {
	return &ContentStore[T]{db: db, kind: kind}
}

func (s *ContentStore[T]) Kind() string { return s.kind }

func (s *ContentStore[T]) List(ctx context.Context, f models.ContentFilter) ([]T, int64, error) {
	f = f.Normalize()
	q := s.db.WithContext(ctx).Model(new(T))

	if !f.Unpublished {
		q = q.Where("published = ?", true)
	}
	if f.Featured {
		q = q.Where("featured = ?", true)
	}
	if f.Location != "" {
		q = q.Where("LOWER(location) = ?", strings.ToLower(f.Location))
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(summary) LIKE ?)", like, like)
	}
	switch s.kind {
	case models.KindVilla:
		if f.MinGuests > 0 {
			q = q.Where("max_guests >= ?", f.MinGuests)
		}
		if f.MinBedrooms > 0 {
			q = q.Where("bedrooms >= ?", f.MinBedrooms)
		}
	case models.KindAdventure:
		if f.Category != "" {
			q = q.Where("LOWER(category) = ?", strings.ToLower(f.Category))
		}
		if f.MinGuests > 0 {
			q = q.Where("(max_group = 0 OR max_group >= ?)", f.MinGuests)
		}
	case models.KindRestaurant:
		if f.Cuisine != "" {
			q = q.Where("LOWER(cuisine) = ?", strings.ToLower(f.Cuisine))
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", s.kind, err)
	}

	items := make([]T, 0, f.Limit)
	err := q.Order("sort_order ASC, name ASC").Limit(f.Limit).Offset(f.Offset).Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", s.kind, err)
	}
	return items, total, nil
}

func (s *ContentStore[T]) GetBySlug(ctx context.Context, slug string) (*T, error) {
	var item T
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&item).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (s *ContentStore[T]) GetByID(ctx context.Context, id uint) (*T, error) {
	var item T
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (s *ContentStore[T]) Create(ctx context.Context, item *T) error {
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("create %s: %w", s.kind, translate(err))
	}
	return nil
}

func (s *ContentStore[T]) Update(ctx context.Context, item *T) error {
	if err := s.db.WithContext(ctx).Save(item).Error; err != nil {
		return fmt.Errorf("update %s: %w", s.kind, translate(err))
	}
	return nil
}

func (s *ContentStore[T]) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(new(T), id)
	if res.Error != nil {
		return fmt.Errorf("delete %s: %w", s.kind, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Names returns published entry names, used to ground itinerary prompts.
func (s *ContentStore[T]) Names(ctx context.Context, limit int) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(new(T)).
		Where("published = ?", true).
		Order("featured DESC, sort_order ASC").
		Limit(limit).
		Pluck("name", &names).Error
	return names, err
}
