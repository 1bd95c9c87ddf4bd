package service

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cabo/internal/cache"
	"cabo/internal/database"
	"cabo/internal/models"

	"github.com/rs/zerolog"
)

// ContentRepository is the storage used by ContentService; ContentStore
// implements it for every listing table.
type ContentRepository[T any] interface {
	Kind() string
	List(ctx context.Context, f models.ContentFilter) ([]T, int64, error)
	GetBySlug(ctx context.Context, slug string) (*T, error)
	GetByID(ctx context.Context, id uint) (*T, error)
	Create(ctx context.Context, item *T) error
	Update(ctx context.Context, item *T) error
	Delete(ctx context.Context, id uint) error
}

// Entry is satisfied by pointers to the listing models.
type Entry[T any] interface {
	*T
	Base() *models.ContentBase
}

// Page is one slice of a listing.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

type ContentService[T any, PT Entry[T]] struct {
	repo   ContentRepository[T]
	cache  cache.Store
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewContentService[T any, PT Entry[T]](repo ContentRepository[T], store cache.Store, ttl time.Duration, logger *zerolog.Logger) *ContentService[T, PT] {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "content").Str("kind", repo.Kind()).Logger()
	return &ContentService[T, PT]{repo: repo, cache: store, ttl: ttl, logger: &l}
}

func (s *ContentService[T, PT]) Kind() string { return s.repo.Kind() }

func (s *ContentService[T, PT]) prefix() string { return "content:" + s.repo.Kind() + ":" }

// List returns published entries. Results are cached per normalized filter.
func (s *ContentService[T, PT]) List(ctx context.Context, f models.ContentFilter) (*Page[T], error) {
	f = f.Normalize()
	f.Unpublished = false
	key := s.prefix() + "list:" + filterKey(f)

	var page Page[T]
	if s.cache != nil {
		if ok, err := cache.GetJSON(ctx, s.cache, key, &page); err == nil && ok {
			return &page, nil
		} else if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("content cache read failed")
		}
	}

	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	page = Page[T]{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}
	s.store(ctx, key, page)
	return &page, nil
}

// AdminList includes unpublished entries and bypasses the cache.
func (s *ContentService[T, PT]) AdminList(ctx context.Context, f models.ContentFilter) (*Page[T], error) {
	f = f.Normalize()
	f.Unpublished = true
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Page[T]{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// Get returns a published entry by slug.
func (s *ContentService[T, PT]) Get(ctx context.Context, slug string) (*T, error) {
	key := s.prefix() + "slug:" + slug
	if s.cache != nil {
		var item T
		if ok, err := cache.GetJSON(ctx, s.cache, key, &item); err == nil && ok {
			return &item, nil
		}
	}

	item, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !PT(item).Base().Published {
		return nil, database.ErrNotFound
	}
	s.store(ctx, key, item)
	return item, nil
}

func (s *ContentService[T, PT]) GetByID(ctx context.Context, id uint) (*T, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ContentService[T, PT]) Create(ctx context.Context, item *T) error {
	base := PT(item).Base()
	base.ID = 0
	if err := prepare(base); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.logger.Info().Uint("id", base.ID).Str("slug", base.Slug).Msg("content created")
	return nil
}

// Update replaces every editable column of an existing entry.
func (s *ContentService[T, PT]) Update(ctx context.Context, id uint, item *T) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	base := PT(item).Base()
	base.ID = id
	base.CreatedAt = PT(existing).Base().CreatedAt
	if err := prepare(base); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *ContentService[T, PT]) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func prepare(base *models.ContentBase) error {
	base.Name = strings.TrimSpace(base.Name)
	if base.Name == "" {
		return invalid("name is required")
	}
	src := base.Slug
	if strings.TrimSpace(src) == "" {
		src = base.Name
	}
	base.Slug = models.Slugify(src)
	if base.Slug == "" {
		return invalid("slug must contain letters or digits")
	}
	return nil
}

func (s *ContentService[T, PT]) store(ctx context.Context, key string, v interface{}) {
	if s.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, s.cache, key, v, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("content cache write failed")
	}
}

func (s *ContentService[T, PT]) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, s.prefix()); err != nil {
		s.logger.Warn().Err(err).Msg("content cache invalidation failed")
	}
}

func filterKey(f models.ContentFilter) string {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, strings.ToLower(val))
		}
	}
	set("loc", f.Location)
	set("q", f.Search)
	set("cat", f.Category)
	set("cuisine", f.Cuisine)
	if f.Featured {
		v.Set("featured", "1")
	}
	if f.MinGuests > 0 {
		v.Set("guests", strconv.Itoa(f.MinGuests))
	}
	if f.MinBedrooms > 0 {
		v.Set("beds", strconv.Itoa(f.MinBedrooms))
	}
	v.Set("limit", strconv.Itoa(f.Limit))
	v.Set("offset", strconv.Itoa(f.Offset))
	return v.Encode()
}
