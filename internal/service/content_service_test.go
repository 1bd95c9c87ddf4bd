package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"cabo/internal/cache"
	"cabo/internal/database"
	"cabo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVillaService(t *testing.T) (*ContentService[models.Villa, *models.Villa], *cache.MemoryCache) {
	t.Helper()
	db := newTestDB(t)
	mem := cache.NewMemoryCache(100)
	t.Cleanup(mem.Stop)
	store := database.NewContentStore[models.Villa](db, models.KindVilla)
	return NewContentService[models.Villa](store, mem, time.Minute, nil), mem
}

func villa(name string, published bool) *models.Villa {
	v := &models.Villa{MaxGuests: 8, Bedrooms: 4, NightlyRate: 95000}
	v.Name = name
	v.Published = published
	return v
}

func TestContentService_CreateDerivesSlug(t *testing.T) {
	svc, _ := newVillaService(t)
	ctx := context.Background()

	v := villa("Casa del Mar Azul", true)
	require.NoError(t, svc.Create(ctx, v))
	assert.Equal(t, "casa-del-mar-azul", v.Slug)
	assert.NotZero(t, v.ID)

	custom := villa("Villa Two", true)
	custom.Slug = "  My Custom Slug "
	require.NoError(t, svc.Create(ctx, custom))
	assert.Equal(t, "my-custom-slug", custom.Slug)

	dup := villa("Casa del Mar Azul", true)
	err := svc.Create(ctx, dup)
	assert.True(t, errors.Is(err, database.ErrDuplicate))

	err = svc.Create(ctx, villa("   ", true))
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestContentService_PublicGetHidesDrafts(t *testing.T) {
	svc, _ := newVillaService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, villa("Draft Villa", false)))
	require.NoError(t, svc.Create(ctx, villa("Live Villa", true)))

	_, err := svc.Get(ctx, "draft-villa")
	assert.True(t, errors.Is(err, database.ErrNotFound))

	got, err := svc.Get(ctx, "live-villa")
	require.NoError(t, err)
	assert.Equal(t, "Live Villa", got.Name)

	page, err := svc.List(ctx, models.ContentFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	all, err := svc.AdminList(ctx, models.ContentFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Total)
}

func TestContentService_WritesInvalidateCache(t *testing.T) {
	svc, mem := newVillaService(t)
	ctx := context.Background()

	first := villa("Alpha", true)
	require.NoError(t, svc.Create(ctx, first))

	page, err := svc.List(ctx, models.ContentFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	key := "content:villas:list:" + filterKey(models.ContentFilter{}.Normalize())
	_, ok, err := mem.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok, "list should be cached")

	require.NoError(t, svc.Create(ctx, villa("Bravo", true)))
	_, ok, _ = mem.Get(ctx, key)
	assert.False(t, ok, "create must drop cached lists")

	page, err = svc.List(ctx, models.ContentFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	created := first.CreatedAt
	edit := villa("Alpha Renamed", false)
	require.NoError(t, svc.Update(ctx, first.ID, edit))
	stored, err := svc.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha-renamed", stored.Slug)
	assert.WithinDuration(t, created, stored.CreatedAt, time.Second)

	page, err = svc.List(ctx, models.ContentFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	require.NoError(t, svc.Delete(ctx, first.ID))
	assert.True(t, errors.Is(svc.Delete(ctx, first.ID), database.ErrNotFound))
	assert.True(t, errors.Is(svc.Update(ctx, 999, villa("Ghost", true)), database.ErrNotFound))
}

func TestFilterKeyIsStable(t *testing.T) {
	a := filterKey(models.ContentFilter{Location: "Cabo", MinGuests: 4, Limit: 24})
	b := filterKey(models.ContentFilter{Location: "cabo", MinGuests: 4, Limit: 24})
	c := filterKey(models.ContentFilter{Location: "cabo", MinGuests: 6, Limit: 24})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
