package database

import (
	"context"
	"fmt"
	"testing"

	"cabo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedVillas(t *testing.T, store *ContentStore[models.Villa]) {
	t.Helper()
	ctx := context.Background()
	villas := []models.Villa{
		{ContentBase: models.ContentBase{Slug: "casa-azul", Name: "Casa Azul", Location: "Pedregal", Published: true, Featured: true, SortOrder: 1}, Bedrooms: 4, MaxGuests: 8},
		{ContentBase: models.ContentBase{Slug: "villa-mar", Name: "Villa Mar", Location: "Palmilla", Published: true, SortOrder: 2}, Bedrooms: 6, MaxGuests: 12},
		{ContentBase: models.ContentBase{Slug: "draft-villa", Name: "Draft Villa", Location: "Pedregal", Published: false}, Bedrooms: 2, MaxGuests: 4},
	}
	for i := range villas {
		require.NoError(t, store.Create(ctx, &villas[i]))
	}
}

func TestContentStore_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	store := NewContentStore[models.Villa](db, models.KindVilla)
	seedVillas(t, store)
	ctx := context.Background()

	items, total, err := store.List(ctx, models.ContentFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, "casa-azul", items[0].Slug)

	items, total, err = store.List(ctx, models.ContentFilter{MinGuests: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "villa-mar", items[0].Slug)

	_, total, err = store.List(ctx, models.ContentFilter{Location: "pedregal"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = store.List(ctx, models.ContentFilter{Location: "pedregal", Unpublished: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	items, _, err = store.List(ctx, models.ContentFilter{Search: "MAR"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Villa Mar", items[0].Name)

	_, total, err = store.List(ctx, models.ContentFilter{Featured: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestContentStore_Paging(t *testing.T) {
	db := setupTestDB(t)
	store := NewContentStore[models.Restaurant](db, models.KindRestaurant)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		r := models.Restaurant{ContentBase: models.ContentBase{
			Slug: fmt.Sprintf("r-%d", i), Name: fmt.Sprintf("R %d", i), Published: true, SortOrder: i,
		}, Cuisine: "Mexican"}
		require.NoError(t, store.Create(ctx, &r))
	}

	items, total, err := store.List(ctx, models.ContentFilter{Limit: 2, Offset: 2, Cuisine: "mexican"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, items, 2)
	assert.Equal(t, "r-2", items[0].Slug)
}

func TestContentStore_CRUD(t *testing.T) {
	db := setupTestDB(t)
	store := NewContentStore[models.Adventure](db, models.KindAdventure)
	ctx := context.Background()

	adv := &models.Adventure{ContentBase: models.ContentBase{Slug: "whale-watching", Name: "Whale Watching", Published: true}, Price: 12000, MaxGroup: 10}
	require.NoError(t, store.Create(ctx, adv))
	require.NotZero(t, adv.ID)

	dup := &models.Adventure{ContentBase: models.ContentBase{Slug: "whale-watching", Name: "Other"}}
	assert.ErrorIs(t, store.Create(ctx, dup), ErrDuplicate)

	got, err := store.GetBySlug(ctx, "whale-watching")
	require.NoError(t, err)
	assert.Equal(t, int64(12000), got.Price)

	got.Price = 15000
	require.NoError(t, store.Update(ctx, got))
	got, err = store.GetByID(ctx, adv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), got.Price)

	names, err := store.Names(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Whale Watching"}, names)

	require.NoError(t, store.Delete(ctx, adv.ID))
	assert.ErrorIs(t, store.Delete(ctx, adv.ID), ErrNotFound)
	_, err = store.GetBySlug(ctx, "whale-watching")
	assert.ErrorIs(t, err, ErrNotFound)
}
