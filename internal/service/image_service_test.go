package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cabo/internal/database"
	"cabo/internal/imageopt"
	"cabo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageService_UploadListDelete(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	svc := NewImageService(db, imageopt.New(imageopt.Options{MaxWidth: 64}, nil), dir, "/media/", nil)
	ctx := context.Background()

	img, err := svc.Upload(ctx, ImageUpload{
		OwnerType: models.KindVilla,
		OwnerID:   3,
		Alt:       " Pool at sunset ",
		Body:      bytes.NewReader(pngBytes(t, 128, 96)),
	})
	require.NoError(t, err)
	assert.Equal(t, 64, img.Width)
	assert.Equal(t, 48, img.Height)
	assert.Equal(t, "Pool at sunset", img.Alt)
	assert.True(t, strings.HasPrefix(img.Path, "villas/"), img.Path)
	assert.True(t, strings.HasSuffix(img.Path, ".png"))
	assert.Equal(t, "/media/"+img.Path, img.URL)
	assert.Equal(t, "/media/"+img.WebPPath, img.WebPURL)
	assert.FileExists(t, filepath.Join(dir, img.Path))
	assert.FileExists(t, filepath.Join(dir, img.WebPPath))

	list, err := svc.List(ctx, models.KindVilla, 3)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, img.URL, list[0].URL)

	got, err := svc.Get(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, img.WebPURL, got.WebPURL)

	require.NoError(t, svc.Delete(ctx, img.ID))
	_, err = os.Stat(filepath.Join(dir, img.Path))
	assert.True(t, os.IsNotExist(err))
	assert.ErrorIs(t, svc.Delete(ctx, img.ID), database.ErrNotFound)
}

func TestImageService_Rejects(t *testing.T) {
	db := newTestDB(t)
	svc := NewImageService(db, imageopt.New(imageopt.Options{}, nil), t.TempDir(), "/media", nil)
	ctx := context.Background()

	_, err := svc.Upload(ctx, ImageUpload{OwnerType: models.KindVilla, OwnerID: 1, Body: strings.NewReader("%PDF-1.4 not an image")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Upload(ctx, ImageUpload{OwnerType: "users", OwnerID: 1, Body: bytes.NewReader(pngBytes(t, 4, 4))})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Upload(ctx, ImageUpload{OwnerType: models.KindResort, Body: bytes.NewReader(pngBytes(t, 4, 4))})
	assert.ErrorIs(t, err, ErrValidation)
}
