package imageopt

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: uint8((x + y) % 256), A: 255})
		}
	}
	return img
}

func writeJPEG(t *testing.T, path string, img image.Image, quality int) int64 {
	t.Helper()
	require.NoError(t, imaging.Save(img, path, imaging.JPEGQuality(quality)))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size()
}

func TestProcess(t *testing.T) {
	o := New(Options{MaxWidth: 400}, nil)

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, testImage(800, 600), imaging.JPEG))

	dir := t.TempDir()
	res, err := o.Process(&buf, dir, "hero.JPG")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "hero.jpg"), res.Path)
	assert.Equal(t, 400, res.Width)
	assert.Equal(t, 300, res.Height)
	assert.FileExists(t, res.Path)
	assert.FileExists(t, res.WebPPath)
	assert.Positive(t, res.Bytes)
}

func TestProcessKeepsPNG(t *testing.T) {
	o := New(Options{}, nil)
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, testImage(50, 40), imaging.PNG))

	res, err := o.Process(&buf, t.TempDir(), "logo.png")
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(res.Path))
	assert.Equal(t, 50, res.Width)
}

func TestProcessRejectsUnsupported(t *testing.T) {
	o := New(Options{}, nil)
	_, err := o.Process(bytes.NewReader([]byte("%PDF-1.4 not an image")), t.TempDir(), "doc.pdf")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestOptimizeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.jpg")
	before := writeJPEG(t, path, testImage(600, 400), 100)

	o := New(Options{JPEGQuality: 60}, nil)
	res, err := o.OptimizeFile(path)
	require.NoError(t, err)
	assert.True(t, res.Rewritten)
	assert.True(t, res.WebPCreated)
	assert.Equal(t, before, res.Before)
	assert.Less(t, res.After, before)
	assert.FileExists(t, filepath.Join(dir, "big.webp"))

	// second pass: already small, WebP fresh
	res, err = o.OptimizeFile(path)
	require.NoError(t, err)
	assert.False(t, res.WebPCreated)

	_, err = o.OptimizeFile(filepath.Join(dir, "notes.txt"))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestOptimizeDir(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "villas", "casa-azul")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeJPEG(t, filepath.Join(root, "a.jpg"), testImage(300, 200), 100)
	writeJPEG(t, filepath.Join(sub, "b.jpeg"), testImage(300, 200), 100)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "readme.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.jpg"), []byte("not a jpeg"), 0o644))

	o := New(Options{JPEGQuality: 50}, nil)
	stats, err := o.OptimizeDir(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.WebPCreated)
	assert.Positive(t, stats.Saved())
	assert.Greater(t, stats.SavedPercent(), 0.0)
}

func TestOptimizeDirDryRun(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.jpg")
	before := writeJPEG(t, path, testImage(300, 200), 100)

	o := New(Options{JPEGQuality: 50, DryRun: true}, nil)
	stats, err := o.OptimizeDir(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Less(t, stats.BytesAfter, stats.BytesBefore)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before, info.Size(), "dry run must not touch files")
	assert.NoFileExists(t, filepath.Join(root, "a.webp"))
}

func TestOptimizeDirCancelled(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "a.jpg"), testImage(10, 10), 90)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}, nil).OptimizeDir(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatsSavedPercent(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.SavedPercent())
	assert.InDelta(t, 25.0, Stats{BytesBefore: 400, BytesAfter: 300}.SavedPercent(), 0.001)
}
