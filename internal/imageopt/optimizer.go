package imageopt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cabo/internal/metrics"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
)

var ErrUnsupported = errors.New("unsupported image format")

type Options struct {
	MaxWidth    int
	JPEGQuality int
	WebPQuality int
	DryRun      bool
}

type Result struct {
	Path     string
	WebPPath string
	Width    int
	Height   int
	Bytes    int64
}

// Stats aggregates a directory run.
type Stats struct {
	Processed   int   `json:"processed"`
	Skipped     int   `json:"skipped"`
	Failed      int   `json:"failed"`
	WebPCreated int   `json:"webp_created"`
	BytesBefore int64 `json:"bytes_before"`
	BytesAfter  int64 `json:"bytes_after"`
}

func (s Stats) Saved() int64 { return s.BytesBefore - s.BytesAfter }

func (s Stats) SavedPercent() float64 {
	if s.BytesBefore == 0 {
		return 0
	}
	return float64(s.Saved()) * 100 / float64(s.BytesBefore)
}

type Optimizer struct {
	opts   Options
	logger *zerolog.Logger
}

func New(opts Options, logger *zerolog.Logger) *Optimizer {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = 2000
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 80
	}
	if opts.WebPQuality <= 0 {
		opts.WebPQuality = 75
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Optimizer{opts: opts, logger: logger}
}

// Process decodes an upload, fits it to the max width and writes the
// optimized file plus a WebP sibling into dstDir.
func (o *Optimizer) Process(src io.Reader, dstDir, name string) (*Result, error) {
	img, format, err := decode(src)
	if err != nil {
		return nil, err
	}
	img = o.fit(img)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}

	ext, encFormat := ".jpg", imaging.JPEG
	if format == "png" {
		ext, encFormat = ".png", imaging.PNG
	}
	base := strings.TrimSuffix(name, filepath.Ext(name))
	out := filepath.Join(dstDir, base+ext)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, encFormat, imaging.JPEGQuality(o.opts.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode %s: %w", out, err)
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return nil, err
	}

	webpPath := filepath.Join(dstDir, base+".webp")
	if _, err := o.writeWebP(img, webpPath); err != nil {
		return nil, err
	}

	b := img.Bounds()
	metrics.IncImage("uploaded")
	return &Result{Path: out, WebPPath: webpPath, Width: b.Dx(), Height: b.Dy(), Bytes: int64(buf.Len())}, nil
}

func decode(r io.Reader) (image.Image, string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	switch format {
	case "jpeg", "png", "webp":
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

func (o *Optimizer) fit(img image.Image) image.Image {
	if img.Bounds().Dx() > o.opts.MaxWidth {
		return imaging.Resize(img, o.opts.MaxWidth, 0, imaging.Lanczos)
	}
	return img
}

func (o *Optimizer) writeWebP(img image.Image, path string) (int64, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(o.opts.WebPQuality)}); err != nil {
		return 0, fmt.Errorf("encode webp %s: %w", path, err)
	}
	if o.opts.DryRun {
		return int64(buf.Len()), nil
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}

// FileResult describes what OptimizeFile did to one file.
type FileResult struct {
	Before      int64
	After       int64
	Rewritten   bool
	WebPCreated bool
}

// OptimizeFile recompresses a JPEG in place when that makes it smaller and
// creates a WebP sibling when missing or older than the source.
func (o *Optimizer) OptimizeFile(path string) (*FileResult, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return nil, ErrUnsupported
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	res := &FileResult{Before: info.Size(), After: info.Size()}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	resized := o.fit(img)

	if ext != ".png" || resized != img {
		var buf bytes.Buffer
		format, _ := imaging.FormatFromExtension(ext)
		if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(o.opts.JPEGQuality)); err != nil {
			return nil, fmt.Errorf("encode %s: %w", path, err)
		}
		if int64(buf.Len()) < info.Size() {
			res.After = int64(buf.Len())
			res.Rewritten = true
			if !o.opts.DryRun {
				if err := writeAtomic(path, buf.Bytes()); err != nil {
					return nil, err
				}
			}
		}
	}

	webpPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".webp"
	if stale(webpPath, info) {
		if _, err := o.writeWebP(resized, webpPath); err != nil {
			return nil, err
		}
		res.WebPCreated = true
	}
	return res, nil
}

func stale(webpPath string, src fs.FileInfo) bool {
	w, err := os.Stat(webpPath)
	if err != nil {
		return true
	}
	return w.ModTime().Before(src.ModTime())
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// OptimizeDir walks root and optimizes every JPEG/PNG it finds.
func (o *Optimizer) OptimizeDir(ctx context.Context, root string) (*Stats, error) {
	stats := &Stats{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		res, err := o.OptimizeFile(path)
		switch {
		case errors.Is(err, ErrUnsupported):
			stats.Skipped++
			return nil
		case err != nil:
			stats.Failed++
			metrics.IncImage("failed")
			o.logger.Warn().Err(err).Str("path", path).Msg("optimize failed")
			return nil
		}

		stats.Processed++
		stats.BytesBefore += res.Before
		stats.BytesAfter += res.After
		if res.WebPCreated {
			stats.WebPCreated++
		}
		metrics.IncImage("optimized")
		metrics.AddImageBytesSaved(res.Before - res.After)
		o.logger.Debug().Str("path", path).Int64("before", res.Before).Int64("after", res.After).
			Bool("webp", res.WebPCreated).Msg("image optimized")
		return nil
	})
	if err != nil {
		return stats, err
	}

	o.logger.Info().
		Int("processed", stats.Processed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Int("webp_created", stats.WebPCreated).
		Int64("bytes_saved", stats.Saved()).
		Float64("saved_percent", stats.SavedPercent()).
		Bool("dry_run", o.opts.DryRun).
		Msg("image optimization finished")
	return stats, nil
}
