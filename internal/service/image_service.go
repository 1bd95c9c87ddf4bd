package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cabo/internal/domain"
	"cabo/internal/imageopt"
	"cabo/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

var imageOwners = map[string]bool{
	models.KindVilla:      true,
	models.KindResort:     true,
	models.KindAdventure:  true,
	models.KindRestaurant: true,
}

type ImageUpload struct {
	OwnerType string
	OwnerID   uint
	Alt       string
	SortOrder int
	Body      io.Reader
}

type ImageService struct {
	repo      domain.ImageRepository
	optimizer *imageopt.Optimizer
	dir       string
	baseURL   string
	logger    *zerolog.Logger
}

func NewImageService(repo domain.ImageRepository, optimizer *imageopt.Optimizer, dir, baseURL string, logger *zerolog.Logger) *ImageService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "images").Logger()
	return &ImageService{
		repo:      repo,
		optimizer: optimizer,
		dir:       dir,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    &l,
	}
}

// Upload sniffs, optimizes and records one image. Paths are stored relative
// to the media directory.
func (s *ImageService) Upload(ctx context.Context, up ImageUpload) (*models.Image, error) {
	if !imageOwners[up.OwnerType] {
		return nil, invalid("owner_type must be one of villas, resorts, adventures, restaurants")
	}
	if up.OwnerID == 0 {
		return nil, invalid("owner_id is required")
	}

	br := bufio.NewReaderSize(up.Body, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if ct := http.DetectContentType(head); !allowedImageTypes[ct] {
		return nil, invalid("unsupported image type " + ct)
	}

	name := uuid.NewString()
	res, err := s.optimizer.Process(br, filepath.Join(s.dir, up.OwnerType), name)
	if err != nil {
		if errors.Is(err, imageopt.ErrUnsupported) {
			return nil, invalid(err.Error())
		}
		return nil, err
	}

	img := &models.Image{
		OwnerType: up.OwnerType,
		OwnerID:   up.OwnerID,
		Path:      s.rel(res.Path),
		WebPPath:  s.rel(res.WebPPath),
		Alt:       strings.TrimSpace(up.Alt),
		Width:     res.Width,
		Height:    res.Height,
		Bytes:     res.Bytes,
		SortOrder: up.SortOrder,
	}
	if err := s.repo.CreateImage(ctx, img); err != nil {
		s.removeFiles(img)
		return nil, err
	}
	s.withURLs(img)
	s.logger.Info().Uint("image_id", img.ID).Str("owner", up.OwnerType).Uint("owner_id", up.OwnerID).Int64("bytes", img.Bytes).Msg("image stored")
	return img, nil
}

func (s *ImageService) List(ctx context.Context, ownerType string, ownerID uint) ([]models.Image, error) {
	images, err := s.repo.ListImages(ctx, ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range images {
		s.withURLs(&images[i])
	}
	return images, nil
}

func (s *ImageService) Get(ctx context.Context, id uint) (*models.Image, error) {
	img, err := s.repo.GetImage(ctx, id)
	if err != nil {
		return nil, err
	}
	s.withURLs(img)
	return img, nil
}

func (s *ImageService) Delete(ctx context.Context, id uint) error {
	img, err := s.repo.GetImage(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteImage(ctx, id); err != nil {
		return err
	}
	s.removeFiles(img)
	return nil
}

func (s *ImageService) rel(p string) string {
	if p == "" {
		return ""
	}
	r, err := filepath.Rel(s.dir, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(r)
}

func (s *ImageService) withURLs(img *models.Image) {
	img.URL = s.baseURL + "/" + path.Clean(img.Path)
	if img.WebPPath != "" {
		img.WebPURL = s.baseURL + "/" + path.Clean(img.WebPPath)
	}
}

func (s *ImageService) removeFiles(img *models.Image) {
	for _, p := range []string{img.Path, img.WebPPath} {
		if p == "" {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(p))); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", p).Msg("remove image file")
		}
	}
}
