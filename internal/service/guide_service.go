package service

import (
	"context"
	"encoding/json"
	"fmt"

	"cabo/internal/config"
	"cabo/internal/domain"
	"cabo/internal/events"
	"cabo/internal/forms"
	"cabo/internal/models"
	"cabo/internal/worker"

	"github.com/rs/zerolog"
)

type GuideService struct {
	guides     []config.Guide
	repo       domain.GuideRepository
	queue      domain.TaskQueue
	bus        domain.EventPublisher
	webhookURL string
	logger     *zerolog.Logger
}

func NewGuideService(guides []config.Guide, repo domain.GuideRepository, queue domain.TaskQueue, bus domain.EventPublisher, webhookURL string, logger *zerolog.Logger) *GuideService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "guides").Logger()
	return &GuideService{guides: guides, repo: repo, queue: queue, bus: bus, webhookURL: webhookURL, logger: &l}
}

func (s *GuideService) Catalog() []config.Guide {
	return s.guides
}

func (s *GuideService) find(slug string) (config.Guide, bool) {
	for _, g := range s.guides {
		if g.Slug == slug {
			return g, true
		}
	}
	return config.Guide{}, false
}

// Submit records a download request and returns the guide to hand out.
func (s *GuideService) Submit(ctx context.Context, in *forms.GuideInput) (*config.Guide, error) {
	in.Normalize()
	if err := forms.Check(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	guide, ok := s.find(in.GuideSlug)
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrValidation, forms.FieldErrors{"guide_slug": "unknown guide"})
	}

	sub := in.ToSubmission()
	if err := s.repo.CreateGuideSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("store guide submission: %w", err)
	}

	if s.bus != nil {
		payload := events.GuideEventPayload{GuideSlug: guide.Slug, GuideTitle: guide.Title, Name: sub.FirstName, Email: sub.Email}
		if err := s.bus.PublishJSON(events.EventGuideDownloaded, payload); err != nil {
			s.logger.Error().Err(err).Str("guide", guide.Slug).Msg("publish guide event")
		}
	}

	if s.queue != nil && s.webhookURL != "" {
		body, err := json.Marshal(forms.GuideBody(sub, guide.Title))
		if err == nil {
			ref := fmt.Sprintf("guide:%d", sub.ID)
			err = s.queue.Enqueue(ctx, worker.TaskWebhook, ref, worker.WebhookPayload{URL: s.webhookURL, Body: body})
		}
		if err != nil {
			s.logger.Error().Err(err).Uint("submission_id", sub.ID).Msg("enqueue guide webhook")
		}
	}
	return &guide, nil
}

func (s *GuideService) List(ctx context.Context, slug string, limit, offset int) ([]models.GuideSubmission, int64, error) {
	return s.repo.ListGuideSubmissions(ctx, slug, limit, offset)
}
