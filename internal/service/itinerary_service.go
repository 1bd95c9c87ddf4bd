package service

import (
	"context"
	"fmt"
	"time"

	"cabo/internal/cache"
	"cabo/internal/domain"
	"cabo/internal/itinerary"

	"github.com/rs/zerolog"
)

// NameSource lists names of published catalogue entries.
type NameSource func(ctx context.Context, limit int) ([]string, error)

type ItineraryService struct {
	completer   domain.Completer
	adventures  NameSource
	restaurants NameSource
	limiter     cache.Store
	perHour     int
	logger      *zerolog.Logger
}

func NewItineraryService(completer domain.Completer, adventures, restaurants NameSource, limiter cache.Store, perHour int, logger *zerolog.Logger) *ItineraryService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "itinerary").Logger()
	return &ItineraryService{
		completer:   completer,
		adventures:  adventures,
		restaurants: restaurants,
		limiter:     limiter,
		perHour:     perHour,
		logger:      &l,
	}
}

func (s *ItineraryService) Enabled() bool { return s.completer != nil }

// Generate asks the model for a plan. clientKey scopes the hourly limit.
func (s *ItineraryService) Generate(ctx context.Context, clientKey string, req itinerary.Request) (string, error) {
	if s.completer == nil {
		return "", ErrDisabled
	}
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if s.limiter != nil && s.perHour > 0 {
		ok, err := s.limiter.CheckRateLimit(ctx, "itinerary:"+clientKey, s.perHour, time.Hour)
		if err != nil {
			s.logger.Warn().Err(err).Msg("itinerary rate limit check failed")
		} else if !ok {
			return "", ErrRateLimited
		}
	}

	adventures := s.names(ctx, s.adventures, "adventures")
	restaurants := s.names(ctx, s.restaurants, "restaurants")

	start := time.Now()
	text, err := s.completer.Complete(ctx, itinerary.SystemPrompt, itinerary.BuildPrompt(req, adventures, restaurants))
	if err != nil {
		return "", fmt.Errorf("generate itinerary: %w", err)
	}
	s.logger.Info().Int("days", req.Days).Dur("duration", time.Since(start)).Msg("itinerary generated")
	return text, nil
}

func (s *ItineraryService) names(ctx context.Context, src NameSource, what string) []string {
	if src == nil {
		return nil
	}
	names, err := src(ctx, 20)
	if err != nil {
		s.logger.Warn().Err(err).Str("catalogue", what).Msg("load catalogue names")
		return nil
	}
	return names
}
