package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"cabo/internal/auth"
	"cabo/internal/database"
	"cabo/internal/domain"
	"cabo/internal/models"

	"github.com/rs/zerolog"
)

// Requeuer schedules an existing outbox task again.
type Requeuer interface {
	Requeue(ctx context.Context, id int64) error
}

type Dashboard struct {
	Leads            *models.LeadStats `json:"leads"`
	Bookings         map[string]int64  `json:"bookings"`
	ConfirmedRevenue int64             `json:"confirmed_revenue"`
	GuideDownloads   int64             `json:"guide_downloads"`
	LatestLeads      []models.Lead     `json:"latest_leads"`
	FailedTasks      int               `json:"failed_tasks"`
}

type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type AdminService struct {
	users    domain.UserRepository
	tokens   *auth.Tokens
	leads    domain.LeadRepository
	bookings domain.BookingRepository
	guides   domain.GuideRepository
	outbox   domain.OutboxRepository
	requeuer Requeuer
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewAdminService(users domain.UserRepository, tokens *auth.Tokens, leads domain.LeadRepository, bookings domain.BookingRepository, guides domain.GuideRepository, outbox domain.OutboxRepository, requeuer Requeuer, logger *zerolog.Logger) *AdminService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "admin").Logger()
	return &AdminService{
		users:    users,
		tokens:   tokens,
		leads:    leads,
		bookings: bookings,
		guides:   guides,
		outbox:   outbox,
		requeuer: requeuer,
		logger:   &l,
		now:      time.Now,
	}
}

// Login checks credentials and issues a session token. Unknown emails and
// wrong passwords return the same error.
func (s *AdminService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		s.logger.Warn().Str("email", email).Msg("admin login failed")
		return nil, err
	}

	token, expires, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	if err := s.users.TouchLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", user.ID).Msg("record login time")
	}
	return &Session{Token: token, ExpiresAt: expires, User: user}, nil
}

func (s *AdminService) Me(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetUserByID(ctx, id)
}

func (s *AdminService) Dashboard(ctx context.Context) (*Dashboard, error) {
	stats, err := s.leads.LeadStats(ctx, s.now())
	if err != nil {
		return nil, err
	}
	counts, err := s.bookings.BookingCounts(ctx)
	if err != nil {
		return nil, err
	}
	revenue, err := s.bookings.ConfirmedRevenue(ctx)
	if err != nil {
		return nil, err
	}
	downloads, err := s.guides.CountGuideSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	latest, _, err := s.leads.ListLeads(ctx, models.LeadFilter{Limit: 10})
	if err != nil {
		return nil, err
	}
	failed, err := s.outbox.GetFailedOutboxTasks(ctx, 1000)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Leads:            stats,
		Bookings:         counts,
		ConfirmedRevenue: revenue,
		GuideDownloads:   downloads,
		LatestLeads:      latest,
		FailedTasks:      len(failed),
	}, nil
}

func (s *AdminService) FailedTasks(ctx context.Context, limit int) ([]models.OutboxTask, error) {
	return s.outbox.GetFailedOutboxTasks(ctx, limit)
}

// RetryTask resets a failed task and hands it back to the worker.
func (s *AdminService) RetryTask(ctx context.Context, id int64) error {
	task, err := s.outbox.GetOutboxTask(ctx, id)
	if err != nil {
		return err
	}
	if task.Status != models.OutboxFailed {
		return invalid("only failed tasks can be retried")
	}
	if err := s.outbox.ResetOutboxTask(ctx, id); err != nil {
		return err
	}
	if s.requeuer != nil {
		return s.requeuer.Requeue(ctx, id)
	}
	return nil
}
