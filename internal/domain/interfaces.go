package domain

import (
	"context"
	"time"

	"cabo/internal/database"
	"cabo/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type LeadRepository interface {
	CreateLead(ctx context.Context, lead *models.Lead) error
	GetLead(ctx context.Context, id uint) (*models.Lead, error)
	GetLeadByPublicID(ctx context.Context, publicID string) (*models.Lead, error)
	ListLeads(ctx context.Context, f models.LeadFilter) ([]models.Lead, int64, error)
	UpdateLeadStatus(ctx context.Context, id uint, status string) error
	MarkLeadForwarded(ctx context.Context, publicID string, at time.Time) error
	LeadStats(ctx context.Context, now time.Time) (*models.LeadStats, error)
}

type GuideRepository interface {
	CreateGuideSubmission(ctx context.Context, sub *models.GuideSubmission) error
	ListGuideSubmissions(ctx context.Context, guideSlug string, limit, offset int) ([]models.GuideSubmission, int64, error)
	CountGuideSubmissions(ctx context.Context) (int64, error)
}

type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	CreateBookingIfAvailable(ctx context.Context, booking *models.Booking) (bool, error)
	GetBooking(ctx context.Context, id uint) (*models.Booking, error)
	GetBookingByReference(ctx context.Context, ref string) (*models.Booking, error)
	ListBookings(ctx context.Context, status string, limit, offset int) ([]models.Booking, int64, error)
	UpdateBookingStatus(ctx context.Context, id uint, from, to string) error
	SetCheckoutURL(ctx context.Context, id uint, url, paymentRef string) error
	MarkBookingPaid(ctx context.Context, ref, paymentRef string, at time.Time) (database.PaymentOutcome, error)
	BookingCounts(ctx context.Context) (map[string]int64, error)
	ConfirmedRevenue(ctx context.Context) (int64, error)
}

type ImageRepository interface {
	CreateImage(ctx context.Context, img *models.Image) error
	GetImage(ctx context.Context, id uint) (*models.Image, error)
	ListImages(ctx context.Context, ownerType string, ownerID uint) ([]models.Image, error)
	DeleteImage(ctx context.Context, id uint) error
}

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	TouchLogin(ctx context.Context, id uint, at time.Time) error
}

type OutboxRepository interface {
	CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error
	GetOutboxTask(ctx context.Context, id int64) (*models.OutboxTask, error)
	GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error)
	UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	GetFailedOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error)
	ResetOutboxTask(ctx context.Context, id int64) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// TaskQueue schedules background deliveries.
type TaskQueue interface {
	Enqueue(ctx context.Context, taskType, reference string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type WebhookPoster interface {
	Post(ctx context.Context, url string, body interface{}) error
}

type LeadSheetWriter interface {
	AppendLead(ctx context.Context, lead *models.Lead) error
	ReplaceLeads(ctx context.Context, leads []models.Lead) error
}

// Completer generates text from a system and a user prompt.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}
