package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cabo/internal/database"
	"cabo/internal/domain"
	"cabo/internal/events"
	"cabo/internal/forms"
	"cabo/internal/models"
	"cabo/internal/payments"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// BookingInput is the body accepted by POST /api/bookings.
type BookingInput struct {
	ListingType string `json:"listing_type" binding:"required,oneof=villa adventure"`
	ListingSlug string `json:"listing_slug" binding:"required,max=160"`
	FirstName   string `json:"first_name" binding:"required,max=80"`
	LastName    string `json:"last_name" binding:"max=80"`
	Email       string `json:"email" binding:"required,email,max=255"`
	Phone       string `json:"phone" binding:"max=40"`
	CheckIn     string `json:"check_in" binding:"required,datetime=2006-01-02"`
	CheckOut    string `json:"check_out" binding:"omitempty,datetime=2006-01-02"`
	Guests      int    `json:"guests" binding:"required,min=1,max=50"`
	Notes       string `json:"notes" binding:"max=2000"`
}

type VillaLookup interface {
	GetBySlug(ctx context.Context, slug string) (*models.Villa, error)
}

type AdventureLookup interface {
	GetBySlug(ctx context.Context, slug string) (*models.Adventure, error)
}

type BookingOptions struct {
	MinNights      int
	MaxAdvanceDays int
	DepositPercent int64
	Currency       string
}

// BookingResult carries the stored booking and, when payments are enabled,
// where to send the guest for the deposit.
type BookingResult struct {
	Booking     *models.Booking `json:"booking"`
	CheckoutURL string          `json:"checkout_url,omitempty"`
}

type BookingService struct {
	repo       domain.BookingRepository
	villas     VillaLookup
	adventures AdventureLookup
	payments   payments.Provider
	bus        domain.EventPublisher
	opts       BookingOptions
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewBookingService(repo domain.BookingRepository, villas VillaLookup, adventures AdventureLookup, provider payments.Provider, bus domain.EventPublisher, opts BookingOptions, logger *zerolog.Logger) *BookingService {
	if opts.MinNights <= 0 {
		opts.MinNights = 3
	}
	if opts.MaxAdvanceDays <= 0 {
		opts.MaxAdvanceDays = 540
	}
	if opts.DepositPercent <= 0 || opts.DepositPercent > 100 {
		opts.DepositPercent = 30
	}
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "bookings").Logger()
	return &BookingService{
		repo:       repo,
		villas:     villas,
		adventures: adventures,
		payments:   provider,
		bus:        bus,
		opts:       opts,
		logger:     &l,
		now:        time.Now,
	}
}

// transitions lists the statuses an admin may move a booking to.
var transitions = map[string][]string{
	models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed: {models.StatusCompleted, models.StatusCancelled},
}

func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Deposit is total*percent/100 rounded up to the cent.
func Deposit(total, percent int64) int64 {
	return (total*percent + 99) / 100
}

func (s *BookingService) Create(ctx context.Context, in *BookingInput) (*BookingResult, error) {
	in.ListingType = strings.ToLower(strings.TrimSpace(in.ListingType))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	if err := forms.Check(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	checkIn, _ := time.Parse(dateLayout, in.CheckIn)
	if err := s.validateDate(checkIn); err != nil {
		return nil, err
	}

	b := &models.Booking{
		Reference:   s.newReference(),
		ListingType: in.ListingType,
		FirstName:   in.FirstName,
		LastName:    strings.TrimSpace(in.LastName),
		Email:       in.Email,
		Phone:       strings.TrimSpace(in.Phone),
		CheckIn:     checkIn,
		Guests:      in.Guests,
		Currency:    s.opts.Currency,
		Status:      models.StatusPending,
		Notes:       strings.TrimSpace(in.Notes),
	}

	var err error
	switch in.ListingType {
	case models.ListingVilla:
		err = s.prepareVilla(ctx, in, b)
	case models.ListingAdventure:
		err = s.prepareAdventure(ctx, in, b)
	}
	if err != nil {
		return nil, err
	}
	b.Deposit = Deposit(b.TotalAmount, s.opts.DepositPercent)

	if b.ListingType == models.ListingVilla {
		ok, err := s.repo.CreateBookingIfAvailable(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("store booking: %w", err)
		}
		if !ok {
			return nil, ErrNotAvailable
		}
	} else if err := s.repo.CreateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("store booking: %w", err)
	}

	res := &BookingResult{Booking: b}
	if s.payments != nil && b.Deposit > 0 {
		checkout, err := s.payments.CreateCheckout(ctx, payments.CheckoutRequest{
			BookingID:   b.ID,
			Reference:   b.Reference,
			Description: fmt.Sprintf("Deposit for %s (%s)", b.ListingName, b.Reference),
			Email:       b.Email,
			Amount:      b.Deposit,
			Currency:    b.Currency,
		})
		if err != nil {
			// Release the dates so the guest can retry.
			if uerr := s.repo.UpdateBookingStatus(ctx, b.ID, models.StatusPending, models.StatusCancelled); uerr != nil {
				s.logger.Error().Err(uerr).Str("reference", b.Reference).Msg("cancel booking after checkout failure")
			}
			return nil, fmt.Errorf("%w: %v", ErrPayment, err)
		}
		if err := s.repo.SetCheckoutURL(ctx, b.ID, checkout.URL, checkout.SessionID); err != nil {
			s.logger.Error().Err(err).Str("reference", b.Reference).Msg("store checkout url")
		}
		b.CheckoutURL, b.PaymentRef = checkout.URL, checkout.SessionID
		res.CheckoutURL = checkout.URL
	}

	s.publish(events.EventBookingCreated, b, "guest")
	s.logger.Info().Str("reference", b.Reference).Str("listing", b.ListingName).Int64("total", b.TotalAmount).Msg("booking created")
	return res, nil
}

func (s *BookingService) validateDate(d time.Time) error {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if d.Before(today) {
		return invalid("date is in the past")
	}
	if d.After(today.AddDate(0, 0, s.opts.MaxAdvanceDays)) {
		return invalid(fmt.Sprintf("bookings open at most %d days ahead", s.opts.MaxAdvanceDays))
	}
	return nil
}

func (s *BookingService) prepareVilla(ctx context.Context, in *BookingInput, b *models.Booking) error {
	if in.CheckOut == "" {
		return fmt.Errorf("%w: %w", ErrValidation, forms.FieldErrors{"check_out": "is required"})
	}
	checkOut, _ := time.Parse(dateLayout, in.CheckOut)
	b.CheckOut = checkOut
	nights := b.Nights()
	if nights < s.opts.MinNights {
		return invalid(fmt.Sprintf("minimum stay is %d nights", s.opts.MinNights))
	}
	if err := s.validateDate(checkOut); err != nil {
		return err
	}

	villa, err := s.villas.GetBySlug(ctx, in.ListingSlug)
	if err != nil {
		return err
	}
	if !villa.Published {
		return invalid("villa is not bookable")
	}
	if villa.MaxGuests > 0 && in.Guests > villa.MaxGuests {
		return invalid(fmt.Sprintf("villa sleeps at most %d guests", villa.MaxGuests))
	}
	b.ListingID = villa.ID
	b.ListingName = villa.Name
	b.TotalAmount = int64(nights) * villa.NightlyRate
	return nil
}

func (s *BookingService) prepareAdventure(ctx context.Context, in *BookingInput, b *models.Booking) error {
	adv, err := s.adventures.GetBySlug(ctx, in.ListingSlug)
	if err != nil {
		return err
	}
	if !adv.Published {
		return invalid("adventure is not bookable")
	}
	if adv.MaxGroup > 0 && in.Guests > adv.MaxGroup {
		return invalid(fmt.Sprintf("group size is limited to %d", adv.MaxGroup))
	}
	b.CheckOut = b.CheckIn.AddDate(0, 0, 1)
	b.ListingID = adv.ID
	b.ListingName = adv.Name
	b.TotalAmount = int64(in.Guests) * adv.Price
	return nil
}

// HandleWebhook applies a verified payment event. Replays are no-ops.
func (s *BookingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.payments == nil {
		return ErrDisabled
	}
	ev, err := s.payments.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrSignature) {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return err
	}
	if !ev.Paid || ev.Reference == "" {
		s.logger.Debug().Str("event_id", ev.ID).Str("type", ev.Type).Msg("payment event ignored")
		return nil
	}

	outcome, err := s.repo.MarkBookingPaid(ctx, ev.Reference, ev.SessionID, s.now())
	if err != nil {
		return err
	}
	if outcome == database.PaymentDuplicate {
		return nil
	}
	b, err := s.repo.GetBookingByReference(ctx, ev.Reference)
	if err != nil {
		return err
	}
	if outcome == database.PaymentUnconfirmed {
		s.publish(events.EventBookingRefundDue, b, "stripe")
		s.logger.Warn().Str("reference", b.Reference).Str("status", b.Status).Int64("amount", ev.AmountPaid).
			Msg("deposit paid for inactive booking, refund required")
		return nil
	}
	s.publish(events.EventBookingPaid, b, "stripe")
	s.logger.Info().Str("reference", b.Reference).Int64("amount", ev.AmountPaid).Msg("deposit paid")
	return nil
}

// Transition moves a booking along the admin status table.
func (s *BookingService) Transition(ctx context.Context, id uint, to, changedBy string) (*models.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}
	if err := s.repo.UpdateBookingStatus(ctx, id, b.Status, to); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
		}
		return nil, err
	}
	b.Status = to
	s.publish(events.EventBookingStatus, b, changedBy)
	return b, nil
}

func (s *BookingService) GetByReference(ctx context.Context, ref string) (*models.Booking, error) {
	return s.repo.GetBookingByReference(ctx, strings.ToUpper(strings.TrimSpace(ref)))
}

func (s *BookingService) List(ctx context.Context, status string, limit, offset int) ([]models.Booking, int64, error) {
	return s.repo.ListBookings(ctx, status, limit, offset)
}

func (s *BookingService) newReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "CB-" + strings.ToUpper(id[:8])
}

func (s *BookingService) publish(eventType string, b *models.Booking, changedBy string) {
	if s.bus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:   b.ID,
		Reference:   b.Reference,
		ListingType: b.ListingType,
		ListingName: b.ListingName,
		Name:        strings.TrimSpace(b.FirstName + " " + b.LastName),
		Email:       b.Email,
		CheckIn:     b.CheckIn,
		CheckOut:    b.CheckOut,
		Guests:      b.Guests,
		Total:       b.TotalAmount,
		Deposit:     b.Deposit,
		Currency:    b.Currency,
		Status:      b.Status,
		ChangedBy:   changedBy,
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("reference", b.Reference).Msg("publish booking event")
	}
}
