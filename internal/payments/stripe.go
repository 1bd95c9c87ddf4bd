package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"cabo/internal/config"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ErrSignature is returned when a webhook payload fails verification.
var ErrSignature = errors.New("invalid webhook signature")

type CheckoutRequest struct {
	BookingID   uint
	Reference   string
	Description string
	Email       string
	Amount      int64
	Currency    string
}

type Checkout struct {
	SessionID string
	URL       string
}

// WebhookEvent is the subset of a Stripe event the booking flow needs.
type WebhookEvent struct {
	ID         string
	Type       string
	Reference  string
	SessionID  string
	Paid       bool
	AmountPaid int64
}

type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

type StripeProvider struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripeProvider(cfg config.StripeConfig, backends *stripe.Backends) *StripeProvider {
	return &StripeProvider{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}
}

func (p *StripeProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.successURL + "?ref=" + req.Reference),
		CancelURL:         stripe.String(p.cancelURL + "?ref=" + req.Reference),
		ClientReferenceID: stripe.String(req.Reference),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.AddMetadata("booking_id", strconv.FormatUint(uint64(req.BookingID), 10))
	params.AddMetadata("reference", req.Reference)
	params.Context = ctx

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &Checkout{SessionID: sess.ID, URL: sess.URL}, nil
}

func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.SessionID = sess.ID
		out.Reference = sess.ClientReferenceID
		if out.Reference == "" {
			out.Reference = sess.Metadata["reference"]
		}
		out.Paid = sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
		out.AmountPaid = sess.AmountTotal
	}
	return out, nil
}
