package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cabo/internal/database"
	"cabo/internal/domain"
	"cabo/internal/models"
	"cabo/internal/webhook"
)

// WebhookPayload is a JSON body to POST to an automation endpoint.
type WebhookPayload struct {
	URL    string          `json:"url"`
	LeadID string          `json:"lead_id,omitempty"`
	Body   json.RawMessage `json:"body"`
}

type SheetsPayload struct {
	LeadID string `json:"lead_id"`
}

type NotifyPayload struct {
	Text string `json:"text"`
}

func decode(task *models.OutboxTask, v interface{}) error {
	if err := json.Unmarshal([]byte(task.Payload), v); err != nil {
		return Permanent(fmt.Errorf("decode payload: %w", err))
	}
	return nil
}

// WebhookHandler posts the stored body and marks the lead forwarded on success.
func WebhookHandler(client domain.WebhookPoster, leads domain.LeadRepository) Handler {
	return func(ctx context.Context, task *models.OutboxTask) error {
		var p WebhookPayload
		if err := decode(task, &p); err != nil {
			return err
		}
		if p.URL == "" {
			return Permanent(errors.New("webhook url missing"))
		}
		if err := client.Post(ctx, p.URL, p.Body); err != nil {
			if errors.Is(err, webhook.ErrPermanent) {
				return Permanent(err)
			}
			return err
		}
		if p.LeadID != "" && leads != nil {
			return leads.MarkLeadForwarded(ctx, p.LeadID, time.Now())
		}
		return nil
	}
}

// SheetsAppendHandler appends one lead row to the leads spreadsheet.
func SheetsAppendHandler(sheets domain.LeadSheetWriter, leads domain.LeadRepository) Handler {
	return func(ctx context.Context, task *models.OutboxTask) error {
		var p SheetsPayload
		if err := decode(task, &p); err != nil {
			return err
		}
		lead, err := leads.GetLeadByPublicID(ctx, p.LeadID)
		if errors.Is(err, database.ErrNotFound) {
			return Permanent(err)
		}
		if err != nil {
			return err
		}
		return sheets.AppendLead(ctx, lead)
	}
}

// SheetsResyncHandler rewrites the whole leads sheet from the database.
func SheetsResyncHandler(sheets domain.LeadSheetWriter, leads domain.LeadRepository) Handler {
	return func(ctx context.Context, _ *models.OutboxTask) error {
		all, _, err := leads.ListLeads(ctx, models.LeadFilter{})
		if err != nil {
			return err
		}
		return sheets.ReplaceLeads(ctx, all)
	}
}

func NotifyHandler(n domain.Notifier) Handler {
	return func(ctx context.Context, task *models.OutboxTask) error {
		var p NotifyPayload
		if err := decode(task, &p); err != nil {
			return err
		}
		if p.Text == "" {
			return nil
		}
		return n.Notify(ctx, p.Text)
	}
}
