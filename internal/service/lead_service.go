package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cabo/internal/domain"
	"cabo/internal/events"
	"cabo/internal/forms"
	"cabo/internal/metrics"
	"cabo/internal/models"
	"cabo/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

type LeadOptions struct {
	WebhookURL    string
	SheetsEnabled bool
}

type LeadService struct {
	repo   domain.LeadRepository
	queue  domain.TaskQueue
	bus    domain.EventPublisher
	opts   LeadOptions
	logger *zerolog.Logger
	newID  func() string
}

func NewLeadService(repo domain.LeadRepository, queue domain.TaskQueue, bus domain.EventPublisher, opts LeadOptions, logger *zerolog.Logger) *LeadService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "leads").Logger()
	return &LeadService{
		repo:   repo,
		queue:  queue,
		bus:    bus,
		opts:   opts,
		logger: &l,
		newID:  uuid.NewString,
	}
}

// Submit stores the lead and schedules forwarding. Only validation and
// storage failures are returned; forwarding happens in the background.
func (s *LeadService) Submit(ctx context.Context, in *forms.LeadInput) (*models.Lead, error) {
	in.Normalize()
	if err := forms.Validate(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	lead := forms.ToLead(in, s.newID())
	if err := s.repo.CreateLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("store lead: %w", err)
	}
	metrics.IncLead(lead.FormType)

	if s.bus != nil {
		payload := events.LeadEventPayload{
			LeadID:    lead.PublicID,
			FormType:  lead.FormType,
			Name:      lead.FullName(),
			Email:     lead.Email,
			Phone:     lead.Phone,
			Interest:  lead.Interest,
			Message:   lead.Message,
			CreatedAt: lead.CreatedAt,
		}
		if err := s.bus.PublishJSON(events.EventLeadCreated, payload); err != nil {
			s.logger.Error().Err(err).Str("lead_id", lead.PublicID).Msg("publish lead event")
		}
	}

	s.forward(ctx, lead)
	s.logger.Info().Str("lead_id", lead.PublicID).Str("form", lead.FormType).Msg("lead captured")
	return lead, nil
}

func (s *LeadService) forward(ctx context.Context, lead *models.Lead) {
	if s.queue == nil {
		return
	}
	if s.opts.WebhookURL != "" {
		body, err := json.Marshal(forms.Body(lead))
		if err == nil {
			err = s.queue.Enqueue(ctx, worker.TaskWebhook, lead.PublicID, worker.WebhookPayload{
				URL:    s.opts.WebhookURL,
				LeadID: lead.PublicID,
				Body:   body,
			})
		}
		if err != nil {
			s.logger.Error().Err(err).Str("lead_id", lead.PublicID).Msg("enqueue webhook")
		}
	}
	if s.opts.SheetsEnabled {
		if err := s.queue.Enqueue(ctx, worker.TaskSheets, lead.PublicID, worker.SheetsPayload{LeadID: lead.PublicID}); err != nil {
			s.logger.Error().Err(err).Str("lead_id", lead.PublicID).Msg("enqueue sheets append")
		}
	}
}

func (s *LeadService) List(ctx context.Context, f models.LeadFilter) ([]models.Lead, int64, error) {
	if f.Status != "" && !models.IsLeadStatus(f.Status) {
		return nil, 0, invalid("unknown lead status " + f.Status)
	}
	return s.repo.ListLeads(ctx, f)
}

func (s *LeadService) Get(ctx context.Context, id uint) (*models.Lead, error) {
	return s.repo.GetLead(ctx, id)
}

func (s *LeadService) UpdateStatus(ctx context.Context, id uint, status string) error {
	if !models.IsLeadStatus(status) {
		return invalid("unknown lead status " + status)
	}
	return s.repo.UpdateLeadStatus(ctx, id, status)
}

// ResyncSheets schedules a full rewrite of the leads spreadsheet.
func (s *LeadService) ResyncSheets(ctx context.Context) error {
	if !s.opts.SheetsEnabled || s.queue == nil {
		return ErrDisabled
	}
	return s.queue.Enqueue(ctx, worker.TaskSheetsResync, "leads", struct{}{})
}

var exportHeaders = []string{
	"Lead ID", "Submitted At", "Form", "Status", "First Name", "Last Name", "Email", "Phone",
	"Interest", "Arrival", "Departure", "Adults", "Children", "Budget", "Message",
	"UTM Source", "UTM Medium", "UTM Campaign", "Forwarded At",
}

const exportPageSize = 500

// Export renders the leads matching f as an xlsx workbook.
func (s *LeadService) Export(ctx context.Context, f models.LeadFilter) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Leads"
	index, err := file.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	file.SetActiveSheet(index)
	_ = file.DeleteSheet("Sheet1")

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = file.SetCellValue(sheet, cell, h)
	}
	style, _ := file.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeaders))
	_ = file.SetCellStyle(sheet, "A1", lastCol+"1", style)
	_ = file.SetColWidth(sheet, "A", lastCol, 18)
	_ = file.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	row := 2
	f.Limit, f.Offset = exportPageSize, 0
	for {
		leads, _, err := s.repo.ListLeads(ctx, f)
		if err != nil {
			return nil, err
		}
		for i := range leads {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := file.SetSheetRow(sheet, cell, exportRow(&leads[i])); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
			row++
		}
		if len(leads) < exportPageSize {
			break
		}
		f.Offset += exportPageSize
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info().Int("rows", row-2).Msg("leads exported")
	return buf.Bytes(), nil
}

func exportRow(l *models.Lead) *[]interface{} {
	day := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02")
	}
	stamp := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.UTC().Format("2006-01-02 15:04")
	}
	created := l.CreatedAt
	return &[]interface{}{
		l.PublicID, stamp(&created), l.FormType, l.Status, l.FirstName, l.LastName, l.Email, l.Phone,
		l.Interest, day(l.ArrivalDate), day(l.DepartureDate), l.Adults, l.Children, l.Budget, l.Message,
		l.UTMSource, l.UTMMedium, l.UTMCampaign, stamp(l.ForwardedAt),
	}
}
