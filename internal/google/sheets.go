package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"cabo/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var leadHeaders = []interface{}{
	"Lead ID", "Submitted At", "Form", "First Name", "Last Name", "Email", "Phone",
	"Interest", "Arrival", "Departure", "Adults", "Children", "Budget", "Message",
	"UTM Source", "UTM Medium", "UTM Campaign", "Status",
}

// LeadsSheet mirrors captured leads into a Google spreadsheet.
type LeadsSheet struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
}

// NewLeadsSheet authenticates with a service-account JSON key file.
func NewLeadsSheet(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, opts ...option.ClientOption) (*LeadsSheet, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(config.Client(ctx))}, opts...)
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return NewLeadsSheetWithService(srv, spreadsheetID, sheetName), nil
}

func NewLeadsSheetWithService(srv *sheets.Service, spreadsheetID, sheetName string) *LeadsSheet {
	if sheetName == "" {
		sheetName = "Leads"
	}
	return &LeadsSheet{service: srv, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

// TestConnection reads the header cell.
func (s *LeadsSheet) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ServiceAccountEmail returns the address the spreadsheet must be shared with.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}
	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

func (s *LeadsSheet) AppendLead(ctx context.Context, lead *models.Lead) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{leadRowValues(lead)}}
	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.columnRange(), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append lead %s: %w", lead.PublicID, err)
	}
	return nil
}

// ReplaceLeads clears the sheet and writes the header plus every lead.
func (s *LeadsSheet) ReplaceLeads(ctx context.Context, leads []models.Lead) error {
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, s.columnRange(), &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear leads sheet: %w", err)
	}

	values := make([][]interface{}, 0, len(leads)+1)
	values = append(values, leadHeaders)
	for i := range leads {
		values = append(values, leadRowValues(&leads[i]))
	}

	rng := fmt.Sprintf("%s!A1:%s%d", s.sheetName, columnLetter(len(leadHeaders)), len(values))
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write leads sheet: %w", err)
	}
	return nil
}

func (s *LeadsSheet) columnRange() string {
	return fmt.Sprintf("%s!A:%s", s.sheetName, columnLetter(len(leadHeaders)))
}

func leadRowValues(l *models.Lead) []interface{} {
	return []interface{}{
		l.PublicID,
		l.CreatedAt.Format(time.RFC3339),
		l.FormType,
		l.FirstName,
		l.LastName,
		l.Email,
		l.Phone,
		l.Interest,
		formatDate(l.ArrivalDate),
		formatDate(l.DepartureDate),
		l.Adults,
		l.Children,
		l.Budget,
		strings.TrimSpace(l.Message),
		l.UTMSource,
		l.UTMMedium,
		l.UTMCampaign,
		l.Status,
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// columnLetter converts a 1-based column index to A1 notation.
func columnLetter(n int) string {
	var out []byte
	for n > 0 {
		n--
		out = append([]byte{byte('A' + n%26)}, out...)
		n /= 26
	}
	return string(out)
}
