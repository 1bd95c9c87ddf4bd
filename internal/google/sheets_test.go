package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cabo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(t *testing.T) (*http.ServeMux, *LeadsSheet) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	return mux, NewLeadsSheetWithService(srv, "leads_tid", "")
}

func TestLeadsSheet_TestConnection(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/leads_tid/values/Leads!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"Lead ID"}}})
	})
	assert.NoError(t, s.TestConnection(context.Background()))
}

func TestLeadsSheet_AppendLead(t *testing.T) {
	mux, s := setupMockServer(t)

	var got sheets.ValueRange
	var query string
	mux.HandleFunc("/v4/spreadsheets/leads_tid/values/Leads!A:R:append", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{})
	})

	arrival := time.Date(2030, 2, 10, 0, 0, 0, 0, time.UTC)
	lead := &models.Lead{
		PublicID: "abc", FormType: models.FormVillaInquiry, FirstName: "Ana", Email: "a@example.com",
		ArrivalDate: &arrival, Adults: 2, Status: models.LeadNew, CreatedAt: time.Now(),
	}
	require.NoError(t, s.AppendLead(context.Background(), lead))

	assert.Contains(t, query, "valueInputOption=USER_ENTERED")
	require.Len(t, got.Values, 1)
	row := got.Values[0]
	require.Len(t, row, len(leadHeaders))
	assert.Equal(t, "abc", row[0])
	assert.Equal(t, "villa_inquiry", row[2])
	assert.Equal(t, "2030-02-10", row[8])
	assert.Equal(t, "", row[9])
}

func TestLeadsSheet_ReplaceLeads(t *testing.T) {
	mux, s := setupMockServer(t)

	cleared := false
	mux.HandleFunc("/v4/spreadsheets/leads_tid/values/Leads!A:R:clear", func(w http.ResponseWriter, r *http.Request) {
		cleared = true
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})
	var written sheets.ValueRange
	mux.HandleFunc("/v4/spreadsheets/leads_tid/values/Leads!A1:R3", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&written)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	leads := []models.Lead{{PublicID: "a"}, {PublicID: "b"}}
	require.NoError(t, s.ReplaceLeads(context.Background(), leads))
	assert.True(t, cleared)
	require.Len(t, written.Values, 3)
	assert.Equal(t, "Lead ID", written.Values[0][0])
	assert.Equal(t, "b", written.Values[2][0])
}

func TestLeadsSheet_APIError(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/leads_tid/values/Leads!A:R:append", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	err := s.AppendLead(context.Background(), &models.Lead{PublicID: "x"})
	assert.Error(t, err)
}

func TestColumnLetter(t *testing.T) {
	assert.Equal(t, "A", columnLetter(1))
	assert.Equal(t, "R", columnLetter(18))
	assert.Equal(t, "Z", columnLetter(26))
	assert.Equal(t, "AA", columnLetter(27))
	assert.Equal(t, "BA", columnLetter(53))
}
