package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cabo/internal/events"
	"cabo/internal/forms"
	"cabo/internal/models"
	"cabo/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func validLead() *forms.LeadInput {
	return &forms.LeadInput{
		FormType:      models.FormVillaInquiry,
		FirstName:     "Ana",
		LastName:      "Ruiz",
		Email:         "Ana@Example.com",
		Interest:      "Casa Azul",
		ArrivalDate:   "2030-03-10",
		DepartureDate: "2030-03-15",
		Adults:        4,
	}
}

func TestLeadService_Submit(t *testing.T) {
	db := newTestDB(t)
	q := &fakeQueue{}
	bus, got := recordBus(events.EventLeadCreated)
	svc := NewLeadService(db, q, bus, LeadOptions{WebhookURL: "https://hook.example.com/x", SheetsEnabled: true}, nil)
	ctx := context.Background()

	lead, err := svc.Submit(ctx, validLead())
	require.NoError(t, err)
	assert.NotEmpty(t, lead.PublicID)
	assert.Equal(t, "ana@example.com", lead.Email)

	stored, err := db.GetLeadByPublicID(ctx, lead.PublicID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadNew, stored.Status)

	assert.Equal(t, []string{worker.TaskWebhook, worker.TaskSheets}, q.types())
	var hook worker.WebhookPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload, &hook))
	assert.Equal(t, "https://hook.example.com/x", hook.URL)
	assert.Equal(t, lead.PublicID, hook.LeadID)
	var body forms.WebhookBody
	require.NoError(t, json.Unmarshal(hook.Body, &body))
	assert.Equal(t, "Casa Azul", body.Fields["Villa"])
	assert.Equal(t, "5", body.Fields["Nights"])

	require.Len(t, *got, 1)
	var p events.LeadEventPayload
	require.NoError(t, (*got)[0].Decode(&p))
	assert.Equal(t, "Ana Ruiz", p.Name)
}

func TestLeadService_SubmitInvalid(t *testing.T) {
	db := newTestDB(t)
	q := &fakeQueue{}
	svc := NewLeadService(db, q, nil, LeadOptions{WebhookURL: "https://hook.example.com/x"}, nil)

	in := validLead()
	in.DepartureDate = "2030-03-01"
	_, err := svc.Submit(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	var fe forms.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe, "departure_date")
	assert.Empty(t, q.types())

	_, total, err := db.ListLeads(context.Background(), models.LeadFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestLeadService_NoForwardingConfigured(t *testing.T) {
	db := newTestDB(t)
	q := &fakeQueue{}
	svc := NewLeadService(db, q, nil, LeadOptions{}, nil)

	_, err := svc.Submit(context.Background(), validLead())
	require.NoError(t, err)
	assert.Empty(t, q.types())
	assert.ErrorIs(t, svc.ResyncSheets(context.Background()), ErrDisabled)
}

func TestLeadService_AdminOperations(t *testing.T) {
	db := newTestDB(t)
	q := &fakeQueue{}
	svc := NewLeadService(db, q, nil, LeadOptions{SheetsEnabled: true}, nil)
	ctx := context.Background()

	lead, err := svc.Submit(ctx, validLead())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.UpdateStatus(ctx, lead.ID, "archived"), ErrValidation)
	require.NoError(t, svc.UpdateStatus(ctx, lead.ID, models.LeadQualified))

	leads, total, err := svc.List(ctx, models.LeadFilter{Status: models.LeadQualified})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, lead.PublicID, leads[0].PublicID)

	_, _, err = svc.List(ctx, models.LeadFilter{Status: "bogus"})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, svc.ResyncSheets(ctx))
	assert.Contains(t, q.types(), worker.TaskSheetsResync)
}

func TestLeadService_Export(t *testing.T) {
	db := newTestDB(t)
	svc := NewLeadService(db, nil, nil, LeadOptions{}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Submit(ctx, validLead())
		require.NoError(t, err)
	}

	data, err := svc.Export(ctx, models.LeadFilter{})
	require.NoError(t, err)

	book, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("Leads")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, "villa_inquiry", rows[1][2])
	assert.Equal(t, "ana@example.com", rows[1][6])
}
