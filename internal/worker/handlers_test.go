package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"cabo/internal/events"
	"cabo/internal/models"
	"cabo/internal/webhook"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoster struct {
	url  string
	body interface{}
	err  error
}

func (f *fakePoster) Post(_ context.Context, url string, body interface{}) error {
	f.url, f.body = url, body
	return f.err
}

type fakeSheet struct {
	appended []string
	replaced int
}

func (f *fakeSheet) AppendLead(_ context.Context, lead *models.Lead) error {
	f.appended = append(f.appended, lead.PublicID)
	return nil
}

func (f *fakeSheet) ReplaceLeads(_ context.Context, leads []models.Lead) error {
	f.replaced = len(leads)
	return nil
}

type fakeNotifier struct{ texts []string }

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

type recordingQueue struct {
	tasks []string
	refs  []string
}

func (q *recordingQueue) Enqueue(_ context.Context, taskType, ref string, _ interface{}) error {
	q.tasks = append(q.tasks, taskType)
	q.refs = append(q.refs, ref)
	return nil
}

func taskWith(t *testing.T, payload interface{}) *models.OutboxTask {
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &models.OutboxTask{Payload: string(raw)}
}

func TestWebhookHandler(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	lead := &models.Lead{PublicID: uuid.NewString(), FormType: models.FormContact, FirstName: "Ana", Email: "a@example.com"}
	require.NoError(t, db.CreateLead(ctx, lead))

	poster := &fakePoster{}
	h := WebhookHandler(poster, db)
	err := h(ctx, taskWith(t, WebhookPayload{URL: "https://hook.make.com/x", LeadID: lead.PublicID, Body: json.RawMessage(`{"form":"contact"}`)}))
	require.NoError(t, err)
	assert.Equal(t, "https://hook.make.com/x", poster.url)

	got, err := db.GetLeadByPublicID(ctx, lead.PublicID)
	require.NoError(t, err)
	assert.NotNil(t, got.ForwardedAt)

	poster.err = fmt.Errorf("%w: status 404", webhook.ErrPermanent)
	err = h(ctx, taskWith(t, WebhookPayload{URL: "https://hook.make.com/x"}))
	assert.ErrorIs(t, err, ErrPermanent)

	poster.err = errors.New("timeout")
	err = h(ctx, taskWith(t, WebhookPayload{URL: "https://hook.make.com/x"}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPermanent)

	err = h(ctx, &models.OutboxTask{Payload: "not json"})
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestSheetsHandlers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	lead := &models.Lead{PublicID: uuid.NewString(), FormType: models.FormWedding, FirstName: "Ana", Email: "a@example.com"}
	require.NoError(t, db.CreateLead(ctx, lead))

	sheet := &fakeSheet{}
	require.NoError(t, SheetsAppendHandler(sheet, db)(ctx, taskWith(t, SheetsPayload{LeadID: lead.PublicID})))
	assert.Equal(t, []string{lead.PublicID}, sheet.appended)

	err := SheetsAppendHandler(sheet, db)(ctx, taskWith(t, SheetsPayload{LeadID: "missing"}))
	assert.ErrorIs(t, err, ErrPermanent)

	require.NoError(t, SheetsResyncHandler(sheet, db)(ctx, &models.OutboxTask{Payload: "{}"}))
	assert.Equal(t, 1, sheet.replaced)
}

func TestNotifyHandler(t *testing.T) {
	n := &fakeNotifier{}
	require.NoError(t, NotifyHandler(n)(context.Background(), taskWith(t, NotifyPayload{Text: "hello"})))
	require.NoError(t, NotifyHandler(n)(context.Background(), taskWith(t, NotifyPayload{})))
	assert.Equal(t, []string{"hello"}, n.texts)
}

func TestSubscribeNotifications(t *testing.T) {
	bus := events.NewEventBus()
	q := &recordingQueue{}
	logger := zerolog.Nop()
	SubscribeNotifications(bus, q, &logger)

	require.NoError(t, bus.PublishJSON(events.EventLeadCreated, events.LeadEventPayload{LeadID: "L1", FormType: "contact"}))
	require.NoError(t, bus.PublishJSON(events.EventGuideDownloaded, events.GuideEventPayload{GuideSlug: "family"}))
	require.NoError(t, bus.PublishJSON(events.EventBookingPaid, events.BookingEventPayload{Reference: "CB-1", CheckIn: time.Now()}))

	assert.Equal(t, []string{TaskNotify, TaskNotify, TaskNotify}, q.tasks)
	assert.Equal(t, []string{"L1", "guide:family", "CB-1"}, q.refs)
}
