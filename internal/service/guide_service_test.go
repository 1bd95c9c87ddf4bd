package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cabo/internal/config"
	"cabo/internal/events"
	"cabo/internal/forms"
	"cabo/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuideService_Submit(t *testing.T) {
	db := newTestDB(t)
	q := &fakeQueue{}
	bus, got := recordBus(events.EventGuideDownloaded)
	guides := []config.Guide{{Slug: "family-guide", Title: "Family Guide to Cabo", DownloadURL: "https://cdn.example.com/family.pdf"}}
	svc := NewGuideService(guides, db, q, bus, "https://hook.example.com/guides", nil)
	ctx := context.Background()

	guide, err := svc.Submit(ctx, &forms.GuideInput{GuideSlug: "Family-Guide", FirstName: "Lu", Email: "lu@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/family.pdf", guide.DownloadURL)

	subs, total, err := svc.List(ctx, "family-guide", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "lu@example.com", subs[0].Email)

	require.Equal(t, []string{worker.TaskWebhook}, q.types())
	var hook worker.WebhookPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload, &hook))
	var body forms.WebhookBody
	require.NoError(t, json.Unmarshal(hook.Body, &body))
	assert.Equal(t, "guide_download", body.Form)
	assert.Equal(t, "Family Guide to Cabo", body.Fields["Guide"])
	assert.Equal(t, "family-guide", body.Fields["Guide Slug"])

	require.Len(t, *got, 1)
}

func TestGuideService_Rejects(t *testing.T) {
	db := newTestDB(t)
	svc := NewGuideService([]config.Guide{{Slug: "a", Title: "A"}}, db, nil, nil, "", nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, &forms.GuideInput{GuideSlug: "missing", FirstName: "Lu", Email: "lu@example.com"})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = svc.Submit(ctx, &forms.GuideInput{GuideSlug: "a", FirstName: "Lu", Email: "nope"})
	var fe forms.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe, "email")

	assert.Len(t, svc.Catalog(), 1)
}
