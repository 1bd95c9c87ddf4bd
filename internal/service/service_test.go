package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"cabo/internal/config"
	"cabo/internal/database"
	"cabo/internal/events"
	"cabo/internal/payments"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "cabo.db"),
	}, &logger)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type queuedTask struct {
	Type      string
	Reference string
	Payload   json.RawMessage
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []queuedTask
}

func (q *fakeQueue) Enqueue(_ context.Context, taskType, reference string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, queuedTask{Type: taskType, Reference: reference, Payload: raw})
	return nil
}

func (q *fakeQueue) types() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.tasks))
	for i, t := range q.tasks {
		out[i] = t.Type
	}
	return out
}

// recordBus subscribes to every event type and keeps what was published.
func recordBus(types ...string) (*events.EventBus, *[]*events.Event) {
	bus := events.NewEventBus()
	var got []*events.Event
	for _, typ := range types {
		bus.Subscribe(typ, func(e *events.Event) error {
			got = append(got, e)
			return nil
		})
	}
	return bus, &got
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateCheckout(ctx context.Context, req payments.CheckoutRequest) (*payments.Checkout, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Checkout), args.Error(1)
}

func (m *mockProvider) ParseWebhook(payload []byte, signature string) (*payments.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.WebhookEvent), args.Error(1)
}
