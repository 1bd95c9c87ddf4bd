package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventLeadCreated     = "lead_created"
	EventGuideDownloaded = "guide_downloaded"
	EventBookingCreated  = "booking_created"
	EventBookingPaid     = "booking_paid"
	EventBookingStatus   = "booking_status_changed"
	// EventBookingRefundDue fires when a deposit lands on a booking that is no
	// longer pending.
	EventBookingRefundDue = "booking_refund_due"
)

// LeadEventPayload is published after a form submission is stored.
type LeadEventPayload struct {
	LeadID    string    `json:"lead_id"`
	FormType  string    `json:"form_type"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Interest  string    `json:"interest,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type GuideEventPayload struct {
	GuideSlug  string `json:"guide_slug"`
	GuideTitle string `json:"guide_title"`
	Name       string `json:"name"`
	Email      string `json:"email"`
}

// BookingEventPayload describes the booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID   uint      `json:"booking_id"`
	Reference   string    `json:"reference"`
	ListingType string    `json:"listing_type"`
	ListingName string    `json:"listing_name"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	CheckIn     time.Time `json:"check_in"`
	CheckOut    time.Time `json:"check_out"`
	Guests      int       `json:"guests"`
	Total       int64     `json:"total"`
	Deposit     int64     `json:"deposit"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	ChangedBy   string    `json:"changed_by,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     func(event *Event, err error)
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError sets a callback for handler failures; by default they are dropped.
func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
