package worker

import (
	"context"
	"time"

	"cabo/internal/domain"
	"cabo/internal/events"
	"cabo/internal/notify"

	"github.com/rs/zerolog"
)

// SubscribeNotifications turns domain events into notify tasks.
func SubscribeNotifications(bus *events.EventBus, queue domain.TaskQueue, logger *zerolog.Logger) {
	enqueue := func(ref, text string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := queue.Enqueue(ctx, TaskNotify, ref, NotifyPayload{Text: text}); err != nil {
			logger.Error().Err(err).Str("reference", ref).Msg("enqueue notification")
			return err
		}
		return nil
	}

	bus.Subscribe(events.EventLeadCreated, func(e *events.Event) error {
		var p events.LeadEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return enqueue(p.LeadID, notify.FormatLead(p))
	})
	bus.Subscribe(events.EventGuideDownloaded, func(e *events.Event) error {
		var p events.GuideEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return enqueue("guide:"+p.GuideSlug, notify.FormatGuide(p))
	})
	booking := func(e *events.Event) error {
		var p events.BookingEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return enqueue(p.Reference, notify.FormatBooking(e.Type, p))
	}
	bus.Subscribe(events.EventBookingCreated, booking)
	bus.Subscribe(events.EventBookingPaid, booking)
	bus.Subscribe(events.EventBookingStatus, booking)
	bus.Subscribe(events.EventBookingRefundDue, booking)
}
