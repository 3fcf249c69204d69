// Package webhook implements outbound event delivery: a dispatcher
// fans events out to subscriptions as outbox rows, and a worker drains
// the outbox with signed POSTs and per-subscription retry schedules.
package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/talentbridge/matchsync/internal/domain"
	"github.com/talentbridge/matchsync/internal/logger"
	"github.com/talentbridge/matchsync/internal/signing"
)

// SubscriptionStore is the slice of the webhook repository the
// dispatcher needs.
type SubscriptionStore interface {
	ListActiveSubscriptions(ctx context.Context) ([]*domain.WebhookSubscription, error)
	EnqueueEvent(ctx context.Context, e *domain.WebhookEvent) (bool, error)
}

// Dispatcher turns service events into per-subscription outbox rows.
type Dispatcher struct {
	store  SubscriptionStore
	logger logger.Logger
	now    func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(store SubscriptionStore, log logger.Logger) *Dispatcher {
	return &Dispatcher{store: store, logger: log, now: time.Now}
}

// Emit enqueues the event for every active subscription that wants its
// type. The payload is canonicalized once so every consumer sees the
// same signed bytes. correlationID makes re-emission idempotent.
func (d *Dispatcher) Emit(ctx context.Context, eventType domain.EventType, correlationID string, payload any) error {
	body, err := eventBody(eventType, correlationID, d.now().UTC(), payload)
	if err != nil {
		return err
	}

	subs, err := d.store.ListActiveSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	var enqueued int
	for _, sub := range subs {
		if !sub.Subscribed(eventType) {
			continue
		}
		queued, enqueueErr := d.store.EnqueueEvent(ctx, &domain.WebhookEvent{
			SubscriptionID: sub.ID,
			CorrelationID:  correlationID,
			EventType:      eventType,
			Payload:        body,
		})
		if enqueueErr != nil {
			d.logger.Error("failed to enqueue webhook event",
				logger.String("subscription_id", sub.ID),
				logger.String("event_type", string(eventType)),
				logger.String("correlation_id", correlationID),
				logger.Error(enqueueErr),
			)
			continue
		}
		if queued {
			enqueued++
		}
	}

	if enqueued > 0 {
		d.logger.Debug("webhook event fanned out",
			logger.String("event_type", string(eventType)),
			logger.String("correlation_id", correlationID),
			logger.Int("subscriptions", enqueued),
		)
	}
	return nil
}

// eventBody builds the canonical-JSON envelope stored in the outbox and
// later signed on delivery.
func eventBody(eventType domain.EventType, correlationID string, emittedAt time.Time, payload any) ([]byte, error) {
	envelope := map[string]any{
		"event":          string(eventType),
		"correlation_id": correlationID,
		"timestamp":      emittedAt.Format(time.RFC3339),
		"source":         "core",
		"data":           payload,
	}
	body, err := signing.CanonicalizeValue(envelope)
	if err != nil {
		return nil, fmt.Errorf("canonicalize event payload: %w", err)
	}
	return body, nil
}
