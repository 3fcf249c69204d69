package domain

import "time"

// EventType identifies a webhook event emitted by the service.
type EventType string

const (
	EventMatchCreated     EventType = "match.created"
	EventPlacementCreated EventType = "placement.created"
	EventPlacementUpdated EventType = "placement.updated"
	EventSyncCompleted    EventType = "sync.completed"
	EventSyncFailed       EventType = "sync.failed"
)

// RetryStrategy selects how delivery retries are spaced.
type RetryStrategy string

const (
	// RetryExponential waits 2^n seconds before attempt n+1.
	RetryExponential RetryStrategy = "exponential"
	// RetryLinear waits 5*(n+1) seconds before attempt n+1.
	RetryLinear RetryStrategy = "linear"
)

// WebhookSubscription is a registered webhook consumer.
type WebhookSubscription struct {
	ID             string        `db:"id"`
	Owner          string        `db:"owner"`
	URL            string        `db:"url"`
	EventTypes     []EventType   `db:"-"`
	Secret         string        `db:"secret"`
	Active         bool          `db:"active"`
	RetryStrategy  RetryStrategy `db:"retry_strategy"`
	MaxAttempts    int           `db:"max_attempts"`
	TimeoutSeconds int           `db:"timeout_seconds"`
	CreatedAt      time.Time     `db:"created_at"`
}

// Subscribed reports whether the subscription wants the event type.
func (s *WebhookSubscription) Subscribed(t EventType) bool {
	for _, et := range s.EventTypes {
		if et == t {
			return true
		}
	}
	return false
}

// NextRetryDelay returns the wait before the attempt following
// attemptsSoFar, per the subscription strategy.
func (s *WebhookSubscription) NextRetryDelay(attemptsSoFar int) time.Duration {
	if s.RetryStrategy == RetryLinear {
		return time.Duration(5*(attemptsSoFar+1)) * time.Second
	}
	return time.Duration(1<<uint(attemptsSoFar)) * time.Second
}

// EventStatus is the delivery state of a webhook event.
type EventStatus string

const (
	EventPending    EventStatus = "pending"
	EventDelivering EventStatus = "delivering"
	EventDelivered  EventStatus = "delivered"
	EventFailed     EventStatus = "failed"
	EventDropped    EventStatus = "dropped"
)

// DeliveryAttempt records one POST to a subscription URL. Attempts are
// appended to the event's JSONB attempts array; none is ever lost.
type DeliveryAttempt struct {
	AttemptedAt time.Time  `json:"attempted_at"`
	HTTPStatus  int        `json:"http_status,omitempty"`
	Error       string     `json:"error,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}

// WebhookEvent is one event queued for delivery to one subscription.
// Identity is (subscription_id, correlation_id).
type WebhookEvent struct {
	ID             string            `db:"id"`
	SubscriptionID string            `db:"subscription_id"`
	CorrelationID  string            `db:"correlation_id"`
	EventType      EventType         `db:"event_type"`
	Payload        []byte            `db:"payload"`
	Status         EventStatus       `db:"status"`
	Attempts       []DeliveryAttempt `db:"-"`
	NextRetryAt    *time.Time        `db:"next_retry_at"`
	CreatedAt      time.Time         `db:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at"`
}
