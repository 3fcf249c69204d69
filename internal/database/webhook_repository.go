package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/talentbridge/matchsync/internal/domain"
)

const subscriptionSelectList = `id, owner, url, event_types, secret, active,
	retry_strategy, max_attempts, timeout_seconds, created_at`

const eventSelectList = `id, subscription_id, correlation_id, event_type,
	payload, status, attempts, next_retry_at, created_at, updated_at`

// WebhookRepository manages subscriptions and the event outbox.
type WebhookRepository struct {
	db *sqlx.DB
}

// NewWebhookRepository creates a new repository.
func NewWebhookRepository(db *sqlx.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// CreateSubscription registers a webhook consumer.
func (r *WebhookRepository) CreateSubscription(ctx context.Context, s *domain.WebhookSubscription) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	types := make([]string, len(s.EventTypes))
	for i, t := range s.EventTypes {
		types[i] = string(t)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_subscriptions (id, owner, url, event_types,
			secret, active, retry_strategy, max_attempts, timeout_seconds,
			created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
		s.ID, s.Owner, s.URL, pq.Array(types), s.Secret, s.Active,
		s.RetryStrategy, s.MaxAttempts, s.TimeoutSeconds)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// SetSubscriptionActive toggles a subscription on or off.
func (r *WebhookRepository) SetSubscriptionActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE webhook_subscriptions SET active = $2 WHERE id = $1`,
		id, active)
	if err != nil {
		return fmt.Errorf("set subscription active: %w", err)
	}
	return checkAffected(result)
}

// GetSubscription retrieves a subscription by id.
func (r *WebhookRepository) GetSubscription(ctx context.Context, id string) (*domain.WebhookSubscription, error) {
	row := r.db.QueryRowxContext(ctx,
		`SELECT `+subscriptionSelectList+` FROM webhook_subscriptions WHERE id = $1`, id)
	s, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return s, nil
}

// ListActiveSubscriptions returns every active subscription.
func (r *WebhookRepository) ListActiveSubscriptions(ctx context.Context) ([]*domain.WebhookSubscription, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT `+subscriptionSelectList+` FROM webhook_subscriptions
		WHERE active = TRUE
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*domain.WebhookSubscription
	for rows.Next() {
		s, scanErr := scanSubscription(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan subscription: %w", scanErr)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// EnqueueEvent inserts a pending event for one subscription. The
// (subscription_id, correlation_id) identity makes emission idempotent:
// re-enqueueing the same correlation id is a no-op.
func (r *WebhookRepository) EnqueueEvent(ctx context.Context, e *domain.WebhookEvent) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_events (id, subscription_id, correlation_id,
			event_type, payload, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', '[]'::jsonb, NOW(), NOW())
		ON CONFLICT (subscription_id, correlation_id) DO NOTHING`,
		e.ID, e.SubscriptionID, e.CorrelationID, e.EventType, e.Payload)
	if err != nil {
		return false, fmt.Errorf("enqueue event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get affected rows: %w", err)
	}
	return rows > 0, nil
}

// ClaimDeliverable atomically claims up to limit due events, moving them
// to delivering. SKIP LOCKED keeps concurrent workers from claiming the
// same row, so each event is delivered by exactly one worker.
func (r *WebhookRepository) ClaimDeliverable(ctx context.Context, limit int) ([]*domain.WebhookEvent, error) {
	rows, err := r.db.QueryxContext(ctx, `
		UPDATE webhook_events
		SET status = 'delivering', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM webhook_events
			WHERE (status = 'pending' OR status = 'failed')
			  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+eventSelectList, limit)
	if err != nil {
		return nil, fmt.Errorf("claim events: %w", err)
	}
	defer rows.Close()

	var out []*domain.WebhookEvent
	for rows.Next() {
		e, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan event: %w", scanErr)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ReleaseEvent returns a claimed event to the queue without consuming
// a delivery attempt. Used when a delivery could not even be started,
// so the attempt history stays a record of real POSTs.
func (r *WebhookRepository) ReleaseEvent(ctx context.Context, id string, retryAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE webhook_events
		SET status = 'pending', next_retry_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'delivering'`,
		id, retryAt)
	if err != nil {
		return fmt.Errorf("release event: %w", err)
	}
	return checkAffected(result)
}

// RecordAttempt appends a delivery attempt and sets the event's new
// status. nextRetryAt is nil for terminal outcomes.
func (r *WebhookRepository) RecordAttempt(ctx context.Context, eventID string, attempt domain.DeliveryAttempt, status domain.EventStatus, nextRetryAt *time.Time) error {
	payload, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE webhook_events
		SET attempts = attempts || $2::jsonb,
		    status = $3, next_retry_at = $4, updated_at = NOW()
		WHERE id = $1`,
		eventID, payload, status, nextRetryAt)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return checkAffected(result)
}

// GetEvent retrieves an event with its full attempt history.
func (r *WebhookRepository) GetEvent(ctx context.Context, id string) (*domain.WebhookEvent, error) {
	row := r.db.QueryRowxContext(ctx,
		`SELECT `+eventSelectList+` FROM webhook_events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListEvents returns recent events, optionally filtered by status.
func (r *WebhookRepository) ListEvents(ctx context.Context, status domain.EventStatus, limit int) ([]*domain.WebhookEvent, error) {
	query := `SELECT ` + eventSelectList + ` FROM webhook_events`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*domain.WebhookEvent
	for rows.Next() {
		e, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan event: %w", scanErr)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanSubscription(row rowScanner) (*domain.WebhookSubscription, error) {
	var s domain.WebhookSubscription
	var types pq.StringArray
	err := row.Scan(
		&s.ID, &s.Owner, &s.URL, &types, &s.Secret, &s.Active,
		&s.RetryStrategy, &s.MaxAttempts, &s.TimeoutSeconds, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.EventTypes = make([]domain.EventType, len(types))
	for i, t := range types {
		s.EventTypes[i] = domain.EventType(t)
	}
	return &s, nil
}

func scanEvent(row rowScanner) (*domain.WebhookEvent, error) {
	var e domain.WebhookEvent
	var attempts []byte
	err := row.Scan(
		&e.ID, &e.SubscriptionID, &e.CorrelationID, &e.EventType,
		&e.Payload, &e.Status, &attempts, &e.NextRetryAt,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(attempts) > 0 {
		if unmarshalErr := json.Unmarshal(attempts, &e.Attempts); unmarshalErr != nil {
			return nil, fmt.Errorf("unmarshal attempts: %w", unmarshalErr)
		}
	}
	return &e, nil
}
