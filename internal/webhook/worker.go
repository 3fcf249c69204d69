package webhook

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/talentbridge/matchsync/internal/domain"
	"github.com/talentbridge/matchsync/internal/logger"
	"github.com/talentbridge/matchsync/internal/metrics"
	"github.com/talentbridge/matchsync/internal/signing"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultBatchSize    = 50
	// Response bodies recorded on failures are truncated to this size.
	maxRecordedBody = 500
)

// SignatureHeader carries the HMAC of the canonical payload.
const SignatureHeader = "X-Webhook-Signature"

// DeliveryStore is the slice of the webhook repository the worker needs.
type DeliveryStore interface {
	ClaimDeliverable(ctx context.Context, limit int) ([]*domain.WebhookEvent, error)
	RecordAttempt(ctx context.Context, eventID string, attempt domain.DeliveryAttempt, status domain.EventStatus, nextRetryAt *time.Time) error
	ReleaseEvent(ctx context.Context, eventID string, retryAt time.Time) error
	GetSubscription(ctx context.Context, id string) (*domain.WebhookSubscription, error)
}

// Worker drains the webhook outbox. Claimed rows are POSTed to the
// subscription URL with a signed payload; failures are rescheduled per
// the subscription's retry strategy until max attempts is exhausted.
type Worker struct {
	store   DeliveryStore
	http    *http.Client
	logger  logger.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	pollInterval time.Duration
	batchSize    int
	now          func() time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// WorkerConfig holds worker tuning options.
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// NewWorker creates a delivery worker.
func NewWorker(store DeliveryStore, cfg WorkerConfig, m *metrics.Metrics, log logger.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	return &Worker{
		store:        store,
		http:         &http.Client{},
		logger:       log,
		metrics:      m,
		tracer:       otel.Tracer("webhook-worker"),
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		now:          time.Now,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the polling loop.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info("webhook worker started",
		logger.Duration("poll_interval", w.pollInterval),
		logger.Int("batch_size", w.batchSize))
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("webhook worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.ProcessOnce(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ProcessOnce claims and delivers one batch of due events.
func (w *Worker) ProcessOnce(ctx context.Context) {
	events, err := w.store.ClaimDeliverable(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to claim webhook events", logger.Error(err))
		return
	}

	for _, event := range events {
		w.deliverOne(ctx, event)
	}
}

func (w *Worker) deliverOne(ctx context.Context, event *domain.WebhookEvent) {
	ctx, span := w.tracer.Start(ctx, "webhook.deliver",
		trace.WithAttributes(
			attribute.String("event_id", event.ID),
			attribute.String("event_type", string(event.EventType)),
			attribute.String("subscription_id", event.SubscriptionID),
			attribute.Int("prior_attempts", len(event.Attempts)),
		))
	defer span.End()

	sub, err := w.store.GetSubscription(ctx, event.SubscriptionID)
	if err != nil {
		// A store hiccup is not a delivery attempt. The claim is
		// released so the event stays deliverable on a later poll.
		w.logger.Error("failed to load subscription for event",
			logger.String("event_id", event.ID),
			logger.String("subscription_id", event.SubscriptionID),
			logger.Error(err))
		retryAt := w.now().UTC().Add(w.pollInterval)
		if releaseErr := w.store.ReleaseEvent(ctx, event.ID, retryAt); releaseErr != nil {
			w.logger.Error("failed to release claimed event",
				logger.String("event_id", event.ID),
				logger.Error(releaseErr))
		}
		return
	}

	attempt := w.post(ctx, sub, event)
	w.recordOutcome(ctx, event, sub, attempt)
}

// post performs one signed POST and returns the attempt record.
func (w *Worker) post(ctx context.Context, sub *domain.WebhookSubscription, event *domain.WebhookEvent) domain.DeliveryAttempt {
	attempt := domain.DeliveryAttempt{AttemptedAt: w.now().UTC()}

	timeout := time.Duration(sub.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	postCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(postCtx, http.MethodPost, sub.URL, bytes.NewReader(event.Payload))
	if err != nil {
		attempt.Error = "create request: " + err.Error()
		return attempt
	}

	signer := signing.NewSigner(sub.Secret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, "sha256="+signer.Sign(event.Payload))
	req.Header.Set("X-Event-Type", string(event.EventType))
	req.Header.Set("X-Correlation-ID", event.CorrelationID)
	req.Header.Set("X-Timestamp", attempt.AttemptedAt.Format(time.RFC3339))

	start := w.now()
	resp, err := w.http.Do(req)
	w.metrics.WebhookAttemptTime.Observe(time.Since(start).Seconds())

	if err != nil {
		attempt.Error = "http request: " + err.Error()
		return attempt
	}
	defer resp.Body.Close()

	attempt.HTTPStatus = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxRecordedBody))
		attempt.Error = string(body)
	} else {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
	}
	return attempt
}

// recordOutcome classifies the attempt and persists the event's next
// state: delivered on 2xx, dropped on non-retryable 4xx, failed with a
// scheduled retry otherwise until attempts are exhausted.
func (w *Worker) recordOutcome(ctx context.Context, event *domain.WebhookEvent, sub *domain.WebhookSubscription, attempt domain.DeliveryAttempt) {
	attemptsSoFar := len(event.Attempts) + 1

	var status domain.EventStatus
	var nextRetryAt *time.Time

	switch {
	case attempt.HTTPStatus >= 200 && attempt.HTTPStatus < 300:
		status = domain.EventDelivered

	case attempt.HTTPStatus >= 400 && attempt.HTTPStatus < 500 &&
		attempt.HTTPStatus != http.StatusTooManyRequests:
		// The consumer rejected the payload; retrying cannot help.
		// 429 is the exception: the consumer wants the event later.
		status = domain.EventDropped

	case attemptsSoFar < maxAttemptsFor(sub):
		status = domain.EventFailed
		retryAt := attempt.AttemptedAt.Add(sub.NextRetryDelay(attemptsSoFar))
		nextRetryAt = &retryAt
		attempt.NextRetryAt = &retryAt

	default:
		status = domain.EventDropped
	}

	if err := w.store.RecordAttempt(ctx, event.ID, attempt, status, nextRetryAt); err != nil {
		w.logger.Error("failed to record delivery attempt",
			logger.String("event_id", event.ID),
			logger.Error(err))
		return
	}

	w.metrics.WebhookDeliveries.WithLabelValues(string(status)).Inc()

	switch status {
	case domain.EventDelivered:
		w.logger.Debug("webhook delivered",
			logger.String("event_id", event.ID),
			logger.Int("attempts", attemptsSoFar))
	case domain.EventDropped:
		w.logger.Warn("webhook dropped",
			logger.String("event_id", event.ID),
			logger.Int("http_status", attempt.HTTPStatus),
			logger.Int("attempts", attemptsSoFar),
			logger.String("error", attempt.Error))
	default:
		w.logger.Debug("webhook delivery failed, retry scheduled",
			logger.String("event_id", event.ID),
			logger.Int("http_status", attempt.HTTPStatus),
			logger.Int("attempts", attemptsSoFar))
	}
}

func maxAttemptsFor(sub *domain.WebhookSubscription) int {
	if sub.MaxAttempts > 0 {
		return sub.MaxAttempts
	}
	return 3
}

// VerifySignature checks a received signature header against the body.
// Consumers use this to authenticate deliveries.
func VerifySignature(secret string, body []byte, header string) bool {
	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}
	return signing.NewSigner(secret).Verify(body, header[len(prefix):])
}
