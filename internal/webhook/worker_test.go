package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentbridge/matchsync/internal/domain"
	"github.com/talentbridge/matchsync/internal/logger"
	"github.com/talentbridge/matchsync/internal/metrics"
)

// fakeStore is an in-memory DeliveryStore and SubscriptionStore.
type fakeStore struct {
	subs   map[string]*domain.WebhookSubscription
	events map[string]*domain.WebhookEvent
	now    func() time.Time
	subErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:   map[string]*domain.WebhookSubscription{},
		events: map[string]*domain.WebhookEvent{},
		now:    time.Now,
	}
}

func (s *fakeStore) ListActiveSubscriptions(_ context.Context) ([]*domain.WebhookSubscription, error) {
	var out []*domain.WebhookSubscription
	for _, sub := range s.subs {
		if sub.Active {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *fakeStore) EnqueueEvent(_ context.Context, e *domain.WebhookEvent) (bool, error) {
	key := e.SubscriptionID + ":" + e.CorrelationID
	if _, exists := s.events[key]; exists {
		return false, nil
	}
	e.ID = fmt.Sprintf("ev-%d", len(s.events)+1)
	e.Status = domain.EventPending
	s.events[key] = e
	return true, nil
}

func (s *fakeStore) ClaimDeliverable(_ context.Context, limit int) ([]*domain.WebhookEvent, error) {
	var out []*domain.WebhookEvent
	for _, e := range s.events {
		if len(out) >= limit {
			break
		}
		due := (e.Status == domain.EventPending || e.Status == domain.EventFailed) &&
			(e.NextRetryAt == nil || !e.NextRetryAt.After(s.now()))
		if due {
			e.Status = domain.EventDelivering
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeStore) RecordAttempt(_ context.Context, eventID string, attempt domain.DeliveryAttempt, status domain.EventStatus, nextRetryAt *time.Time) error {
	for _, e := range s.events {
		if e.ID == eventID {
			e.Attempts = append(e.Attempts, attempt)
			e.Status = status
			e.NextRetryAt = nextRetryAt
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeStore) ReleaseEvent(_ context.Context, eventID string, retryAt time.Time) error {
	for _, e := range s.events {
		if e.ID == eventID {
			e.Status = domain.EventPending
			e.NextRetryAt = &retryAt
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeStore) GetSubscription(_ context.Context, id string) (*domain.WebhookSubscription, error) {
	if s.subErr != nil {
		return nil, s.subErr
	}
	sub, ok := s.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sub, nil
}

func (s *fakeStore) eventByID(id string) *domain.WebhookEvent {
	for _, e := range s.events {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func newTestWorker(store *fakeStore) *Worker {
	return NewWorker(store, WorkerConfig{}, metrics.NewNop(), logger.Nop())
}

func subscription(url string) *domain.WebhookSubscription {
	return &domain.WebhookSubscription{
		ID:     "sub-1",
		Owner:  "ats-team",
		URL:    url,
		Secret: "hook-secret",
		Active: true,
		EventTypes: []domain.EventType{
			domain.EventMatchCreated, domain.EventSyncCompleted,
		},
		RetryStrategy:  domain.RetryExponential,
		MaxAttempts:    5,
		TimeoutSeconds: 5,
	}
}

func TestWorker_DeliversSignedPayload(t *testing.T) {
	var gotSig string
	var gotBody []byte
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newFakeStore()
	store.subs["sub-1"] = subscription(server.URL)

	dispatcher := NewDispatcher(store, logger.Nop())
	err := dispatcher.Emit(context.Background(), domain.EventMatchCreated,
		"match.created:m1:0.90:perfect", map[string]any{
			"match_id": "m1",
			"score":    0.90,
		})
	require.NoError(t, err)
	require.Len(t, store.events, 1)

	worker := newTestWorker(store)
	worker.ProcessOnce(context.Background())

	event := store.eventByID("ev-1")
	require.NotNil(t, event)
	assert.Equal(t, domain.EventDelivered, event.Status)
	require.Len(t, event.Attempts, 1)
	assert.Equal(t, http.StatusOK, event.Attempts[0].HTTPStatus)

	assert.Equal(t, "match.created", gotHeaders.Get("X-Event-Type"))
	assert.Equal(t, "match.created:m1:0.90:perfect", gotHeaders.Get("X-Correlation-ID"))
	ts, err := time.Parse(time.RFC3339, gotHeaders.Get("X-Timestamp"))
	require.NoError(t, err)
	assert.False(t, ts.IsZero())

	// Consumer-side verification over the exact delivered bytes.
	assert.True(t, VerifySignature("hook-secret", gotBody, gotSig))
	assert.False(t, VerifySignature("wrong-secret", gotBody, gotSig))
}

func TestWorker_RetriesServerErrorsThenDelivers(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newFakeStore()
	store.subs["sub-1"] = subscription(server.URL)
	_, err := store.EnqueueEvent(context.Background(), &domain.WebhookEvent{
		SubscriptionID: "sub-1",
		CorrelationID:  "sync.completed:run-1",
		EventType:      domain.EventSyncCompleted,
		Payload:        []byte(`{"run_id":"run-1"}`),
	})
	require.NoError(t, err)

	// Virtual clock shared by worker and store so retry due times pass
	// without sleeping.
	clock := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return clock }
	worker := newTestWorker(store)
	worker.now = func() time.Time { return clock }

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		worker.ProcessOnce(ctx)
		clock = clock.Add(time.Minute)
	}

	event := store.eventByID("ev-1")
	require.NotNil(t, event)
	assert.Equal(t, domain.EventDelivered, event.Status)
	require.Len(t, event.Attempts, 4)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusInternalServerError, event.Attempts[i].HTTPStatus)
		require.NotNil(t, event.Attempts[i].NextRetryAt, "attempt %d should schedule a retry", i)
	}
	assert.Equal(t, http.StatusOK, event.Attempts[3].HTTPStatus)
	assert.Nil(t, event.Attempts[3].NextRetryAt)

	// Exponential schedule: 2^n seconds after attempt n.
	first := event.Attempts[0]
	assert.Equal(t, first.AttemptedAt.Add(2*time.Second), *first.NextRetryAt)
	second := event.Attempts[1]
	assert.Equal(t, second.AttemptedAt.Add(4*time.Second), *second.NextRetryAt)
}

func TestWorker_RetriesTooManyRequests(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newFakeStore()
	store.subs["sub-1"] = subscription(server.URL)
	_, err := store.EnqueueEvent(context.Background(), &domain.WebhookEvent{
		SubscriptionID: "sub-1",
		CorrelationID:  "match.created:m4",
		EventType:      domain.EventMatchCreated,
		Payload:        []byte(`{}`),
	})
	require.NoError(t, err)

	clock := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return clock }
	worker := newTestWorker(store)
	worker.now = func() time.Time { return clock }

	ctx := context.Background()
	worker.ProcessOnce(ctx)

	// 429 schedules a retry instead of dropping the event.
	event := store.eventByID("ev-1")
	require.NotNil(t, event)
	assert.Equal(t, domain.EventFailed, event.Status)
	require.Len(t, event.Attempts, 1)
	assert.Equal(t, http.StatusTooManyRequests, event.Attempts[0].HTTPStatus)
	require.NotNil(t, event.Attempts[0].NextRetryAt)

	clock = clock.Add(time.Minute)
	worker.ProcessOnce(ctx)

	event = store.eventByID("ev-1")
	assert.Equal(t, domain.EventDelivered, event.Status)
	require.Len(t, event.Attempts, 2)
	assert.Equal(t, http.StatusOK, event.Attempts[1].HTTPStatus)
}

func TestWorker_SubscriptionLookupFailureKeepsEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newFakeStore()
	store.subs["sub-1"] = subscription(server.URL)
	store.subErr = fmt.Errorf("connection reset")
	_, err := store.EnqueueEvent(context.Background(), &domain.WebhookEvent{
		SubscriptionID: "sub-1",
		CorrelationID:  "match.created:m5",
		EventType:      domain.EventMatchCreated,
		Payload:        []byte(`{}`),
	})
	require.NoError(t, err)

	clock := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return clock }
	worker := newTestWorker(store)
	worker.now = func() time.Time { return clock }

	ctx := context.Background()
	worker.ProcessOnce(ctx)

	// No delivery was attempted, so nothing was consumed from the
	// attempt budget and the event is back in the queue.
	event := store.eventByID("ev-1")
	require.NotNil(t, event)
	assert.Equal(t, domain.EventPending, event.Status)
	assert.Empty(t, event.Attempts)
	require.NotNil(t, event.NextRetryAt)

	store.subErr = nil
	clock = clock.Add(time.Minute)
	worker.ProcessOnce(ctx)

	event = store.eventByID("ev-1")
	assert.Equal(t, domain.EventDelivered, event.Status)
	require.Len(t, event.Attempts, 1)
}

func TestWorker_DropsOnClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"unknown event shape"}`)
	}))
	defer server.Close()

	store := newFakeStore()
	store.subs["sub-1"] = subscription(server.URL)
	_, err := store.EnqueueEvent(context.Background(), &domain.WebhookEvent{
		SubscriptionID: "sub-1",
		CorrelationID:  "match.created:m2",
		EventType:      domain.EventMatchCreated,
		Payload:        []byte(`{}`),
	})
	require.NoError(t, err)

	worker := newTestWorker(store)
	worker.ProcessOnce(context.Background())

	event := store.eventByID("ev-1")
	require.NotNil(t, event)
	assert.Equal(t, domain.EventDropped, event.Status)
	require.Len(t, event.Attempts, 1)
	assert.Contains(t, event.Attempts[0].Error, "unknown event shape")
}

func TestWorker_ExhaustedAttemptsDropped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := newFakeStore()
	sub := subscription(server.URL)
	sub.MaxAttempts = 2
	store.subs["sub-1"] = sub
	_, err := store.EnqueueEvent(context.Background(), &domain.WebhookEvent{
		SubscriptionID: "sub-1",
		CorrelationID:  "match.created:m3",
		EventType:      domain.EventMatchCreated,
		Payload:        []byte(`{}`),
	})
	require.NoError(t, err)

	clock := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return clock }
	worker := newTestWorker(store)
	worker.now = func() time.Time { return clock }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		worker.ProcessOnce(ctx)
		clock = clock.Add(time.Minute)
	}

	event := store.eventByID("ev-1")
	require.NotNil(t, event)
	assert.Equal(t, domain.EventDropped, event.Status)
	assert.Len(t, event.Attempts, 2)
}

func TestDispatcher_FanOutAndIdempotence(t *testing.T) {
	store := newFakeStore()
	store.subs["sub-1"] = subscription("https://a.example.com/hook")

	other := subscription("https://b.example.com/hook")
	other.ID = "sub-2"
	other.EventTypes = []domain.EventType{domain.EventPlacementUpdated}
	store.subs["sub-2"] = other

	dispatcher := NewDispatcher(store, logger.Nop())
	ctx := context.Background()

	require.NoError(t, dispatcher.Emit(ctx, domain.EventMatchCreated, "corr-1", map[string]any{"id": 1}))
	// Only sub-1 subscribes to match.created.
	assert.Len(t, store.events, 1)

	// Re-emitting the same correlation id enqueues nothing new.
	require.NoError(t, dispatcher.Emit(ctx, domain.EventMatchCreated, "corr-1", map[string]any{"id": 1}))
	assert.Len(t, store.events, 1)

	require.NoError(t, dispatcher.Emit(ctx, domain.EventPlacementUpdated, "corr-2", map[string]any{"id": 2}))
	assert.Len(t, store.events, 2)
}

func TestEventBody_Canonical(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	body, err := eventBody(domain.EventMatchCreated, "corr-1", at, map[string]any{
		"zeta":  1,
		"alpha": "x",
	})
	require.NoError(t, err)

	want := `{"correlation_id":"corr-1","data":{"alpha":"x","zeta":1},` +
		`"event":"match.created","source":"core",` +
		`"timestamp":"2026-08-01T12:00:00Z"}`
	assert.Equal(t, want, string(body))
}
