package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/talentbridge/matchsync/internal/database"
	"github.com/talentbridge/matchsync/internal/domain"
)

func eventColumns() []string {
	return []string{
		"id", "subscription_id", "correlation_id", "event_type",
		"payload", "status", "attempts", "next_retry_at",
		"created_at", "updated_at",
	}
}

func TestWebhookRepository_EnqueueEvent(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	event := &domain.WebhookEvent{
		SubscriptionID: "sub-1",
		CorrelationID:  "match.created:match-1:0.82",
		EventType:      domain.EventMatchCreated,
		Payload:        []byte(`{"match_id":"match-1"}`),
	}

	testCases := []struct {
		name         string
		rowsAffected int64
		wantQueued   bool
	}{
		{
			name:         "new event is queued",
			rowsAffected: 1,
			wantQueued:   true,
		},
		{
			name:         "duplicate correlation id is a no-op",
			rowsAffected: 0,
			wantQueued:   false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := database.NewWebhookRepository(db)

			mock.ExpectExec("INSERT INTO webhook_events").
				WillReturnResult(sqlmock.NewResult(0, tc.rowsAffected))

			queued, err := repo.EnqueueEvent(ctx, event)
			if err != nil {
				t.Fatalf("EnqueueEvent() error = %v", err)
			}
			if queued != tc.wantQueued {
				t.Errorf("EnqueueEvent() queued = %v, want %v", queued, tc.wantQueued)
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestWebhookRepository_ClaimDeliverable(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	now := time.Now()

	t.Run("claims due events", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := database.NewWebhookRepository(db)

		attempts := `[{"attempted_at":"` + now.UTC().Format(time.RFC3339) + `","http_status":500}]`
		rows := sqlmock.NewRows(eventColumns()).
			AddRow("ev-1", "sub-1", "corr-1", "match.created",
				[]byte(`{}`), "delivering", []byte(`[]`), nil, now, now).
			AddRow("ev-2", "sub-1", "corr-2", "sync.completed",
				[]byte(`{}`), "delivering", []byte(attempts), &now, now, now)
		mock.ExpectQuery("UPDATE webhook_events").
			WithArgs(10).
			WillReturnRows(rows)

		events, err := repo.ClaimDeliverable(ctx, 10)
		if err != nil {
			t.Fatalf("ClaimDeliverable() error = %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("ClaimDeliverable() len = %d, want 2", len(events))
		}
		if events[0].Status != domain.EventDelivering {
			t.Errorf("status = %q, want delivering", events[0].Status)
		}
		if len(events[1].Attempts) != 1 {
			t.Errorf("attempts len = %d, want 1", len(events[1].Attempts))
		}
	})

	t.Run("no due events", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := database.NewWebhookRepository(db)

		mock.ExpectQuery("UPDATE webhook_events").
			WithArgs(10).
			WillReturnRows(sqlmock.NewRows(eventColumns()))

		events, err := repo.ClaimDeliverable(ctx, 10)
		if err != nil {
			t.Fatalf("ClaimDeliverable() error = %v", err)
		}
		if len(events) != 0 {
			t.Errorf("ClaimDeliverable() len = %d, want 0", len(events))
		}
	})
}

func TestWebhookRepository_RecordAttempt(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	retryAt := time.Now().Add(2 * time.Second)

	testCases := []struct {
		name         string
		status       domain.EventStatus
		nextRetryAt  *time.Time
		rowsAffected int64
		wantErr      bool
	}{
		{
			name:         "failed attempt schedules retry",
			status:       domain.EventFailed,
			nextRetryAt:  &retryAt,
			rowsAffected: 1,
		},
		{
			name:         "delivered is terminal",
			status:       domain.EventDelivered,
			rowsAffected: 1,
		},
		{
			name:         "missing event",
			status:       domain.EventDelivered,
			rowsAffected: 0,
			wantErr:      true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := database.NewWebhookRepository(db)

			mock.ExpectExec("UPDATE webhook_events").
				WillReturnResult(sqlmock.NewResult(0, tc.rowsAffected))

			attempt := domain.DeliveryAttempt{
				AttemptedAt: time.Now(),
				HTTPStatus:  500,
				NextRetryAt: tc.nextRetryAt,
			}
			err := repo.RecordAttempt(ctx, "ev-1", attempt, tc.status, tc.nextRetryAt)
			if (err != nil) != tc.wantErr {
				t.Errorf("RecordAttempt() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestWebhookRepository_ReleaseEvent(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	retryAt := time.Now().Add(5 * time.Second)

	t.Run("returns claimed event to the queue", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := database.NewWebhookRepository(db)

		mock.ExpectExec("UPDATE webhook_events").
			WithArgs("ev-1", retryAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := repo.ReleaseEvent(ctx, "ev-1", retryAt); err != nil {
			t.Fatalf("ReleaseEvent() error = %v", err)
		}
	})

	t.Run("unclaimed event returns ErrNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := database.NewWebhookRepository(db)

		mock.ExpectExec("UPDATE webhook_events").
			WillReturnResult(sqlmock.NewResult(0, 0))

		if err := repo.ReleaseEvent(ctx, "ev-1", retryAt); err != domain.ErrNotFound {
			t.Errorf("ReleaseEvent() error = %v, want ErrNotFound", err)
		}
	})
}

func TestWebhookRepository_ListActiveSubscriptions(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	now := time.Now()

	db, mock := newMockDB(t)
	repo := database.NewWebhookRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "owner", "url", "event_types", "secret", "active",
		"retry_strategy", "max_attempts", "timeout_seconds", "created_at",
	}).AddRow(
		"sub-1", "ats-team", "https://consumer.example.com/hooks",
		pq.StringArray{"match.created", "placement.updated"},
		"s3cret", true, "exponential", 5, 10, now,
	)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	subs, err := repo.ListActiveSubscriptions(ctx)
	if err != nil {
		t.Fatalf("ListActiveSubscriptions() error = %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("len = %d, want 1", len(subs))
	}
	if !subs[0].Subscribed(domain.EventMatchCreated) {
		t.Error("Subscribed(match.created) = false, want true")
	}
	if subs[0].Subscribed(domain.EventSyncFailed) {
		t.Error("Subscribed(sync.failed) = true, want false")
	}
}
