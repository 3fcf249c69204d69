package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements creates every table and index the service uses.
// Statements are idempotent so EnsureSchema can run at every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id            TEXT PRIMARY KEY,
		partner_id    TEXT NOT NULL,
		external_id   TEXT NOT NULL,
		title         TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		requirements  TEXT NOT NULL DEFAULT '',
		company       TEXT NOT NULL DEFAULT '',
		location      TEXT NOT NULL DEFAULT '',
		salary_raw    TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL DEFAULT 'open',
		posted_at     TIMESTAMPTZ NOT NULL,
		enrichment    JSONB,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (partner_id, external_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status)`,

	`CREATE TABLE IF NOT EXISTS candidates (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		email        TEXT NOT NULL UNIQUE,
		phone        TEXT NOT NULL DEFAULT '',
		resume_text  TEXT NOT NULL DEFAULT '',
		uploaded_at  TIMESTAMPTZ NOT NULL,
		enrichment   JSONB,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS matches (
		id             TEXT PRIMARY KEY,
		candidate_id   TEXT NOT NULL REFERENCES candidates (id),
		job_id         TEXT NOT NULL REFERENCES jobs (id),
		final_score    DOUBLE PRECISION NOT NULL,
		components     JSONB NOT NULL,
		recommendation TEXT NOT NULL,
		explanation    TEXT NOT NULL DEFAULT '',
		strengths      TEXT[] NOT NULL DEFAULT '{}',
		gaps           TEXT[] NOT NULL DEFAULT '{}',
		submitted      BOOLEAN NOT NULL DEFAULT FALSE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (candidate_id, job_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_job_score
		ON matches (job_id, final_score DESC)`,

	`CREATE TABLE IF NOT EXISTS placements (
		id                    TEXT PRIMARY KEY,
		partner_id            TEXT NOT NULL,
		external_placement_id TEXT NOT NULL,
		match_id              TEXT NOT NULL REFERENCES matches (id),
		candidate_id          TEXT NOT NULL REFERENCES candidates (id),
		job_id                TEXT NOT NULL REFERENCES jobs (id),
		status                TEXT NOT NULL DEFAULT 'submitted',
		notes                 TEXT NOT NULL DEFAULT '',
		submitted_at          TIMESTAMPTZ NOT NULL,
		status_changed_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (partner_id, external_placement_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_placements_status ON placements (status)`,

	`CREATE TABLE IF NOT EXISTS sync_runs (
		id                 TEXT PRIMARY KEY,
		kind               TEXT NOT NULL,
		status             TEXT NOT NULL DEFAULT 'running',
		started_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		finished_at        TIMESTAMPTZ,
		jobs_synced        INTEGER NOT NULL DEFAULT 0,
		candidates_synced  INTEGER NOT NULL DEFAULT 0,
		placements_updated INTEGER NOT NULL DEFAULT 0,
		errors_count       INTEGER NOT NULL DEFAULT 0,
		error_log          TEXT[] NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_runs_kind_started
		ON sync_runs (kind, started_at DESC)`,

	`CREATE TABLE IF NOT EXISTS webhook_subscriptions (
		id              TEXT PRIMARY KEY,
		owner           TEXT NOT NULL,
		url             TEXT NOT NULL,
		event_types     TEXT[] NOT NULL,
		secret          TEXT NOT NULL,
		active          BOOLEAN NOT NULL DEFAULT TRUE,
		retry_strategy  TEXT NOT NULL DEFAULT 'exponential',
		max_attempts    INTEGER NOT NULL DEFAULT 0,
		timeout_seconds INTEGER NOT NULL DEFAULT 0,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS webhook_events (
		id              TEXT PRIMARY KEY,
		subscription_id TEXT NOT NULL REFERENCES webhook_subscriptions (id),
		correlation_id  TEXT NOT NULL,
		event_type      TEXT NOT NULL,
		payload         JSONB NOT NULL,
		status          TEXT NOT NULL DEFAULT 'pending',
		attempts        JSONB NOT NULL DEFAULT '[]',
		next_retry_at   TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (subscription_id, correlation_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_events_deliverable
		ON webhook_events (status, next_retry_at)`,
}

// EnsureSchema creates any missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
