package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/talentbridge/matchsync/internal/domain"
)

const syncRunSelectList = `id, kind, status, started_at, finished_at,
	jobs_synced, candidates_synced, placements_updated, errors_count, error_log`

// SyncRunRepository records scheduled sync executions.
type SyncRunRepository struct {
	db *sqlx.DB
}

// NewSyncRunRepository creates a new repository.
func NewSyncRunRepository(db *sqlx.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Start inserts a running sync run and returns its id.
func (r *SyncRunRepository) Start(ctx context.Context, kind domain.SyncKind) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, kind, status, started_at)
		VALUES ($1, $2, 'running', NOW())`,
		id, kind)
	if err != nil {
		return "", fmt.Errorf("start sync run: %w", err)
	}
	return id, nil
}

// Finish closes a run with its final status and counters.
func (r *SyncRunRepository) Finish(ctx context.Context, run *domain.SyncRun) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sync_runs
		SET status = $2, finished_at = NOW(), jobs_synced = $3,
		    candidates_synced = $4, placements_updated = $5,
		    errors_count = $6, error_log = $7
		WHERE id = $1`,
		run.ID, run.Status, run.JobsSynced, run.CandidatesSynced,
		run.PlacementsUpdated, run.ErrorsCount, pq.Array(run.ErrorLog))
	if err != nil {
		return fmt.Errorf("finish sync run: %w", err)
	}
	return checkAffected(result)
}

// Latest returns the most recent run of a kind, or ErrNotFound when the
// kind has never run.
func (r *SyncRunRepository) Latest(ctx context.Context, kind domain.SyncKind) (*domain.SyncRun, error) {
	row := r.db.QueryRowxContext(ctx, `
		SELECT `+syncRunSelectList+` FROM sync_runs
		WHERE kind = $1
		ORDER BY started_at DESC
		LIMIT 1`, kind)
	run, err := scanSyncRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest sync run: %w", err)
	}
	return run, nil
}

// ListRecent returns recent runs for the operational API, newest first.
func (r *SyncRunRepository) ListRecent(ctx context.Context, limit int) ([]*domain.SyncRun, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT `+syncRunSelectList+` FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer rows.Close()

	var out []*domain.SyncRun
	for rows.Next() {
		run, scanErr := scanSyncRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan sync run: %w", scanErr)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// StaleRunning marks runs that never finished (process crash mid-run)
// as failed so the overlap guard does not block forever.
func (r *SyncRunRepository) StaleRunning(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sync_runs
		SET status = 'failed', finished_at = NOW(),
		    error_log = ARRAY['marked stale by startup sweep']
		WHERE status = 'running' AND started_at < NOW() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("sweep stale sync runs: %w", err)
	}
	return result.RowsAffected()
}

func scanSyncRun(row rowScanner) (*domain.SyncRun, error) {
	var run domain.SyncRun
	var errorLog pq.StringArray
	err := row.Scan(
		&run.ID, &run.Kind, &run.Status, &run.StartedAt, &run.FinishedAt,
		&run.JobsSynced, &run.CandidatesSynced, &run.PlacementsUpdated,
		&run.ErrorsCount, &errorLog,
	)
	if err != nil {
		return nil, err
	}
	run.ErrorLog = []string(errorLog)
	return &run, nil
}
