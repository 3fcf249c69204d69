package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talentbridge/matchsync/internal/domain"
)

// jobSelectList is the column list for SELECT on jobs (single source
// for schema changes).
const jobSelectList = `id, partner_id, external_id, title, description, requirements,
	company, location, salary_raw, status, posted_at, enrichment,
	created_at, updated_at`

// JobRepository manages job rows.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Upsert inserts or updates a job keyed on (partner_id, external_id).
// The update is a no-op when every raw field is unchanged, so repeated
// imports of the same posting leave the stored row byte-identical.
// Returns the job id and whether the row was inserted or changed.
func (r *JobRepository) Upsert(ctx context.Context, job *domain.Job) (string, bool, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	query := `
		INSERT INTO jobs (id, partner_id, external_id, title, description,
			requirements, company, location, salary_raw, status, posted_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (partner_id, external_id) DO UPDATE
		SET title = EXCLUDED.title,
		    description = EXCLUDED.description,
		    requirements = EXCLUDED.requirements,
		    company = EXCLUDED.company,
		    location = EXCLUDED.location,
		    salary_raw = EXCLUDED.salary_raw,
		    status = EXCLUDED.status,
		    posted_at = EXCLUDED.posted_at,
		    updated_at = NOW()
		WHERE (jobs.title, jobs.description, jobs.requirements, jobs.company,
		       jobs.location, jobs.salary_raw, jobs.status, jobs.posted_at)
		      IS DISTINCT FROM
		      (EXCLUDED.title, EXCLUDED.description, EXCLUDED.requirements,
		       EXCLUDED.company, EXCLUDED.location, EXCLUDED.salary_raw,
		       EXCLUDED.status, EXCLUDED.posted_at)
		RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		job.ID, job.PartnerID, job.ExternalID, job.Title, job.Description,
		job.Requirements, job.Company, job.Location, job.SalaryRaw,
		job.Status, job.PostedAt,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		// Conflict with identical fields: nothing changed, fetch the id.
		existing, getErr := r.GetByExternalID(ctx, job.PartnerID, job.ExternalID)
		if getErr != nil {
			return "", false, fmt.Errorf("resolve unchanged job: %w", getErr)
		}
		job.ID = existing.ID
		return existing.ID, false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("upsert job: %w", err)
	}
	job.ID = id
	return id, true, nil
}

// SetEnrichment atomically replaces the enrichment bundle of a job.
func (r *JobRepository) SetEnrichment(ctx context.Context, jobID string, e *domain.JobEnrichment) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal job enrichment: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET enrichment = $2, updated_at = NOW() WHERE id = $1`,
		jobID, payload)
	if err != nil {
		return fmt.Errorf("set job enrichment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves a job by internal id.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	return r.getOne(ctx, `SELECT `+jobSelectList+` FROM jobs WHERE id = $1`, id)
}

// GetByExternalID retrieves a job by its partner identity.
func (r *JobRepository) GetByExternalID(ctx context.Context, partnerID, externalID string) (*domain.Job, error) {
	return r.getOne(ctx,
		`SELECT `+jobSelectList+` FROM jobs WHERE partner_id = $1 AND external_id = $2`,
		partnerID, externalID)
}

// ListOpenEnriched returns open jobs whose enrichment succeeded, the
// only jobs eligible for scoring.
func (r *JobRepository) ListOpenEnriched(ctx context.Context) ([]*domain.Job, error) {
	return r.list(ctx, `
		SELECT `+jobSelectList+` FROM jobs
		WHERE status = 'open' AND enrichment->>'status' = 'success'
		ORDER BY posted_at DESC`)
}

// ListPendingEnrichment returns jobs awaiting enrichment.
func (r *JobRepository) ListPendingEnrichment(ctx context.Context, limit int) ([]*domain.Job, error) {
	return r.list(ctx, `
		SELECT `+jobSelectList+` FROM jobs
		WHERE enrichment IS NULL OR enrichment->>'status' = 'pending'
		ORDER BY created_at ASC
		LIMIT $1`, limit)
}

func (r *JobRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Job, error) {
	row := r.db.QueryRowxContext(ctx, query, args...)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Job, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	var enrichment []byte

	err := row.Scan(
		&j.ID, &j.PartnerID, &j.ExternalID, &j.Title, &j.Description,
		&j.Requirements, &j.Company, &j.Location, &j.SalaryRaw, &j.Status,
		&j.PostedAt, &enrichment, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(enrichment) > 0 {
		var e domain.JobEnrichment
		if unmarshalErr := json.Unmarshal(enrichment, &e); unmarshalErr != nil {
			return nil, fmt.Errorf("unmarshal job enrichment: %w", unmarshalErr)
		}
		j.Enrichment = &e
	}
	return &j, nil
}
