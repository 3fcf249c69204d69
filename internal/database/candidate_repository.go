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

	"github.com/talentbridge/matchsync/internal/domain"
)

const candidateSelectList = `id, name, email, phone, resume_text, uploaded_at,
	enrichment, created_at, updated_at`

// CandidateRepository manages candidate rows.
type CandidateRepository struct {
	db *sqlx.DB
}

// NewCandidateRepository creates a new repository.
func NewCandidateRepository(db *sqlx.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

// Create inserts a new candidate and returns its id.
func (r *CandidateRepository) Create(ctx context.Context, c *domain.Candidate) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.UploadedAt.IsZero() {
		c.UploadedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO candidates (id, name, email, phone, resume_text,
			uploaded_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
		c.ID, c.Name, c.Email, c.Phone, c.ResumeText, c.UploadedAt)
	if err != nil {
		return "", fmt.Errorf("create candidate: %w", err)
	}
	return c.ID, nil
}

// UpdateResume replaces the resume text and resets enrichment so the
// candidate is picked up by the next enrichment pass.
func (r *CandidateRepository) UpdateResume(ctx context.Context, id, resumeText string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE candidates
		SET resume_text = $2, enrichment = NULL, updated_at = NOW()
		WHERE id = $1`,
		id, resumeText)
	if err != nil {
		return fmt.Errorf("update resume: %w", err)
	}
	return checkAffected(result)
}

// SetEnrichment atomically replaces the enrichment bundle.
func (r *CandidateRepository) SetEnrichment(ctx context.Context, id string, e *domain.CandidateEnrichment) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal candidate enrichment: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE candidates SET enrichment = $2, updated_at = NOW() WHERE id = $1`,
		id, payload)
	if err != nil {
		return fmt.Errorf("set candidate enrichment: %w", err)
	}
	return checkAffected(result)
}

// GetByID retrieves a candidate by id.
func (r *CandidateRepository) GetByID(ctx context.Context, id string) (*domain.Candidate, error) {
	row := r.db.QueryRowxContext(ctx,
		`SELECT `+candidateSelectList+` FROM candidates WHERE id = $1`, id)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return c, nil
}

// ListEnriched returns candidates whose enrichment succeeded.
func (r *CandidateRepository) ListEnriched(ctx context.Context) ([]*domain.Candidate, error) {
	return r.list(ctx, `
		SELECT `+candidateSelectList+` FROM candidates
		WHERE enrichment->>'status' = 'success'
		ORDER BY uploaded_at DESC`)
}

// ListPendingEnrichment returns candidates awaiting enrichment.
func (r *CandidateRepository) ListPendingEnrichment(ctx context.Context, limit int) ([]*domain.Candidate, error) {
	return r.list(ctx, `
		SELECT `+candidateSelectList+` FROM candidates
		WHERE enrichment IS NULL OR enrichment->>'status' = 'pending'
		ORDER BY created_at ASC
		LIMIT $1`, limit)
}

func (r *CandidateRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Candidate, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []*domain.Candidate
	for rows.Next() {
		c, scanErr := scanCandidate(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan candidate: %w", scanErr)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCandidate(row rowScanner) (*domain.Candidate, error) {
	var c domain.Candidate
	var enrichment []byte

	err := row.Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.ResumeText, &c.UploadedAt,
		&enrichment, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(enrichment) > 0 {
		var e domain.CandidateEnrichment
		if unmarshalErr := json.Unmarshal(enrichment, &e); unmarshalErr != nil {
			return nil, fmt.Errorf("unmarshal candidate enrichment: %w", unmarshalErr)
		}
		c.Enrichment = &e
	}
	return &c, nil
}

func checkAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
