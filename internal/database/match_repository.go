package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/talentbridge/matchsync/internal/domain"
)

const matchSelectList = `id, candidate_id, job_id, final_score, components,
	recommendation, explanation, strengths, gaps, submitted,
	created_at, updated_at`

// MatchRepository manages match rows.
type MatchRepository struct {
	db *sqlx.DB
}

// NewMatchRepository creates a new repository.
func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// Upsert replaces the match for (candidate_id, job_id) atomically. The
// pair is serialized with an advisory lock so concurrent rebuilds never
// interleave half-written rows. Returns the stored match and whether
// the scoring outcome changed, which gates the match.created event.
func (r *MatchRepository) Upsert(ctx context.Context, m *domain.Match) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin match upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`,
		m.CandidateID, m.JobID)
	if err != nil {
		return false, fmt.Errorf("lock match pair: %w", err)
	}

	existing, err := getMatchByPairTx(ctx, tx, m.CandidateID, m.JobID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}

	components, err := json.Marshal(m.Components)
	if err != nil {
		return false, fmt.Errorf("marshal components: %w", err)
	}

	if existing == nil {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO matches (id, candidate_id, job_id, final_score,
				components, recommendation, explanation, strengths, gaps,
				submitted, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, NOW(), NOW())`,
			m.ID, m.CandidateID, m.JobID, m.FinalScore, components,
			m.Recommendation, m.Explanation,
			pq.Array(m.Strengths), pq.Array(m.Gaps))
		if err != nil {
			return false, fmt.Errorf("insert match: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("commit match upsert: %w", err)
		}
		return true, nil
	}

	m.ID = existing.ID
	m.Submitted = existing.Submitted
	_, err = tx.ExecContext(ctx, `
		UPDATE matches
		SET final_score = $2, components = $3, recommendation = $4,
		    explanation = $5, strengths = $6, gaps = $7, updated_at = NOW()
		WHERE id = $1`,
		existing.ID, m.FinalScore, components, m.Recommendation,
		m.Explanation, pq.Array(m.Strengths), pq.Array(m.Gaps))
	if err != nil {
		return false, fmt.Errorf("update match: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit match upsert: %w", err)
	}
	return !m.SameOutcome(existing), nil
}

// MarkSubmitted flags a match as submitted to the partner.
func (r *MatchRepository) MarkSubmitted(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE matches SET submitted = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark match submitted: %w", err)
	}
	return checkAffected(result)
}

// GetByID retrieves a match by id.
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*domain.Match, error) {
	row := r.db.QueryRowxContext(ctx,
		`SELECT `+matchSelectList+` FROM matches WHERE id = $1`, id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

// GetByPair retrieves the match for (candidate_id, job_id).
func (r *MatchRepository) GetByPair(ctx context.Context, candidateID, jobID string) (*domain.Match, error) {
	row := r.db.QueryRowxContext(ctx,
		`SELECT `+matchSelectList+` FROM matches
		 WHERE candidate_id = $1 AND job_id = $2`,
		candidateID, jobID)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match by pair: %w", err)
	}
	return m, nil
}

// ListForJob returns matches for a job ordered best-first, capped at
// limit when it is positive.
func (r *MatchRepository) ListForJob(ctx context.Context, jobID string, limit int) ([]*domain.Match, error) {
	query := `SELECT ` + matchSelectList + ` FROM matches
		WHERE job_id = $1
		ORDER BY final_score DESC, candidate_id ASC`
	args := []any{jobID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.list(ctx, query, args...)
}

// ListForCandidate returns matches for a candidate ordered best-first.
func (r *MatchRepository) ListForCandidate(ctx context.Context, candidateID string) ([]*domain.Match, error) {
	return r.list(ctx, `
		SELECT `+matchSelectList+` FROM matches
		WHERE candidate_id = $1
		ORDER BY final_score DESC, job_id ASC`, candidateID)
}

func (r *MatchRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Match, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var out []*domain.Match
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan match: %w", scanErr)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func getMatchByPairTx(ctx context.Context, tx *sqlx.Tx, candidateID, jobID string) (*domain.Match, error) {
	row := tx.QueryRowxContext(ctx,
		`SELECT `+matchSelectList+` FROM matches
		 WHERE candidate_id = $1 AND job_id = $2 FOR UPDATE`,
		candidateID, jobID)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match in tx: %w", err)
	}
	return m, nil
}

func scanMatch(row rowScanner) (*domain.Match, error) {
	var m domain.Match
	var components []byte
	var strengths, gaps pq.StringArray

	err := row.Scan(
		&m.ID, &m.CandidateID, &m.JobID, &m.FinalScore, &components,
		&m.Recommendation, &m.Explanation, &strengths, &gaps,
		&m.Submitted, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(components) > 0 {
		if unmarshalErr := json.Unmarshal(components, &m.Components); unmarshalErr != nil {
			return nil, fmt.Errorf("unmarshal components: %w", unmarshalErr)
		}
	}
	m.Strengths = []string(strengths)
	m.Gaps = []string(gaps)
	return &m, nil
}
