package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talentbridge/matchsync/internal/domain"
)

const placementSelectList = `id, partner_id, external_placement_id, match_id,
	candidate_id, job_id, status, notes, submitted_at, status_changed_at,
	created_at, updated_at`

// PlacementRepository manages placement lifecycle rows.
type PlacementRepository struct {
	db *sqlx.DB
}

// NewPlacementRepository creates a new repository.
func NewPlacementRepository(db *sqlx.DB) *PlacementRepository {
	return &PlacementRepository{db: db}
}

// Create inserts a placement in its initial submitted state. The
// (partner_id, external_placement_id) identity is unique; creating a
// duplicate returns the existing row and false.
func (r *PlacementRepository) Create(ctx context.Context, p *domain.Placement) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = domain.PlacementSubmitted
	}

	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO placements (id, partner_id, external_placement_id,
			match_id, candidate_id, job_id, status, notes, submitted_at,
			status_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, NOW(), NOW())
		ON CONFLICT (partner_id, external_placement_id) DO NOTHING
		RETURNING id`,
		p.ID, p.PartnerID, p.ExternalPlacementID, p.MatchID, p.CandidateID,
		p.JobID, p.Status, p.Notes, p.SubmittedAt,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		existing, getErr := r.GetByExternalID(ctx, p.PartnerID, p.ExternalPlacementID)
		if getErr != nil {
			return false, fmt.Errorf("resolve existing placement: %w", getErr)
		}
		*p = *existing
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create placement: %w", err)
	}
	p.ID = id
	return true, nil
}

// TransitionStatus advances a placement to the given status under an
// advisory lock, enforcing the forward-only state machine. The updated
// placement is returned on success; domain.ErrInvalidTransition when
// the move is not permitted.
func (r *PlacementRepository) TransitionStatus(ctx context.Context, id string, to domain.PlacementStatus, notes string) (*domain.Placement, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin placement transition: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, id)
	if err != nil {
		return nil, fmt.Errorf("lock placement: %w", err)
	}

	row := tx.QueryRowxContext(ctx,
		`SELECT `+placementSelectList+` FROM placements WHERE id = $1 FOR UPDATE`, id)
	p, err := scanPlacement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get placement in tx: %w", err)
	}

	if p.Status == to {
		// Same-status update from the partner: refresh notes only.
		if notes != "" && notes != p.Notes {
			_, err = tx.ExecContext(ctx,
				`UPDATE placements SET notes = $2, updated_at = NOW() WHERE id = $1`,
				id, notes)
			if err != nil {
				return nil, fmt.Errorf("update placement notes: %w", err)
			}
			p.Notes = notes
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit placement transition: %w", err)
		}
		return p, nil
	}

	if !domain.CanTransition(p.Status, to) {
		return nil, fmt.Errorf("placement %s: %s -> %s: %w",
			id, p.Status, to, domain.ErrInvalidTransition)
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE placements
		SET status = $2, notes = $3, status_changed_at = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING status_changed_at`,
		id, to, notes,
	).Scan(&p.StatusChangedAt)
	if err != nil {
		return nil, fmt.Errorf("update placement status: %w", err)
	}
	p.Status = to
	p.Notes = notes

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit placement transition: %w", err)
	}
	return p, nil
}

// GetByID retrieves a placement by id.
func (r *PlacementRepository) GetByID(ctx context.Context, id string) (*domain.Placement, error) {
	return r.getOne(ctx,
		`SELECT `+placementSelectList+` FROM placements WHERE id = $1`, id)
}

// GetByExternalID retrieves a placement by its partner identity.
func (r *PlacementRepository) GetByExternalID(ctx context.Context, partnerID, externalID string) (*domain.Placement, error) {
	return r.getOne(ctx,
		`SELECT `+placementSelectList+` FROM placements
		 WHERE partner_id = $1 AND external_placement_id = $2`,
		partnerID, externalID)
}

// ListActive returns placements that can still advance, the set the
// placement sync reconciles against the partner.
func (r *PlacementRepository) ListActive(ctx context.Context) ([]*domain.Placement, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT `+placementSelectList+` FROM placements
		WHERE status NOT IN ('hired', 'rejected', 'withdrawn', 'cancelled')
		ORDER BY submitted_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active placements: %w", err)
	}
	defer rows.Close()

	var out []*domain.Placement
	for rows.Next() {
		p, scanErr := scanPlacement(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan placement: %w", scanErr)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PlacementRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Placement, error) {
	row := r.db.QueryRowxContext(ctx, query, args...)
	p, err := scanPlacement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get placement: %w", err)
	}
	return p, nil
}

func scanPlacement(row rowScanner) (*domain.Placement, error) {
	var p domain.Placement
	err := row.Scan(
		&p.ID, &p.PartnerID, &p.ExternalPlacementID, &p.MatchID,
		&p.CandidateID, &p.JobID, &p.Status, &p.Notes, &p.SubmittedAt,
		&p.StatusChangedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
