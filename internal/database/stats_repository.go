package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/talentbridge/matchsync/internal/domain"
)

// Stats aggregates the service's operational counters for the stats
// endpoint.
type Stats struct {
	JobsTotal          int            `json:"jobs_total"`
	JobsOpen           int            `json:"jobs_open"`
	CandidatesTotal    int            `json:"candidates_total"`
	CandidatesEnriched int            `json:"candidates_enriched"`
	MatchesTotal       int            `json:"matches_total"`
	Recommendations    map[string]int `json:"matches_by_recommendation"`
	PlacementsActive   int            `json:"placements_active"`
	EventsPending      int            `json:"webhook_events_pending"`
}

// StatsRepository reads aggregate counts across all tables.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository creates a stats repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetStats collects the aggregate counters in one pass.
func (r *StatsRepository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Recommendations: map[string]int{}}

	counts := []struct {
		dest  *int
		query string
	}{
		{&stats.JobsTotal, `SELECT COUNT(*) FROM jobs`},
		{&stats.JobsOpen, `SELECT COUNT(*) FROM jobs WHERE status = 'open'`},
		{&stats.CandidatesTotal, `SELECT COUNT(*) FROM candidates`},
		{&stats.CandidatesEnriched, `SELECT COUNT(*) FROM candidates WHERE enrichment->>'status' = 'success'`},
		{&stats.MatchesTotal, `SELECT COUNT(*) FROM matches`},
		{&stats.PlacementsActive, `SELECT COUNT(*) FROM placements
			WHERE status NOT IN ('hired', 'rejected', 'withdrawn', 'cancelled')`},
		{&stats.EventsPending, `SELECT COUNT(*) FROM webhook_events WHERE status IN ('pending', 'failed')`},
	}
	for _, c := range counts {
		if err := r.db.GetContext(ctx, c.dest, c.query); err != nil {
			return nil, fmt.Errorf("failed to collect stats: %w", err)
		}
	}

	rows, err := r.db.QueryxContext(ctx,
		`SELECT recommendation, COUNT(*) FROM matches GROUP BY recommendation`)
	if err != nil {
		return nil, fmt.Errorf("failed to collect recommendation counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec domain.Recommendation
		var count int
		if err := rows.Scan(&rec, &count); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation count: %w", err)
		}
		stats.Recommendations[string(rec)] = count
	}
	return stats, rows.Err()
}
