// Package engine drives match computation and candidate submission.
// Scoring fans out over a worker pool; persistence gates which matches
// emit events and which candidates flow upstream to the partner.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/talentbridge/matchsync/internal/domain"
	"github.com/talentbridge/matchsync/internal/logger"
	"github.com/talentbridge/matchsync/internal/metrics"
	"github.com/talentbridge/matchsync/internal/partner"
	"github.com/talentbridge/matchsync/internal/scoring"
	"github.com/talentbridge/matchsync/internal/webhook"
)

const (
	defaultConcurrency = 10
	defaultTopK        = 200
)

// JobStore is the job repository surface the engine needs.
type JobStore interface {
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	ListOpenEnriched(ctx context.Context) ([]*domain.Job, error)
}

// CandidateStore is the candidate repository surface the engine needs.
type CandidateStore interface {
	GetByID(ctx context.Context, id string) (*domain.Candidate, error)
	ListEnriched(ctx context.Context) ([]*domain.Candidate, error)
}

// MatchStore is the match repository surface the engine needs.
type MatchStore interface {
	Upsert(ctx context.Context, m *domain.Match) (bool, error)
	ListForJob(ctx context.Context, jobID string, limit int) ([]*domain.Match, error)
	MarkSubmitted(ctx context.Context, id string) error
}

// PlacementStore is the placement repository surface the engine needs.
type PlacementStore interface {
	Create(ctx context.Context, p *domain.Placement) (bool, error)
	TransitionStatus(ctx context.Context, id string, to domain.PlacementStatus, notes string) (*domain.Placement, error)
}

// Submitter is the partner client surface used for candidate
// submission.
type Submitter interface {
	SubmitCandidates(ctx context.Context, jobExternalID string, payloads []partner.CandidatePayload) ([]partner.SubmissionResult, error)
}

// Engine computes, persists and acts on matches.
type Engine struct {
	jobs        JobStore
	candidates  CandidateStore
	matches     MatchStore
	placements  PlacementStore
	submitter   Submitter
	scorer      *scoring.Scorer
	dispatcher  *webhook.Dispatcher
	metrics     *metrics.Metrics
	logger      logger.Logger
	concurrency int
	topK        int
	minSubmit   float64
	now         func() time.Time
}

// Config tunes the engine.
type Config struct {
	Concurrency int
	TopK        int
	// MinSubmitScore is the final-score floor for candidate
	// submission. Zero falls back to the good threshold.
	MinSubmitScore float64
}

// New creates a match engine.
func New(
	jobs JobStore,
	candidates CandidateStore,
	matches MatchStore,
	placements PlacementStore,
	submitter Submitter,
	scorer *scoring.Scorer,
	dispatcher *webhook.Dispatcher,
	m *metrics.Metrics,
	cfg Config,
	log logger.Logger,
) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.MinSubmitScore <= 0 {
		cfg.MinSubmitScore = domain.GoodThreshold
	}

	return &Engine{
		jobs:        jobs,
		candidates:  candidates,
		matches:     matches,
		placements:  placements,
		submitter:   submitter,
		scorer:      scorer,
		dispatcher:  dispatcher,
		metrics:     m,
		logger:      log,
		concurrency: cfg.Concurrency,
		topK:        cfg.TopK,
		minSubmit:   cfg.MinSubmitScore,
		now:         time.Now,
	}
}

// pair is one scoring unit handed to the worker pool.
type pair struct {
	candidate *domain.Candidate
	job       *domain.Job
}

// MatchJob scores a freshly enriched job against the top-K candidates
// ordered by enrichment confidence.
func (e *Engine) MatchJob(ctx context.Context, jobID string) (int, error) {
	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("load job: %w", err)
	}
	if !job.Enriched() || job.Status != domain.JobStatusOpen {
		return 0, nil
	}

	candidates, err := e.candidates.ListEnriched(ctx)
	if err != nil {
		return 0, fmt.Errorf("list candidates: %w", err)
	}

	// Highest parsing confidence first; ties broken by id for a
	// stable selection.
	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i].Enrichment.Confidence, candidates[j].Enrichment.Confidence
		if ci != cj {
			return ci > cj
		}
		return candidates[i].ID < candidates[j].ID
	})
	if len(candidates) > e.topK {
		candidates = candidates[:e.topK]
	}

	pairs := make([]pair, 0, len(candidates))
	for _, cand := range candidates {
		pairs = append(pairs, pair{candidate: cand, job: job})
	}
	return e.scorePairs(ctx, pairs)
}

// MatchCandidate scores a freshly enriched candidate against every open
// enriched job.
func (e *Engine) MatchCandidate(ctx context.Context, candidateID string) (int, error) {
	cand, err := e.candidates.GetByID(ctx, candidateID)
	if err != nil {
		return 0, fmt.Errorf("load candidate: %w", err)
	}
	if !cand.Enriched() {
		return 0, nil
	}

	jobs, err := e.jobs.ListOpenEnriched(ctx)
	if err != nil {
		return 0, fmt.Errorf("list jobs: %w", err)
	}

	pairs := make([]pair, 0, len(jobs))
	for _, job := range jobs {
		pairs = append(pairs, pair{candidate: cand, job: job})
	}
	return e.scorePairs(ctx, pairs)
}

// MatchPair scores one explicit candidate/job pair.
func (e *Engine) MatchPair(ctx context.Context, candidateID, jobID string) (*domain.Match, error) {
	cand, err := e.candidates.GetByID(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("load candidate: %w", err)
	}
	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if !cand.Enriched() || !job.Enriched() {
		return nil, domain.ErrNotEnriched
	}

	match := e.scorer.Score(cand.Enrichment, job.Enrichment)
	match.CandidateID = cand.ID
	match.JobID = job.ID
	if err := e.persist(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

// scorePairs runs the worker pool over the pairs and persists results.
func (e *Engine) scorePairs(ctx context.Context, pairs []pair) (int, error) {
	if len(pairs) == 0 {
		return 0, nil
	}

	start := e.now()
	work := make(chan pair, len(pairs))
	results := make(chan *domain.Match, len(pairs))

	var wg sync.WaitGroup
	for i := 0; i < e.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range work {
				select {
				case <-ctx.Done():
					return
				default:
				}
				match := e.scorer.Score(p.candidate.Enrichment, p.job.Enrichment)
				match.CandidateID = p.candidate.ID
				match.JobID = p.job.ID
				results <- match
			}
		}()
	}

	for _, p := range pairs {
		work <- p
	}
	close(work)
	wg.Wait()
	close(results)

	var stored int
	for match := range results {
		if err := e.persist(ctx, match); err != nil {
			e.logger.Error("failed to persist match",
				logger.String("candidate_id", match.CandidateID),
				logger.String("job_id", match.JobID),
				logger.Error(err))
			continue
		}
		stored++
	}

	e.logger.Info("matching pass complete",
		logger.Int("pairs", len(pairs)),
		logger.Int("stored", stored),
		logger.Duration("duration", time.Since(start)))
	return stored, nil
}

// persist upserts a match and emits match.created when the scoring
// outcome changed and the recommendation clears the event bar. Scoring
// identical inputs twice changes nothing and emits nothing.
func (e *Engine) persist(ctx context.Context, match *domain.Match) error {
	e.metrics.MatchesScored.Inc()

	changed, err := e.matches.Upsert(ctx, match)
	if err != nil {
		return fmt.Errorf("upsert match: %w", err)
	}
	e.metrics.MatchRecommended.WithLabelValues(string(match.Recommendation)).Inc()

	if changed && match.Recommendation.AtLeastGood() {
		correlationID := fmt.Sprintf("match.created:%s:%s:%.4f:%s",
			match.CandidateID, match.JobID, match.FinalScore, match.Recommendation)
		emitErr := e.dispatcher.Emit(ctx, domain.EventMatchCreated, correlationID, map[string]any{
			"match_id":       match.ID,
			"candidate_id":   match.CandidateID,
			"job_id":         match.JobID,
			"final_score":    match.FinalScore,
			"recommendation": string(match.Recommendation),
		})
		if emitErr != nil {
			e.logger.Error("failed to emit match.created",
				logger.String("match_id", match.ID),
				logger.Error(emitErr))
		}
	}
	return nil
}
