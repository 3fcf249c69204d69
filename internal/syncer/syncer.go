// Package syncer runs the scheduled partner tasks: job import,
// candidate submission and placement reconciliation. Each tick is
// recorded as a SyncRun; overlapping ticks of the same kind are
// skipped.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/talentbridge/matchsync/internal/config"
	"github.com/talentbridge/matchsync/internal/domain"
	"github.com/talentbridge/matchsync/internal/logger"
	"github.com/talentbridge/matchsync/internal/metrics"
	"github.com/talentbridge/matchsync/internal/partner"
)

// PartnerAPI is the partner client surface the syncer needs.
type PartnerAPI interface {
	ListJobs(ctx context.Context, filter partner.ListFilter, page int) ([]partner.JobDTO, bool, error)
	ListPlacements(ctx context.Context, filter partner.ListFilter, page int) ([]partner.PlacementDTO, bool, error)
}

// JobStore persists imported job postings.
type JobStore interface {
	Upsert(ctx context.Context, job *domain.Job) (string, bool, error)
	ListOpenEnriched(ctx context.Context) ([]*domain.Job, error)
}

// PlacementStore resolves partner placements to local records.
type PlacementStore interface {
	GetByExternalID(ctx context.Context, partnerID, externalID string) (*domain.Placement, error)
}

// RunStore records sync run lifecycles.
type RunStore interface {
	Start(ctx context.Context, kind domain.SyncKind) (string, error)
	Finish(ctx context.Context, run *domain.SyncRun) error
	StaleRunning(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Enricher enriches and persists freshly imported jobs.
type Enricher interface {
	EnrichJob(ctx context.Context, job *domain.Job) (*domain.JobEnrichment, error)
}

// MatchEngine is the engine surface the syncer drives.
type MatchEngine interface {
	MatchJob(ctx context.Context, jobID string) (int, error)
	SubmitForJob(ctx context.Context, job *domain.Job) (int, error)
	AdvancePlacement(ctx context.Context, placementID string, to domain.PlacementStatus, notes string) (*domain.Placement, error)
}

// Emitter publishes webhook events for finished runs.
type Emitter interface {
	Emit(ctx context.Context, eventType domain.EventType, correlationID string, payload any) error
}

// Syncer executes the scheduled sync tasks.
type Syncer struct {
	client     PartnerAPI
	jobs       JobStore
	placements PlacementStore
	runs       RunStore
	enricher   Enricher
	engine     MatchEngine
	dispatcher Emitter
	metrics    *metrics.Metrics
	logger     logger.Logger

	partnerID         string
	maxJobs           int
	maxCandidates     int
	jobPageSize       int
	placementPageSize int

	// running guards each kind against overlapping ticks.
	running map[domain.SyncKind]*sync.Mutex
}

// New creates a syncer.
func New(
	client PartnerAPI,
	jobs JobStore,
	placements PlacementStore,
	runs RunStore,
	enricher Enricher,
	eng MatchEngine,
	dispatcher Emitter,
	m *metrics.Metrics,
	cfg config.SyncConfig,
	partnerID string,
	log logger.Logger,
) *Syncer {
	return &Syncer{
		client:        client,
		jobs:          jobs,
		placements:    placements,
		runs:          runs,
		enricher:      enricher,
		engine:        eng,
		dispatcher:    dispatcher,
		metrics:       m,
		logger:        log,
		partnerID:         partnerID,
		maxJobs:           cfg.MaxJobsPerSync,
		maxCandidates:     cfg.MaxCandidates,
		jobPageSize:       cfg.JobPageSize,
		placementPageSize: cfg.PlacementPageSize,
		running: map[domain.SyncKind]*sync.Mutex{
			domain.SyncKindJobs:       {},
			domain.SyncKindCandidates: {},
			domain.SyncKindPlacements: {},
		},
	}
}

// RunJobsSync imports job pages from the partner, enriching and
// matching changed postings.
func (s *Syncer) RunJobsSync(ctx context.Context) {
	s.runKind(ctx, domain.SyncKindJobs, s.syncJobs)
}

// RunCandidateSubmission submits eligible matches for every open
// enriched job.
func (s *Syncer) RunCandidateSubmission(ctx context.Context) {
	s.runKind(ctx, domain.SyncKindCandidates, s.submitCandidates)
}

// RunPlacementsSync reconciles placement statuses against the partner.
func (s *Syncer) RunPlacementsSync(ctx context.Context) {
	s.runKind(ctx, domain.SyncKindPlacements, s.syncPlacements)
}

// runKind wraps a task in the SyncRun lifecycle. A tick that finds the
// previous run of its kind still in flight is skipped and logged, not
// queued.
func (s *Syncer) runKind(ctx context.Context, kind domain.SyncKind, task func(ctx context.Context, run *domain.SyncRun)) {
	mu := s.running[kind]
	if !mu.TryLock() {
		s.logger.Warn("sync tick skipped, previous run still in flight",
			logger.String("kind", string(kind)))
		return
	}
	defer mu.Unlock()

	runID, err := s.runs.Start(ctx, kind)
	if err != nil {
		s.logger.Error("failed to open sync run",
			logger.String("kind", string(kind)), logger.Error(err))
		return
	}

	run := &domain.SyncRun{ID: runID, Kind: kind, Status: domain.SyncRunCompleted}
	start := time.Now()
	task(ctx, run)
	duration := time.Since(start)

	if err := s.runs.Finish(ctx, run); err != nil {
		s.logger.Error("failed to close sync run",
			logger.String("run_id", runID), logger.Error(err))
	}

	s.metrics.SyncRuns.WithLabelValues(string(kind), string(run.Status)).Inc()
	s.metrics.SyncDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())

	s.logger.Info("sync run finished",
		logger.String("kind", string(kind)),
		logger.String("run_id", runID),
		logger.String("status", string(run.Status)),
		logger.Int("jobs_synced", run.JobsSynced),
		logger.Int("candidates_synced", run.CandidatesSynced),
		logger.Int("placements_updated", run.PlacementsUpdated),
		logger.Int("errors", run.ErrorsCount),
		logger.Duration("duration", duration))

	s.emitRunEvent(ctx, run)
}

func (s *Syncer) syncJobs(ctx context.Context, run *domain.SyncRun) {
	filter := partner.ListFilter{Status: "open", PerPage: s.jobPageSize}

	for page := 1; ; page++ {
		dtos, hasMore, err := s.client.ListJobs(ctx, filter, page)
		if err != nil {
			s.failRun(run, fmt.Sprintf("list jobs page %d: %v", page, err))
			return
		}

		for i := range dtos {
			if s.maxJobs > 0 && run.JobsSynced >= s.maxJobs {
				return
			}
			s.importJob(ctx, run, &dtos[i])
		}
		if !hasMore {
			return
		}
	}
}

// importJob upserts one posting; changed postings are re-enriched and
// rematched. Item failures are recorded and the run continues.
func (s *Syncer) importJob(ctx context.Context, run *domain.SyncRun, dto *partner.JobDTO) {
	job, err := dto.Validate(s.partnerID)
	if err != nil {
		s.recordItemError(run, err)
		s.metrics.SyncItems.WithLabelValues("jobs", "invalid").Inc()
		return
	}

	_, changed, err := s.jobs.Upsert(ctx, job)
	if err != nil {
		s.recordItemError(run, fmt.Errorf("upsert job %s: %w", job.ExternalID, err))
		s.metrics.SyncItems.WithLabelValues("jobs", "error").Inc()
		return
	}
	run.JobsSynced++

	if !changed {
		s.metrics.SyncItems.WithLabelValues("jobs", "unchanged").Inc()
		return
	}
	s.metrics.SyncItems.WithLabelValues("jobs", "upserted").Inc()

	enrichment, err := s.enricher.EnrichJob(ctx, job)
	if err != nil {
		s.recordItemError(run, fmt.Errorf("enrich job %s: %w", job.ExternalID, err))
		return
	}
	if enrichment.Status != domain.EnrichmentSuccess {
		return
	}

	if _, err := s.engine.MatchJob(ctx, job.ID); err != nil {
		s.recordItemError(run, fmt.Errorf("match job %s: %w", job.ExternalID, err))
	}
}

func (s *Syncer) submitCandidates(ctx context.Context, run *domain.SyncRun) {
	jobs, err := s.jobs.ListOpenEnriched(ctx)
	if err != nil {
		s.failRun(run, fmt.Sprintf("list open jobs: %v", err))
		return
	}

	for _, job := range jobs {
		if s.maxCandidates > 0 && run.CandidatesSynced >= s.maxCandidates {
			return
		}
		created, submitErr := s.engine.SubmitForJob(ctx, job)
		if submitErr != nil {
			s.recordItemError(run, fmt.Errorf("submit for job %s: %w", job.ExternalID, submitErr))
			continue
		}
		run.CandidatesSynced += created
	}
}

func (s *Syncer) syncPlacements(ctx context.Context, run *domain.SyncRun) {
	filter := partner.ListFilter{PerPage: s.placementPageSize}

	for page := 1; ; page++ {
		dtos, hasMore, err := s.client.ListPlacements(ctx, filter, page)
		if err != nil {
			s.failRun(run, fmt.Sprintf("list placements page %d: %v", page, err))
			return
		}

		for i := range dtos {
			s.applyPlacement(ctx, run, &dtos[i])
		}
		if !hasMore {
			return
		}
	}
}

// applyPlacement advances a local placement to the partner-reported
// status. Unknown placements and invalid transitions are recorded as
// item errors.
func (s *Syncer) applyPlacement(ctx context.Context, run *domain.SyncRun, dto *partner.PlacementDTO) {
	status, _, err := dto.Validate()
	if err != nil {
		s.recordItemError(run, err)
		s.metrics.SyncItems.WithLabelValues("placements", "invalid").Inc()
		return
	}

	placement, err := s.placements.GetByExternalID(ctx, s.partnerID, dto.ExternalID)
	if err != nil {
		s.recordItemError(run, fmt.Errorf("placement %s: %w", dto.ExternalID, err))
		s.metrics.SyncItems.WithLabelValues("placements", "unknown").Inc()
		return
	}

	if placement.Status == status {
		s.metrics.SyncItems.WithLabelValues("placements", "unchanged").Inc()
		return
	}

	if _, err := s.engine.AdvancePlacement(ctx, placement.ID, status, dto.Notes); err != nil {
		s.recordItemError(run, fmt.Errorf("placement %s: %s -> %s: %w",
			dto.ExternalID, placement.Status, status, err))
		s.metrics.SyncItems.WithLabelValues("placements", "rejected").Inc()
		return
	}

	run.PlacementsUpdated++
	s.metrics.SyncItems.WithLabelValues("placements", "updated").Inc()
}

func (s *Syncer) recordItemError(run *domain.SyncRun, err error) {
	run.ErrorsCount++
	run.ErrorLog = append(run.ErrorLog, err.Error())
	s.logger.Warn("sync item failed",
		logger.String("kind", string(run.Kind)),
		logger.Error(err))
}

// failRun marks the whole run failed; used for unrecoverable errors
// like auth failures or the store being down, not per-item problems.
func (s *Syncer) failRun(run *domain.SyncRun, message string) {
	run.Status = domain.SyncRunFailed
	run.ErrorsCount++
	run.ErrorLog = append(run.ErrorLog, message)
	s.logger.Error("sync run failed",
		logger.String("kind", string(run.Kind)),
		logger.String("error", message))
}

func (s *Syncer) emitRunEvent(ctx context.Context, run *domain.SyncRun) {
	eventType := domain.EventSyncCompleted
	if run.Status == domain.SyncRunFailed {
		eventType = domain.EventSyncFailed
	}

	correlationID := fmt.Sprintf("%s:%s", eventType, run.ID)
	err := s.dispatcher.Emit(ctx, eventType, correlationID, map[string]any{
		"run_id":             run.ID,
		"kind":               string(run.Kind),
		"status":             string(run.Status),
		"jobs_synced":        run.JobsSynced,
		"candidates_synced":  run.CandidatesSynced,
		"placements_updated": run.PlacementsUpdated,
		"errors_count":       run.ErrorsCount,
	})
	if err != nil {
		s.logger.Error("failed to emit sync run event",
			logger.String("run_id", run.ID), logger.Error(err))
	}
}
