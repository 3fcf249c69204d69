package enrich

import (
	"context"
	"fmt"

	"github.com/talentbridge/matchsync/internal/domain"
	"github.com/talentbridge/matchsync/internal/logger"
	"github.com/talentbridge/matchsync/internal/metrics"
)

// Cache is the enrichment cache surface. Enrichment is deterministic
// over its input text, so cached results stay valid until the text
// changes.
type Cache interface {
	GetJob(ctx context.Context, text string) (*domain.JobEnrichment, error)
	SetJob(ctx context.Context, text string, e *domain.JobEnrichment) error
	GetCandidate(ctx context.Context, text string) (*domain.CandidateEnrichment, error)
	SetCandidate(ctx context.Context, text string, e *domain.CandidateEnrichment) error
}

// JobEnrichmentStore persists job enrichment results.
type JobEnrichmentStore interface {
	SetEnrichment(ctx context.Context, jobID string, e *domain.JobEnrichment) error
}

// CandidateEnrichmentStore persists candidate enrichment results.
type CandidateEnrichmentStore interface {
	SetEnrichment(ctx context.Context, id string, e *domain.CandidateEnrichment) error
}

// Service wraps the pure pipeline with caching, persistence and
// metrics.
type Service struct {
	pipeline   *Pipeline
	cache      Cache
	jobs       JobEnrichmentStore
	candidates CandidateEnrichmentStore
	metrics    *metrics.Metrics
	logger     logger.Logger
}

// NewService creates an enrichment service. cache may be nil to disable
// caching.
func NewService(
	pipeline *Pipeline,
	cache Cache,
	jobs JobEnrichmentStore,
	candidates CandidateEnrichmentStore,
	m *metrics.Metrics,
	log logger.Logger,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		pipeline:   pipeline,
		cache:      cache,
		jobs:       jobs,
		candidates: candidates,
		metrics:    m,
		logger:     log,
	}
}

// EnrichJob enriches a job and persists the result. The record is
// stored even on extraction failure, with status=error, so the job is
// visible but excluded from scoring.
func (s *Service) EnrichJob(ctx context.Context, job *domain.Job) (*domain.JobEnrichment, error) {
	text := job.FreeText()

	if s.cache != nil {
		cached, err := s.cache.GetJob(ctx, text)
		if err != nil {
			s.logger.Warn("job enrichment cache lookup failed",
				logger.String("job_id", job.ID), logger.Error(err))
		}
		if cached != nil {
			s.metrics.CacheLookups.WithLabelValues("hit").Inc()
			if storeErr := s.jobs.SetEnrichment(ctx, job.ID, cached); storeErr != nil {
				return nil, fmt.Errorf("store cached job enrichment: %w", storeErr)
			}
			job.Enrichment = cached
			return cached, nil
		}
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	enrichment := s.pipeline.EnrichJob(job)
	s.metrics.Enrichments.WithLabelValues("job", string(enrichment.Status)).Inc()

	if err := s.jobs.SetEnrichment(ctx, job.ID, enrichment); err != nil {
		return nil, fmt.Errorf("store job enrichment: %w", err)
	}
	job.Enrichment = enrichment

	if s.cache != nil {
		if err := s.cache.SetJob(ctx, text, enrichment); err != nil {
			s.logger.Warn("job enrichment cache store failed",
				logger.String("job_id", job.ID), logger.Error(err))
		}
	}
	return enrichment, nil
}

// EnrichCandidate enriches a candidate and persists the result.
func (s *Service) EnrichCandidate(ctx context.Context, cand *domain.Candidate) (*domain.CandidateEnrichment, error) {
	text := cand.ResumeText

	if s.cache != nil {
		cached, err := s.cache.GetCandidate(ctx, text)
		if err != nil {
			s.logger.Warn("candidate enrichment cache lookup failed",
				logger.String("candidate_id", cand.ID), logger.Error(err))
		}
		if cached != nil {
			s.metrics.CacheLookups.WithLabelValues("hit").Inc()
			if storeErr := s.candidates.SetEnrichment(ctx, cand.ID, cached); storeErr != nil {
				return nil, fmt.Errorf("store cached candidate enrichment: %w", storeErr)
			}
			cand.Enrichment = cached
			return cached, nil
		}
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	enrichment := s.pipeline.EnrichCandidate(cand)
	s.metrics.Enrichments.WithLabelValues("candidate", string(enrichment.Status)).Inc()

	if err := s.candidates.SetEnrichment(ctx, cand.ID, enrichment); err != nil {
		return nil, fmt.Errorf("store candidate enrichment: %w", err)
	}
	cand.Enrichment = enrichment

	if s.cache != nil {
		if err := s.cache.SetCandidate(ctx, text, enrichment); err != nil {
			s.logger.Warn("candidate enrichment cache store failed",
				logger.String("candidate_id", cand.ID), logger.Error(err))
		}
	}
	return enrichment, nil
}
