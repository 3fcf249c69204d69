// Package api exposes the operational HTTP surface: health, stats,
// candidate ingest, webhook subscription management and manual
// enrich/match/placement triggers. Jobs and placements arrive through
// the sync scheduler; candidates arrive here as resume text.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/talentbridge/matchsync/internal/database"
	"github.com/talentbridge/matchsync/internal/domain"
	"github.com/talentbridge/matchsync/internal/logger"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// JobStore is the job persistence surface the handlers need.
type JobStore interface {
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	ListOpenEnriched(ctx context.Context) ([]*domain.Job, error)
}

// CandidateStore persists ingested candidates and resolves them for
// re-enrichment.
type CandidateStore interface {
	Create(ctx context.Context, c *domain.Candidate) (string, error)
	UpdateResume(ctx context.Context, id, resumeText string) error
	GetByID(ctx context.Context, id string) (*domain.Candidate, error)
}

// MatchStore lists stored matches.
type MatchStore interface {
	ListForJob(ctx context.Context, jobID string, limit int) ([]*domain.Match, error)
}

// WebhookStore manages webhook subscriptions.
type WebhookStore interface {
	CreateSubscription(ctx context.Context, s *domain.WebhookSubscription) error
	GetSubscription(ctx context.Context, id string) (*domain.WebhookSubscription, error)
	SetSubscriptionActive(ctx context.Context, id string, active bool) error
}

// RunStore lists recorded sync runs.
type RunStore interface {
	ListRecent(ctx context.Context, limit int) ([]*domain.SyncRun, error)
}

// StatsProvider aggregates the operational counters.
type StatsProvider interface {
	GetStats(ctx context.Context) (*database.Stats, error)
}

// Enricher re-enriches records on operator request.
type Enricher interface {
	EnrichJob(ctx context.Context, job *domain.Job) (*domain.JobEnrichment, error)
	EnrichCandidate(ctx context.Context, cand *domain.Candidate) (*domain.CandidateEnrichment, error)
}

// MatchEngine drives scoring and placement transitions.
type MatchEngine interface {
	MatchJob(ctx context.Context, jobID string) (int, error)
	MatchCandidate(ctx context.Context, candidateID string) (int, error)
	AdvancePlacement(ctx context.Context, placementID string, to domain.PlacementStatus, notes string) (*domain.Placement, error)
}

// Handler holds the API dependencies.
type Handler struct {
	jobs       JobStore
	candidates CandidateStore
	matches    MatchStore
	webhooks   WebhookStore
	runs       RunStore
	stats      StatsProvider
	enricher   Enricher
	engine     MatchEngine
	logger     logger.Logger
}

// NewHandler creates an API handler.
func NewHandler(
	jobs JobStore,
	candidates CandidateStore,
	matches MatchStore,
	webhooks WebhookStore,
	runs RunStore,
	stats StatsProvider,
	enricher Enricher,
	engine MatchEngine,
	log logger.Logger,
) *Handler {
	return &Handler{
		jobs:       jobs,
		candidates: candidates,
		matches:    matches,
		webhooks:   webhooks,
		runs:       runs,
		stats:      stats,
		enricher:   enricher,
		engine:     engine,
		logger:     log,
	}
}

// GetStats handles GET /api/v1/stats.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.stats.GetStats(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to collect stats", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to collect statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CreateSubscriptionRequest registers a webhook consumer.
type CreateSubscriptionRequest struct {
	Owner          string   `json:"owner"           binding:"required"`
	URL            string   `json:"url"             binding:"required,url"`
	EventTypes     []string `json:"event_types"     binding:"required,min=1"`
	Secret         string   `json:"secret"          binding:"required"`
	RetryStrategy  string   `json:"retry_strategy"`
	MaxAttempts    int      `json:"max_attempts"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

// CreateSubscription handles POST /api/v1/webhooks.
func (h *Handler) CreateSubscription(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eventTypes, err := parseEventTypes(req.EventTypes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	strategy := domain.RetryStrategy(req.RetryStrategy)
	switch strategy {
	case domain.RetryExponential, domain.RetryLinear:
	case "":
		strategy = domain.RetryExponential
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown retry_strategy: " + req.RetryStrategy})
		return
	}

	sub := &domain.WebhookSubscription{
		ID:             uuid.NewString(),
		Owner:          req.Owner,
		URL:            req.URL,
		EventTypes:     eventTypes,
		Secret:         req.Secret,
		Active:         true,
		RetryStrategy:  strategy,
		MaxAttempts:    req.MaxAttempts,
		TimeoutSeconds: req.TimeoutSeconds,
	}
	if err := h.webhooks.CreateSubscription(c.Request.Context(), sub); err != nil {
		h.logger.Error("failed to create webhook subscription", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create subscription"})
		return
	}

	h.logger.Info("webhook subscription created",
		logger.String("subscription_id", sub.ID),
		logger.String("owner", sub.Owner))
	c.JSON(http.StatusCreated, subscriptionResponse(sub))
}

// GetSubscription handles GET /api/v1/webhooks/:id.
func (h *Handler) GetSubscription(c *gin.Context) {
	sub, err := h.webhooks.GetSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "subscription")
		return
	}
	c.JSON(http.StatusOK, subscriptionResponse(sub))
}

// DeleteSubscription handles DELETE /api/v1/webhooks/:id. The
// subscription is deactivated, not removed, so its delivery history
// stays queryable.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	if err := h.webhooks.SetSubscriptionActive(c.Request.Context(), c.Param("id"), false); err != nil {
		h.respondError(c, err, "subscription")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

// EnrichJob handles POST /api/v1/jobs/:id/enrich.
func (h *Handler) EnrichJob(c *gin.Context) {
	job, err := h.jobs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "job")
		return
	}

	enrichment, err := h.enricher.EnrichJob(c.Request.Context(), job)
	if err != nil {
		h.logger.Error("manual job enrichment failed",
			logger.String("job_id", job.ID), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enrichment failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": job.ID, "enrichment": enrichment})
}

// EnrichCandidate handles POST /api/v1/candidates/:id/enrich.
func (h *Handler) EnrichCandidate(c *gin.Context) {
	cand, err := h.candidates.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "candidate")
		return
	}

	enrichment, err := h.enricher.EnrichCandidate(c.Request.Context(), cand)
	if err != nil {
		h.logger.Error("manual candidate enrichment failed",
			logger.String("candidate_id", cand.ID), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enrichment failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidate_id": cand.ID, "enrichment": enrichment})
}

// IngestCandidateRequest carries a new candidate's identity and resume.
type IngestCandidateRequest struct {
	Name       string `json:"name"        binding:"required"`
	Email      string `json:"email"       binding:"required,email"`
	Phone      string `json:"phone"`
	ResumeText string `json:"resume_text" binding:"required"`
}

// IngestCandidate handles POST /api/v1/candidates. The candidate is
// stored, enriched and reverse-matched against open jobs in one pass.
// A failed enrichment still creates the candidate; the enrichment
// status records the failure and a later re-enrich can recover it.
func (h *Handler) IngestCandidate(c *gin.Context) {
	var req IngestCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cand := &domain.Candidate{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		ResumeText: req.ResumeText,
	}
	id, err := h.candidates.Create(c.Request.Context(), cand)
	if err != nil {
		h.logger.Error("failed to create candidate", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create candidate"})
		return
	}
	cand.ID = id

	scored, err := h.enrichAndMatchCandidate(c.Request.Context(), cand)
	if err != nil {
		c.JSON(http.StatusCreated, gin.H{"candidate_id": id, "enriched": false, "scored": 0})
		return
	}

	h.logger.Info("candidate ingested",
		logger.String("candidate_id", id), logger.Int("scored", scored))
	c.JSON(http.StatusCreated, gin.H{"candidate_id": id, "enriched": true, "scored": scored})
}

// UpdateResumeRequest replaces a candidate's resume text.
type UpdateResumeRequest struct {
	ResumeText string `json:"resume_text" binding:"required"`
}

// UpdateCandidateResume handles PUT /api/v1/candidates/:id/resume. A
// new resume invalidates the previous enrichment, so the candidate is
// re-enriched and re-matched immediately.
func (h *Handler) UpdateCandidateResume(c *gin.Context) {
	var req UpdateResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if err := h.candidates.UpdateResume(c.Request.Context(), id, req.ResumeText); err != nil {
		h.respondError(c, err, "candidate")
		return
	}

	cand, err := h.candidates.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "candidate")
		return
	}

	scored, err := h.enrichAndMatchCandidate(c.Request.Context(), cand)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"candidate_id": id, "enriched": false, "scored": 0})
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidate_id": id, "enriched": true, "scored": scored})
}

func (h *Handler) enrichAndMatchCandidate(ctx context.Context, cand *domain.Candidate) (int, error) {
	if _, err := h.enricher.EnrichCandidate(ctx, cand); err != nil {
		h.logger.Warn("candidate enrichment failed",
			logger.String("candidate_id", cand.ID), logger.Error(err))
		return 0, err
	}
	scored, err := h.engine.MatchCandidate(ctx, cand.ID)
	if err != nil {
		h.logger.Warn("candidate matching failed",
			logger.String("candidate_id", cand.ID), logger.Error(err))
		return 0, err
	}
	return scored, nil
}

// MatchJobNow handles POST /api/v1/jobs/:id/match.
func (h *Handler) MatchJobNow(c *gin.Context) {
	scored, err := h.engine.MatchJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "job")
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": c.Param("id"), "scored": scored})
}

// MatchCandidateNow handles POST /api/v1/candidates/:id/match.
func (h *Handler) MatchCandidateNow(c *gin.Context) {
	scored, err := h.engine.MatchCandidate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "candidate")
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidate_id": c.Param("id"), "scored": scored})
}

// RebuildMatches handles POST /api/v1/matches/rebuild. Every open
// enriched job is rescored; byte-identical outcomes do not re-emit
// events, so a rebuild is safe to run at any time.
func (h *Handler) RebuildMatches(c *gin.Context) {
	jobs, err := h.jobs.ListOpenEnriched(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list jobs for rebuild", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	scored := 0
	failed := 0
	for _, job := range jobs {
		n, matchErr := h.engine.MatchJob(c.Request.Context(), job.ID)
		if matchErr != nil {
			failed++
			h.logger.Warn("rebuild failed for job",
				logger.String("job_id", job.ID), logger.Error(matchErr))
			continue
		}
		scored += n
	}
	c.JSON(http.StatusOK, gin.H{"jobs": len(jobs), "scored": scored, "failed": failed})
}

// ListJobMatches handles GET /api/v1/jobs/:id/matches.
func (h *Handler) ListJobMatches(c *gin.Context) {
	limit := parseLimit(c.DefaultQuery("limit", "0"), 0)
	matches, err := h.matches.ListForJob(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.logger.Error("failed to list matches", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list matches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches, "count": len(matches)})
}

// UpdatePlacementRequest advances a placement manually.
type UpdatePlacementRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// UpdatePlacementStatus handles PUT /api/v1/placements/:id/status.
func (h *Handler) UpdatePlacementStatus(c *gin.Context) {
	var req UpdatePlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := domain.ParsePlacementStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	placement, err := h.engine.AdvancePlacement(c.Request.Context(), c.Param("id"), status, req.Notes)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.respondError(c, err, "placement")
		return
	}
	c.JSON(http.StatusOK, placement)
}

// ListSyncRuns handles GET /api/v1/sync-runs.
func (h *Handler) ListSyncRuns(c *gin.Context) {
	limit := parseLimit(c.DefaultQuery("limit", strconv.Itoa(defaultRunsLimit)), defaultRunsLimit)
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}

	runs, err := h.runs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list sync runs", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sync runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// respondError maps store errors to HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error, entity string) {
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": entity + " not found"})
		return
	}
	h.logger.Error("request failed",
		logger.String("path", c.Request.URL.Path), logger.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func parseEventTypes(raw []string) ([]domain.EventType, error) {
	known := map[domain.EventType]bool{
		domain.EventMatchCreated:     true,
		domain.EventPlacementCreated: true,
		domain.EventPlacementUpdated: true,
		domain.EventSyncCompleted:    true,
		domain.EventSyncFailed:       true,
	}
	types := make([]domain.EventType, 0, len(raw))
	for _, s := range raw {
		et := domain.EventType(s)
		if !known[et] {
			return nil, errors.New("unknown event type: " + s)
		}
		types = append(types, et)
	}
	return types, nil
}

// subscriptionResponse strips the signing secret from API responses.
func subscriptionResponse(s *domain.WebhookSubscription) gin.H {
	return gin.H{
		"id":              s.ID,
		"owner":           s.Owner,
		"url":             s.URL,
		"event_types":     s.EventTypes,
		"active":          s.Active,
		"retry_strategy":  s.RetryStrategy,
		"max_attempts":    s.MaxAttempts,
		"timeout_seconds": s.TimeoutSeconds,
	}
}

func parseLimit(raw string, fallback int) int {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return fallback
	}
	return limit
}
