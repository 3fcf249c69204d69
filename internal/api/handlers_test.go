package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentbridge/matchsync/internal/database"
	"github.com/talentbridge/matchsync/internal/domain"
	"github.com/talentbridge/matchsync/internal/logger"
)

type fakeJobStore struct {
	byID map[string]*domain.Job
	open []*domain.Job
}

func (f *fakeJobStore) GetByID(_ context.Context, id string) (*domain.Job, error) {
	job, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (f *fakeJobStore) ListOpenEnriched(_ context.Context) ([]*domain.Job, error) {
	return f.open, nil
}

type fakeCandidateStore struct {
	byID    map[string]*domain.Candidate
	nextID  int
	created []*domain.Candidate
}

func (f *fakeCandidateStore) Create(_ context.Context, c *domain.Candidate) (string, error) {
	f.nextID++
	id := "cand-" + strconv.Itoa(f.nextID)
	c.ID = id
	f.byID[id] = c
	f.created = append(f.created, c)
	return id, nil
}

func (f *fakeCandidateStore) UpdateResume(_ context.Context, id, resumeText string) error {
	cand, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	cand.ResumeText = resumeText
	return nil
}

func (f *fakeCandidateStore) GetByID(_ context.Context, id string) (*domain.Candidate, error) {
	cand, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cand, nil
}

type fakeMatchStore struct {
	matches []*domain.Match
}

func (f *fakeMatchStore) ListForJob(_ context.Context, _ string, limit int) ([]*domain.Match, error) {
	if limit > 0 && limit < len(f.matches) {
		return f.matches[:limit], nil
	}
	return f.matches, nil
}

type fakeWebhookStore struct {
	subs    map[string]*domain.WebhookSubscription
	created []*domain.WebhookSubscription
}

func (f *fakeWebhookStore) CreateSubscription(_ context.Context, s *domain.WebhookSubscription) error {
	f.subs[s.ID] = s
	f.created = append(f.created, s)
	return nil
}

func (f *fakeWebhookStore) GetSubscription(_ context.Context, id string) (*domain.WebhookSubscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sub, nil
}

func (f *fakeWebhookStore) SetSubscriptionActive(_ context.Context, id string, active bool) error {
	sub, ok := f.subs[id]
	if !ok {
		return domain.ErrNotFound
	}
	sub.Active = active
	return nil
}

type fakeRunStore struct {
	runs []*domain.SyncRun
}

func (f *fakeRunStore) ListRecent(_ context.Context, limit int) ([]*domain.SyncRun, error) {
	if limit > 0 && limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

type fakeStats struct {
	stats *database.Stats
}

func (f *fakeStats) GetStats(_ context.Context) (*database.Stats, error) {
	return f.stats, nil
}

type fakeEnricher struct {
	jobCalls  []string
	candCalls []string
}

func (f *fakeEnricher) EnrichJob(_ context.Context, job *domain.Job) (*domain.JobEnrichment, error) {
	f.jobCalls = append(f.jobCalls, job.ID)
	return &domain.JobEnrichment{Status: domain.EnrichmentSuccess}, nil
}

func (f *fakeEnricher) EnrichCandidate(_ context.Context, cand *domain.Candidate) (*domain.CandidateEnrichment, error) {
	f.candCalls = append(f.candCalls, cand.ID)
	return &domain.CandidateEnrichment{Status: domain.EnrichmentSuccess}, nil
}

type fakeEngine struct {
	matchedJobs  []string
	matchedCands []string
	advanceErr   error
}

func (f *fakeEngine) MatchJob(_ context.Context, jobID string) (int, error) {
	f.matchedJobs = append(f.matchedJobs, jobID)
	return 3, nil
}

func (f *fakeEngine) MatchCandidate(_ context.Context, candidateID string) (int, error) {
	f.matchedCands = append(f.matchedCands, candidateID)
	return 2, nil
}

func (f *fakeEngine) AdvancePlacement(_ context.Context, placementID string, to domain.PlacementStatus, notes string) (*domain.Placement, error) {
	if f.advanceErr != nil {
		return nil, f.advanceErr
	}
	return &domain.Placement{ID: placementID, Status: to, Notes: notes}, nil
}

type apiFixture struct {
	engine     *gin.Engine
	jobs       *fakeJobStore
	candidates *fakeCandidateStore
	matches    *fakeMatchStore
	webhooks   *fakeWebhookStore
	runs       *fakeRunStore
	enricher   *fakeEnricher
	matcher    *fakeEngine
}

func newAPIFixture() *apiFixture {
	gin.SetMode(gin.TestMode)

	fx := &apiFixture{
		jobs:       &fakeJobStore{byID: map[string]*domain.Job{}},
		candidates: &fakeCandidateStore{byID: map[string]*domain.Candidate{}},
		matches:    &fakeMatchStore{},
		webhooks:   &fakeWebhookStore{subs: map[string]*domain.WebhookSubscription{}},
		runs:       &fakeRunStore{},
		enricher:   &fakeEnricher{},
		matcher:    &fakeEngine{},
	}
	handler := NewHandler(
		fx.jobs, fx.candidates, fx.matches, fx.webhooks, fx.runs,
		&fakeStats{stats: &database.Stats{JobsTotal: 5, Recommendations: map[string]int{"good": 2}}},
		fx.enricher, fx.matcher, logger.Nop(),
	)

	fx.engine = gin.New()
	RegisterRoutes(fx.engine, handler)
	return fx
}

func (fx *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fx.engine.ServeHTTP(rec, req)
	return rec
}

func TestGetStats(t *testing.T) {
	fx := newAPIFixture()

	rec := fx.do(t, http.MethodGet, "/api/v1/stats", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got database.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 5, got.JobsTotal)
	assert.Equal(t, 2, got.Recommendations["good"])
}

func TestCreateSubscription(t *testing.T) {
	fx := newAPIFixture()

	rec := fx.do(t, http.MethodPost, "/api/v1/webhooks", gin.H{
		"owner":       "ats-bridge",
		"url":         "https://consumer.example.com/hooks",
		"event_types": []string{"match.created", "placement.updated"},
		"secret":      "hook-secret",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, fx.webhooks.created, 1)
	sub := fx.webhooks.created[0]
	assert.True(t, sub.Active)
	assert.Equal(t, domain.RetryExponential, sub.RetryStrategy)
	assert.True(t, sub.Subscribed(domain.EventMatchCreated))
	// The signing secret never appears in the response.
	assert.NotContains(t, rec.Body.String(), "hook-secret")
}

func TestCreateSubscriptionRejectsBadInput(t *testing.T) {
	fx := newAPIFixture()

	tests := []struct {
		name string
		body gin.H
	}{
		{
			name: "missing url",
			body: gin.H{"owner": "x", "event_types": []string{"match.created"}, "secret": "s"},
		},
		{
			name: "unknown event type",
			body: gin.H{
				"owner": "x", "url": "https://a.example.com", "secret": "s",
				"event_types": []string{"match.deleted"},
			},
		},
		{
			name: "unknown retry strategy",
			body: gin.H{
				"owner": "x", "url": "https://a.example.com", "secret": "s",
				"event_types": []string{"match.created"}, "retry_strategy": "fibonacci",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := fx.do(t, http.MethodPost, "/api/v1/webhooks", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestDeleteSubscriptionDeactivates(t *testing.T) {
	fx := newAPIFixture()
	fx.webhooks.subs["sub-1"] = &domain.WebhookSubscription{ID: "sub-1", Active: true}

	rec := fx.do(t, http.MethodDelete, "/api/v1/webhooks/sub-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, fx.webhooks.subs["sub-1"].Active)

	rec = fx.do(t, http.MethodDelete, "/api/v1/webhooks/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnrichJob(t *testing.T) {
	fx := newAPIFixture()
	fx.jobs.byID["job-1"] = &domain.Job{ID: "job-1", Title: "Backend Engineer"}

	rec := fx.do(t, http.MethodPost, "/api/v1/jobs/job-1/enrich", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"job-1"}, fx.enricher.jobCalls)

	rec = fx.do(t, http.MethodPost, "/api/v1/jobs/missing/enrich", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngestCandidate(t *testing.T) {
	fx := newAPIFixture()

	rec := fx.do(t, http.MethodPost, "/api/v1/candidates", gin.H{
		"name":        "Dana Weiss",
		"email":       "dana@example.com",
		"resume_text": "Senior Go developer with 8 years of experience.",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, fx.candidates.created, 1)
	assert.Equal(t, "Dana Weiss", fx.candidates.created[0].Name)

	// Ingest enriches and reverse-matches in the same request.
	assert.Equal(t, []string{"cand-1"}, fx.enricher.candCalls)
	assert.Equal(t, []string{"cand-1"}, fx.matcher.matchedCands)

	var resp struct {
		CandidateID string `json:"candidate_id"`
		Enriched    bool   `json:"enriched"`
		Scored      int    `json:"scored"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cand-1", resp.CandidateID)
	assert.True(t, resp.Enriched)
	assert.Equal(t, 2, resp.Scored)
}

func TestIngestCandidateRejectsBadInput(t *testing.T) {
	fx := newAPIFixture()

	tests := []struct {
		name string
		body gin.H
	}{
		{name: "missing resume", body: gin.H{"name": "x", "email": "x@example.com"}},
		{name: "bad email", body: gin.H{"name": "x", "email": "not-an-email", "resume_text": "cv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := fx.do(t, http.MethodPost, "/api/v1/candidates", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, fx.candidates.created)
}

func TestUpdateCandidateResume(t *testing.T) {
	fx := newAPIFixture()
	fx.candidates.byID["cand-7"] = &domain.Candidate{ID: "cand-7", ResumeText: "old"}

	rec := fx.do(t, http.MethodPut, "/api/v1/candidates/cand-7/resume", gin.H{
		"resume_text": "Python engineer, 4 years.",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Python engineer, 4 years.", fx.candidates.byID["cand-7"].ResumeText)
	assert.Equal(t, []string{"cand-7"}, fx.enricher.candCalls)
	assert.Equal(t, []string{"cand-7"}, fx.matcher.matchedCands)

	rec = fx.do(t, http.MethodPut, "/api/v1/candidates/missing/resume", gin.H{
		"resume_text": "cv",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRebuildMatches(t *testing.T) {
	fx := newAPIFixture()
	fx.jobs.open = []*domain.Job{{ID: "job-1"}, {ID: "job-2"}}

	rec := fx.do(t, http.MethodPost, "/api/v1/matches/rebuild", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"job-1", "job-2"}, fx.matcher.matchedJobs)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp["jobs"])
	assert.Equal(t, 6, resp["scored"])
	assert.Equal(t, 0, resp["failed"])
}

func TestUpdatePlacementStatus(t *testing.T) {
	fx := newAPIFixture()

	rec := fx.do(t, http.MethodPut, "/api/v1/placements/p-1/status", gin.H{
		"status": "viewed",
		"notes":  "opened by recruiter",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var placement domain.Placement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placement))
	assert.Equal(t, domain.PlacementViewed, placement.Status)
}

func TestUpdatePlacementStatusInvalidTransition(t *testing.T) {
	fx := newAPIFixture()
	fx.matcher.advanceErr = domain.ErrInvalidTransition

	rec := fx.do(t, http.MethodPut, "/api/v1/placements/p-1/status", gin.H{
		"status": "viewed",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdatePlacementStatusUnknownStatus(t *testing.T) {
	fx := newAPIFixture()

	rec := fx.do(t, http.MethodPut, "/api/v1/placements/p-1/status", gin.H{
		"status": "ghosted",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSyncRuns(t *testing.T) {
	fx := newAPIFixture()
	fx.runs.runs = []*domain.SyncRun{
		{ID: "run-2", Kind: domain.SyncKindJobs, Status: domain.SyncRunCompleted},
		{ID: "run-1", Kind: domain.SyncKindPlacements, Status: domain.SyncRunFailed},
	}

	rec := fx.do(t, http.MethodGet, "/api/v1/sync-runs?limit=1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Runs  []*domain.SyncRun `json:"runs"`
		Count int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "run-2", resp.Runs[0].ID)
}
