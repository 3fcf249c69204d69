package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentbridge/matchsync/internal/config"
	"github.com/talentbridge/matchsync/internal/domain"
	"github.com/talentbridge/matchsync/internal/logger"
	"github.com/talentbridge/matchsync/internal/metrics"
	"github.com/talentbridge/matchsync/internal/partner"
)

type fakePartner struct {
	jobPages       [][]partner.JobDTO
	placementPages [][]partner.PlacementDTO
	listJobsErr    error
}

func (f *fakePartner) ListJobs(_ context.Context, _ partner.ListFilter, page int) ([]partner.JobDTO, bool, error) {
	if f.listJobsErr != nil {
		return nil, false, f.listJobsErr
	}
	if page > len(f.jobPages) {
		return nil, false, nil
	}
	return f.jobPages[page-1], page < len(f.jobPages), nil
}

func (f *fakePartner) ListPlacements(_ context.Context, _ partner.ListFilter, page int) ([]partner.PlacementDTO, bool, error) {
	if page > len(f.placementPages) {
		return nil, false, nil
	}
	return f.placementPages[page-1], page < len(f.placementPages), nil
}

type fakeJobStore struct {
	mu        sync.Mutex
	upserts   []*domain.Job
	unchanged map[string]bool
	open      []*domain.Job
}

func (f *fakeJobStore) Upsert(_ context.Context, job *domain.Job) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job.ID = "job-" + job.ExternalID
	f.upserts = append(f.upserts, job)
	return job.ID, !f.unchanged[job.ExternalID], nil
}

func (f *fakeJobStore) ListOpenEnriched(_ context.Context) ([]*domain.Job, error) {
	return f.open, nil
}

type fakePlacementStore struct {
	byExternal map[string]*domain.Placement
}

func (f *fakePlacementStore) GetByExternalID(_ context.Context, _, externalID string) (*domain.Placement, error) {
	p, ok := f.byExternal[externalID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type fakeRunStore struct {
	mu       sync.Mutex
	started  []domain.SyncKind
	finished []*domain.SyncRun
}

func (f *fakeRunStore) Start(_ context.Context, kind domain.SyncKind) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, kind)
	return "run-1", nil
}

func (f *fakeRunStore) Finish(_ context.Context, run *domain.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *run
	f.finished = append(f.finished, &cp)
	return nil
}

func (f *fakeRunStore) StaleRunning(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

type fakeEnricher struct {
	failFor map[string]bool
	calls   []string
}

func (f *fakeEnricher) EnrichJob(_ context.Context, job *domain.Job) (*domain.JobEnrichment, error) {
	f.calls = append(f.calls, job.ExternalID)
	if f.failFor[job.ExternalID] {
		return nil, errors.New("enrichment backend unavailable")
	}
	return &domain.JobEnrichment{Status: domain.EnrichmentSuccess}, nil
}

type fakeEngine struct {
	matchedJobs   []string
	submitCounts  map[string]int
	advanced      []string
	advanceErrFor map[string]error
}

func (f *fakeEngine) MatchJob(_ context.Context, jobID string) (int, error) {
	f.matchedJobs = append(f.matchedJobs, jobID)
	return 1, nil
}

func (f *fakeEngine) SubmitForJob(_ context.Context, job *domain.Job) (int, error) {
	return f.submitCounts[job.ID], nil
}

func (f *fakeEngine) AdvancePlacement(_ context.Context, placementID string, to domain.PlacementStatus, notes string) (*domain.Placement, error) {
	if err := f.advanceErrFor[placementID]; err != nil {
		return nil, err
	}
	f.advanced = append(f.advanced, placementID+":"+string(to))
	return &domain.Placement{ID: placementID, Status: to, Notes: notes}, nil
}

type emittedEvent struct {
	eventType     domain.EventType
	correlationID string
	payload       any
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emittedEvent
}

func (f *fakeEmitter) Emit(_ context.Context, eventType domain.EventType, correlationID string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emittedEvent{eventType, correlationID, payload})
	return nil
}

type syncerFixture struct {
	syncer     *Syncer
	partner    *fakePartner
	jobs       *fakeJobStore
	placements *fakePlacementStore
	runs       *fakeRunStore
	enricher   *fakeEnricher
	engine     *fakeEngine
	emitter    *fakeEmitter
}

func newSyncerFixture(cfg config.SyncConfig) *syncerFixture {
	if cfg.JobPageSize == 0 {
		cfg.JobPageSize = 100
	}
	if cfg.PlacementPageSize == 0 {
		cfg.PlacementPageSize = 500
	}

	fx := &syncerFixture{
		partner:    &fakePartner{},
		jobs:       &fakeJobStore{unchanged: map[string]bool{}},
		placements: &fakePlacementStore{byExternal: map[string]*domain.Placement{}},
		runs:       &fakeRunStore{},
		enricher:   &fakeEnricher{failFor: map[string]bool{}},
		engine:     &fakeEngine{submitCounts: map[string]int{}, advanceErrFor: map[string]error{}},
		emitter:    &fakeEmitter{},
	}
	fx.syncer = New(
		fx.partner, fx.jobs, fx.placements, fx.runs,
		fx.enricher, fx.engine, fx.emitter,
		metrics.NewNop(), cfg, "partner-1", logger.Nop(),
	)
	return fx
}

func TestRunJobsSyncImportsAndMatches(t *testing.T) {
	fx := newSyncerFixture(config.SyncConfig{})
	fx.partner.jobPages = [][]partner.JobDTO{
		{
			{ExternalID: "j-1", Title: "Backend Engineer", Status: "open"},
			{ExternalID: "j-2", Title: ""},
		},
		{
			{ExternalID: "j-3", Title: "Data Engineer", Status: "open"},
		},
	}
	fx.jobs.unchanged["j-3"] = true

	fx.syncer.RunJobsSync(context.Background())

	require.Len(t, fx.runs.finished, 1)
	run := fx.runs.finished[0]
	assert.Equal(t, domain.SyncRunCompleted, run.Status)
	assert.Equal(t, 2, run.JobsSynced)
	assert.Equal(t, 1, run.ErrorsCount)

	// Unchanged postings are not re-enriched or rematched.
	assert.Equal(t, []string{"j-1"}, fx.enricher.calls)
	assert.Equal(t, []string{"job-j-1"}, fx.engine.matchedJobs)

	require.Len(t, fx.emitter.events, 1)
	assert.Equal(t, domain.EventSyncCompleted, fx.emitter.events[0].eventType)
	assert.Equal(t, "sync.completed:run-1", fx.emitter.events[0].correlationID)
}

func TestRunJobsSyncEnrichmentFailureIsItemError(t *testing.T) {
	fx := newSyncerFixture(config.SyncConfig{})
	fx.partner.jobPages = [][]partner.JobDTO{
		{{ExternalID: "j-1", Title: "Backend Engineer"}},
	}
	fx.enricher.failFor["j-1"] = true

	fx.syncer.RunJobsSync(context.Background())

	require.Len(t, fx.runs.finished, 1)
	run := fx.runs.finished[0]
	assert.Equal(t, domain.SyncRunCompleted, run.Status)
	assert.Equal(t, 1, run.JobsSynced)
	assert.Equal(t, 1, run.ErrorsCount)
	assert.Empty(t, fx.engine.matchedJobs)
}

func TestRunJobsSyncPartnerErrorFailsRun(t *testing.T) {
	fx := newSyncerFixture(config.SyncConfig{})
	fx.partner.listJobsErr = &partner.Error{Kind: partner.KindAuth, Message: "invalid api key"}

	fx.syncer.RunJobsSync(context.Background())

	require.Len(t, fx.runs.finished, 1)
	run := fx.runs.finished[0]
	assert.Equal(t, domain.SyncRunFailed, run.Status)
	require.Len(t, fx.emitter.events, 1)
	assert.Equal(t, domain.EventSyncFailed, fx.emitter.events[0].eventType)
}

func TestRunJobsSyncRespectsBatchLimit(t *testing.T) {
	fx := newSyncerFixture(config.SyncConfig{MaxJobsPerSync: 2})
	fx.partner.jobPages = [][]partner.JobDTO{
		{
			{ExternalID: "j-1", Title: "A"},
			{ExternalID: "j-2", Title: "B"},
			{ExternalID: "j-3", Title: "C"},
		},
	}

	fx.syncer.RunJobsSync(context.Background())

	require.Len(t, fx.runs.finished, 1)
	assert.Equal(t, 2, fx.runs.finished[0].JobsSynced)
	assert.Len(t, fx.jobs.upserts, 2)
}

func TestRunCandidateSubmission(t *testing.T) {
	fx := newSyncerFixture(config.SyncConfig{})
	fx.jobs.open = []*domain.Job{
		{ID: "job-1", ExternalID: "j-1"},
		{ID: "job-2", ExternalID: "j-2"},
	}
	fx.engine.submitCounts = map[string]int{"job-1": 2, "job-2": 1}

	fx.syncer.RunCandidateSubmission(context.Background())

	require.Len(t, fx.runs.finished, 1)
	run := fx.runs.finished[0]
	assert.Equal(t, domain.SyncRunCompleted, run.Status)
	assert.Equal(t, 3, run.CandidatesSynced)
	assert.Equal(t, domain.SyncKindCandidates, run.Kind)
}

func TestRunPlacementsSync(t *testing.T) {
	fx := newSyncerFixture(config.SyncConfig{})
	fx.placements.byExternal = map[string]*domain.Placement{
		"pl-1": {ID: "p-1", Status: domain.PlacementSubmitted},
		"pl-2": {ID: "p-2", Status: domain.PlacementViewed},
		"pl-3": {ID: "p-3", Status: domain.PlacementOfferSent},
	}
	fx.engine.advanceErrFor["p-3"] = domain.ErrInvalidTransition
	fx.partner.placementPages = [][]partner.PlacementDTO{
		{
			// Forward move, applied.
			{ExternalID: "pl-1", Status: "viewed", UpdatedAt: "2026-08-30T10:00:00Z"},
			// Same status, skipped.
			{ExternalID: "pl-2", Status: "viewed", UpdatedAt: "2026-08-30T10:00:00Z"},
			// Rejected by the transition rules.
			{ExternalID: "pl-3", Status: "viewed", UpdatedAt: "2026-08-30T10:00:00Z"},
			// Unknown locally.
			{ExternalID: "pl-9", Status: "hired", UpdatedAt: "2026-08-30T10:00:00Z"},
		},
	}

	fx.syncer.RunPlacementsSync(context.Background())

	require.Len(t, fx.runs.finished, 1)
	run := fx.runs.finished[0]
	assert.Equal(t, domain.SyncRunCompleted, run.Status)
	assert.Equal(t, 1, run.PlacementsUpdated)
	assert.Equal(t, 2, run.ErrorsCount)
	assert.Equal(t, []string{"p-1:viewed"}, fx.engine.advanced)
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	fx := newSyncerFixture(config.SyncConfig{})

	release := make(chan struct{})
	entered := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		fx.syncer.runKind(context.Background(), domain.SyncKindJobs, func(context.Context, *domain.SyncRun) {
			close(entered)
			<-release
		})
	}()

	<-entered
	// Second tick while the first is in flight must not open a run.
	fx.syncer.RunJobsSync(context.Background())
	close(release)
	wg.Wait()

	fx.runs.mu.Lock()
	defer fx.runs.mu.Unlock()
	assert.Len(t, fx.runs.started, 1)
	assert.Len(t, fx.runs.finished, 1)
}
