package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/talentbridge/matchsync/internal/config"
	"github.com/talentbridge/matchsync/internal/logger"
)

// staleRunCutoff marks running rows older than this as failed at
// startup. Such rows can only come from a crashed process.
const staleRunCutoff = 6 * time.Hour

// Scheduler drives the syncer on its configured cadences: job import
// every few hours, candidate submission and placement reconciliation
// once a day each.
type Scheduler struct {
	syncer *Syncer
	cron   *cron.Cron
	cfg    config.SyncConfig
	logger logger.Logger

	cancel context.CancelFunc
}

// NewScheduler creates a scheduler for the given syncer.
func NewScheduler(s *Syncer, cfg config.SyncConfig, log logger.Logger) *Scheduler {
	return &Scheduler{
		syncer: s,
		cron:   cron.New(),
		cfg:    cfg,
		logger: log,
	}
}

// Start registers the cron entries and begins ticking. Stale running
// runs left behind by a crash are swept before the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	swept, err := s.syncer.runs.StaleRunning(ctx, staleRunCutoff)
	if err != nil {
		s.logger.Error("failed to sweep stale sync runs", logger.Error(err))
	} else if swept > 0 {
		s.logger.Warn("marked stale sync runs as failed", logger.Int64("count", swept))
	}

	entries := []struct {
		spec string
		name string
		task func(context.Context)
	}{
		{fmt.Sprintf("@every %dh", s.cfg.IntervalJobsHours), "jobs", s.syncer.RunJobsSync},
		{fmt.Sprintf("0 %d * * *", s.cfg.HourCandidates), "candidates", s.syncer.RunCandidateSubmission},
		{fmt.Sprintf("0 %d * * *", s.cfg.HourPlacements), "placements", s.syncer.RunPlacementsSync},
	}

	for _, e := range entries {
		task := e.task
		if _, addErr := s.cron.AddFunc(e.spec, func() { task(ctx) }); addErr != nil {
			return fmt.Errorf("failed to schedule %s sync: %w", e.name, addErr)
		}
		s.logger.Info("sync task scheduled",
			logger.String("kind", e.name),
			logger.String("schedule", e.spec))
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for any in-flight run to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("sync scheduler stopped")
}
