// Package app wires the service together and manages its lifecycle:
// store connections, the HTTP server, the webhook delivery worker and
// the sync scheduler.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/talentbridge/matchsync/internal/api"
	"github.com/talentbridge/matchsync/internal/cache"
	"github.com/talentbridge/matchsync/internal/config"
	"github.com/talentbridge/matchsync/internal/database"
	"github.com/talentbridge/matchsync/internal/engine"
	"github.com/talentbridge/matchsync/internal/enrich"
	"github.com/talentbridge/matchsync/internal/logger"
	"github.com/talentbridge/matchsync/internal/metrics"
	"github.com/talentbridge/matchsync/internal/partner"
	"github.com/talentbridge/matchsync/internal/scoring"
	"github.com/talentbridge/matchsync/internal/syncer"
	"github.com/talentbridge/matchsync/internal/webhook"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// Options selects which components an App instance runs.
type Options struct {
	ConfigPath string
	Version    string

	// RunServer starts the HTTP API.
	RunServer bool
	// RunWorkers starts the sync scheduler and the webhook delivery
	// worker.
	RunWorkers bool
}

// App holds the wired service.
type App struct {
	cfg         *config.Config
	logger      logger.Logger
	db          *sqlx.DB
	redisClient *redis.Client
	registry    *prometheus.Registry

	server    *api.Server
	scheduler *syncer.Scheduler
	worker    *webhook.Worker

	opts Options
}

// New loads configuration and wires every component.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Version != "" {
		cfg.Service.Version = opts.Version
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	log = log.With(
		logger.String("service", cfg.Service.Name),
		logger.String("version", cfg.Service.Version),
	)

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := database.EnsureSchema(context.Background(), db); err != nil {
		return nil, err
	}

	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		// The cache is an optimization; run without it.
		log.Warn("redis unavailable, enrichment cache disabled", logger.Error(err))
		redisClient = nil
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	jobRepo := database.NewJobRepository(db)
	candidateRepo := database.NewCandidateRepository(db)
	matchRepo := database.NewMatchRepository(db)
	placementRepo := database.NewPlacementRepository(db)
	runRepo := database.NewSyncRunRepository(db)
	webhookRepo := database.NewWebhookRepository(db)
	statsRepo := database.NewStatsRepository(db)

	client, err := partner.NewClient(cfg.Partner, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create partner client: %w", err)
	}

	var enrichCache enrich.Cache
	if redisClient != nil {
		enrichCache = cache.NewEnrichmentCache(redisClient, cfg.Redis.CacheTTL)
	}
	pipeline := enrich.NewPipeline(cfg.Partner.DefaultCurrency, log)
	enricher := enrich.NewService(pipeline, enrichCache, jobRepo, candidateRepo, m, log)

	scorer := scoring.NewScorer(scoring.Weights{
		Skill:      cfg.Scoring.WeightSkill,
		Seniority:  cfg.Scoring.WeightSeniority,
		Experience: cfg.Scoring.WeightExperience,
		Culture:    cfg.Scoring.WeightCulture,
		Growth:     cfg.Scoring.WeightGrowth,
	})

	dispatcher := webhook.NewDispatcher(webhookRepo, log)
	eng := engine.New(jobRepo, candidateRepo, matchRepo, placementRepo,
		client, scorer, dispatcher, m,
		engine.Config{
			Concurrency:    cfg.Service.Concurrency,
			TopK:           cfg.Service.TopK,
			MinSubmitScore: cfg.Scoring.MinMatchScore,
		}, log)

	app := &App{
		cfg:         cfg,
		logger:      log,
		db:          db,
		redisClient: redisClient,
		registry:    registry,
		opts:        opts,
	}

	if opts.RunServer {
		handler := api.NewHandler(jobRepo, candidateRepo, matchRepo,
			webhookRepo, runRepo, statsRepo, enricher, eng, log)
		app.server = api.NewServer(api.ServerConfig{
			Port:    cfg.Service.Port,
			Name:    cfg.Service.Name,
			Version: cfg.Service.Version,
		}, handler, registry, db, redisClient, log)
	}

	if opts.RunWorkers {
		sync := syncer.New(client, jobRepo, placementRepo, runRepo,
			enricher, eng, dispatcher, m, cfg.Sync, cfg.Partner.APIKey, log)
		app.scheduler = syncer.NewScheduler(sync, cfg.Sync, log)
		app.worker = webhook.NewWorker(webhookRepo, webhook.WorkerConfig{
			PollInterval: cfg.Webhook.PollInterval,
		}, m, log)
	}

	return app, nil
}

// Run starts the selected components and blocks until the context is
// cancelled or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() { serverErr <- a.server.Start() }()
	}
	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start sync scheduler: %w", err)
		}
	}
	if a.worker != nil {
		a.worker.Start(ctx)
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}
	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.worker != nil {
		a.worker.Stop()
	}
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("http server shutdown failed", logger.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis client", logger.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", logger.Error(err))
	}
	_ = a.logger.Sync()
	a.logger.Info("shutdown complete")
	return nil
}
