package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/talentbridge/matchsync/internal/logger"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 60 * time.Second
	defaultIdleTimeout  = 120 * time.Second
	healthCheckTimeout  = 2 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port    int
	Name    string
	Version string
	Debug   bool
}

// Server wraps the gin engine and its http.Server.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	logger logger.Logger
}

// NewServer builds the HTTP server with all routes registered.
func NewServer(
	cfg ServerConfig,
	handler *Handler,
	registry *prometheus.Registry,
	db *sqlx.DB,
	redisClient *redis.Client,
	log logger.Logger,
) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))

	engine.GET("/health", healthHandler(cfg, db, redisClient))
	engine.GET("/metrics", gin.WrapH(
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	RegisterRoutes(engine, handler)

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      engine,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
			IdleTimeout:  defaultIdleTimeout,
		},
		logger: log,
	}
}

// RegisterRoutes mounts the /api/v1 routes on the given engine.
func RegisterRoutes(engine *gin.Engine, handler *Handler) {
	v1 := engine.Group("/api/v1")

	v1.GET("/stats", handler.GetStats)
	v1.GET("/sync-runs", handler.ListSyncRuns)

	webhooks := v1.Group("/webhooks")
	webhooks.POST("", handler.CreateSubscription)
	webhooks.GET("/:id", handler.GetSubscription)
	webhooks.DELETE("/:id", handler.DeleteSubscription)

	jobs := v1.Group("/jobs")
	jobs.POST("/:id/enrich", handler.EnrichJob)
	jobs.POST("/:id/match", handler.MatchJobNow)
	jobs.GET("/:id/matches", handler.ListJobMatches)

	candidates := v1.Group("/candidates")
	candidates.POST("", handler.IngestCandidate)
	candidates.PUT("/:id/resume", handler.UpdateCandidateResume)
	candidates.POST("/:id/enrich", handler.EnrichCandidate)
	candidates.POST("/:id/match", handler.MatchCandidateNow)

	v1.POST("/matches/rebuild", handler.RebuildMatches)
	v1.PUT("/placements/:id/status", handler.UpdatePlacementStatus)
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", logger.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func healthHandler(cfg ServerConfig, db *sqlx.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		health := gin.H{
			"status":  "healthy",
			"service": cfg.Name,
			"version": cfg.Version,
		}

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				status = http.StatusServiceUnavailable
				health["status"] = "degraded"
				health["database"] = err.Error()
			}
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				status = http.StatusServiceUnavailable
				health["status"] = "degraded"
				health["redis"] = err.Error()
			}
		}
		c.JSON(status, health)
	}
}

// requestLogger logs each request with its latency and status.
func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("request", fields...)
			return
		}
		log.Info("request", fields...)
	}
}
