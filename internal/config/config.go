package config

import "time"

// Default configuration values.
const (
	defaultServiceName       = "matchsync"
	defaultServiceVersion    = "1.0.0"
	defaultServicePort       = 8084
	defaultConcurrency       = 10
	defaultTopKCandidates    = 200
	defaultPartnerBaseURL    = "https://sandbox.api.jobboard.example"
	defaultPartnerEnv        = "sandbox"
	defaultSyncJobsHours     = 2
	defaultSyncHourCand      = 10
	defaultSyncHourPlace     = 17
	defaultMaxJobsPerSync    = 1000
	defaultMaxCandPerSync    = 500
	defaultJobPageSize       = 100
	defaultPlacementPageSize = 500
	defaultRequestTimeoutSec = 30
	defaultMaxRetries        = 3
	defaultRetryBackoff      = 1.5
	defaultMinMatchScore     = 0.70
	defaultWeightSkill       = 0.40
	defaultWeightSeniority   = 0.30
	defaultWeightExperience  = 0.15
	defaultWeightCulture     = 0.10
	defaultWeightGrowth      = 0.05
	defaultWebhookAttempts   = 3
	defaultWebhookTimeoutSec = 10
	defaultWebhookPollSec    = 5
	defaultDBHost            = "localhost"
	defaultDBPort            = 5432
	defaultDBUser            = "postgres"
	defaultDBName            = "matchsync"
	defaultDBSSLMode         = "disable"
	defaultDBMaxConns        = 25
	defaultDBMaxIdleConns    = 5
	defaultRedisURL          = "localhost:6379"
	defaultCacheTTLHours     = 24
	defaultLogLevel          = "info"
	defaultLogFormat         = "json"
	defaultCurrency          = "USD"
)

// Config holds all configuration for the matchsync service.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Partner  PartnerConfig  `yaml:"partner"`
	Sync     SyncConfig     `yaml:"sync"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Port        int    `env:"MATCHSYNC_PORT"        yaml:"port"`
	Concurrency int    `env:"MATCHSYNC_CONCURRENCY" yaml:"concurrency"`
	TopK        int    `env:"MATCHSYNC_TOP_K"       yaml:"top_k"`
}

// PartnerConfig holds credentials and limits for the job-board partner.
type PartnerConfig struct {
	APIKey            string        `env:"PARTNER_API_KEY"         yaml:"api_key"`
	APISecret         string        `env:"PARTNER_API_SECRET"      yaml:"api_secret"`
	BaseURL           string        `env:"PARTNER_API_BASE_URL"    yaml:"base_url"`
	Environment       string        `env:"PARTNER_ENV"             yaml:"environment"` // sandbox | production
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	RequestTimeoutSec int           `env:"REQUEST_TIMEOUT_SECONDS" yaml:"request_timeout_seconds"`
	MaxRetries        int           `env:"MAX_RETRIES"             yaml:"max_retries"`
	RetryBackoff      float64       `env:"RETRY_BACKOFF"           yaml:"retry_backoff"`
	DefaultCurrency   string        `env:"PARTNER_DEFAULT_CURRENCY" yaml:"default_currency"`
}

// SyncConfig holds sync cadences and batch limits.
type SyncConfig struct {
	IntervalJobsHours int `env:"SYNC_INTERVAL_JOBS_HOURS" yaml:"interval_jobs_hours"`
	HourCandidates    int `env:"SYNC_HOUR_CANDIDATES"     yaml:"hour_candidates"`
	HourPlacements    int `env:"SYNC_HOUR_PLACEMENTS"     yaml:"hour_placements"`
	MaxJobsPerSync    int `env:"MAX_JOBS_PER_SYNC"        yaml:"max_jobs_per_sync"`
	MaxCandidates     int `env:"MAX_CANDIDATES_PER_SYNC"  yaml:"max_candidates_per_sync"`
	JobPageSize       int `yaml:"job_page_size"`
	PlacementPageSize int `yaml:"placement_page_size"`
}

// ScoringConfig holds match scoring weights and thresholds.
// Weights must sum to 1.0.
type ScoringConfig struct {
	MinMatchScore    float64 `env:"MIN_MATCH_SCORE"   yaml:"min_match_score"`
	WeightSkill      float64 `env:"WEIGHT_SKILL"      yaml:"weight_skill"`
	WeightSeniority  float64 `env:"WEIGHT_SENIORITY"  yaml:"weight_seniority"`
	WeightExperience float64 `env:"WEIGHT_EXPERIENCE" yaml:"weight_experience"`
	WeightCulture    float64 `env:"WEIGHT_CULTURE"    yaml:"weight_culture"`
	WeightGrowth     float64 `env:"WEIGHT_GROWTH"     yaml:"weight_growth"`
}

// WebhookConfig holds webhook delivery defaults.
type WebhookConfig struct {
	DefaultMaxAttempts    int           `env:"WEBHOOK_DEFAULT_MAX_ATTEMPTS"    yaml:"default_max_attempts"`
	DefaultTimeoutSeconds int           `env:"WEBHOOK_DEFAULT_TIMEOUT_SECONDS" yaml:"default_timeout_seconds"`
	PollInterval          time.Duration `yaml:"poll_interval"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string        `env:"POSTGRES_HOST"     yaml:"host"`
	Port            int           `env:"POSTGRES_PORT"     yaml:"port"`
	User            string        `env:"POSTGRES_USER"     yaml:"user"`
	Password        string        `env:"POSTGRES_PASSWORD" yaml:"password"`
	Database        string        `env:"POSTGRES_DB"       yaml:"database"`
	SSLMode         string        `env:"POSTGRES_SSLMODE"  yaml:"sslmode"`
	MaxConnections  int           `yaml:"max_connections"`
	MaxIdleConns    int           `yaml:"max_idle_connections"`
	ConnMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// RedisConfig holds Redis configuration for the enrichment cache.
type RedisConfig struct {
	URL      string        `env:"REDIS_URL"      yaml:"url"`
	Password string        `env:"REDIS_PASSWORD" yaml:"password"`
	Database int           `yaml:"database"`
	CacheTTL time.Duration `yaml:"enrichment_cache_ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setPartnerDefaults(&cfg.Partner)
	setSyncDefaults(&cfg.Sync)
	setScoringDefaults(&cfg.Scoring)
	setWebhookDefaults(&cfg.Webhook)
	setDatabaseDefaults(&cfg.Database)
	setRedisDefaults(&cfg.Redis)
	setLoggingDefaults(&cfg.Logging)
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultServicePort
	}
	if s.Concurrency == 0 {
		s.Concurrency = defaultConcurrency
	}
	if s.TopK == 0 {
		s.TopK = defaultTopKCandidates
	}
}

func setPartnerDefaults(p *PartnerConfig) {
	if p.BaseURL == "" {
		p.BaseURL = defaultPartnerBaseURL
	}
	if p.Environment == "" {
		p.Environment = defaultPartnerEnv
	}
	if p.RequestTimeoutSec == 0 {
		p.RequestTimeoutSec = defaultRequestTimeoutSec
	}
	if p.RequestTimeout == 0 {
		p.RequestTimeout = time.Duration(p.RequestTimeoutSec) * time.Second
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = defaultMaxRetries
	}
	if p.RetryBackoff == 0 {
		p.RetryBackoff = defaultRetryBackoff
	}
	if p.DefaultCurrency == "" {
		p.DefaultCurrency = defaultCurrency
	}
}

func setSyncDefaults(s *SyncConfig) {
	if s.IntervalJobsHours == 0 {
		s.IntervalJobsHours = defaultSyncJobsHours
	}
	if s.HourCandidates == 0 {
		s.HourCandidates = defaultSyncHourCand
	}
	if s.HourPlacements == 0 {
		s.HourPlacements = defaultSyncHourPlace
	}
	if s.MaxJobsPerSync == 0 {
		s.MaxJobsPerSync = defaultMaxJobsPerSync
	}
	if s.MaxCandidates == 0 {
		s.MaxCandidates = defaultMaxCandPerSync
	}
	if s.JobPageSize == 0 {
		s.JobPageSize = defaultJobPageSize
	}
	if s.PlacementPageSize == 0 {
		s.PlacementPageSize = defaultPlacementPageSize
	}
}

func setScoringDefaults(s *ScoringConfig) {
	if s.MinMatchScore == 0 {
		s.MinMatchScore = defaultMinMatchScore
	}
	if s.WeightSkill == 0 {
		s.WeightSkill = defaultWeightSkill
	}
	if s.WeightSeniority == 0 {
		s.WeightSeniority = defaultWeightSeniority
	}
	if s.WeightExperience == 0 {
		s.WeightExperience = defaultWeightExperience
	}
	if s.WeightCulture == 0 {
		s.WeightCulture = defaultWeightCulture
	}
	if s.WeightGrowth == 0 {
		s.WeightGrowth = defaultWeightGrowth
	}
}

func setWebhookDefaults(w *WebhookConfig) {
	if w.DefaultMaxAttempts == 0 {
		w.DefaultMaxAttempts = defaultWebhookAttempts
	}
	if w.DefaultTimeoutSeconds == 0 {
		w.DefaultTimeoutSeconds = defaultWebhookTimeoutSec
	}
	if w.PollInterval == 0 {
		w.PollInterval = defaultWebhookPollSec * time.Second
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == 0 {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.Database == "" {
		d.Database = defaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}
	if d.MaxConnections == 0 {
		d.MaxConnections = defaultDBMaxConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultDBMaxIdleConns
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = time.Hour
	}
}

func setRedisDefaults(r *RedisConfig) {
	if r.URL == "" {
		r.URL = defaultRedisURL
	}
	if r.CacheTTL == 0 {
		r.CacheTTL = defaultCacheTTLHours * time.Hour
	}
}

func setLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}
	if l.Format == "" {
		l.Format = defaultLogFormat
	}
}
