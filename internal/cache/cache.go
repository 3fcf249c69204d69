// Package cache holds the Redis enrichment cache. Enrichment is a pure
// function of the input text, so results are keyed by a content hash
// and reused until the text changes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/talentbridge/matchsync/internal/config"
	"github.com/talentbridge/matchsync/internal/domain"
)

const connectionTimeout = 2 * time.Second

// NewRedisClient creates a Redis client and verifies the connection.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if pingErr := client.Ping(pingCtx).Err(); pingErr != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", pingErr)
	}
	return client, nil
}

// EnrichmentCache stores enrichment results keyed by input text hash.
type EnrichmentCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEnrichmentCache creates a cache with the configured TTL.
func NewEnrichmentCache(client *redis.Client, ttl time.Duration) *EnrichmentCache {
	return &EnrichmentCache{client: client, ttl: ttl}
}

// Key derives the cache key for a kind of enrichment over a text.
func Key(kind, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "enrich:" + kind + ":" + hex.EncodeToString(sum[:])
}

// GetJob returns a cached job enrichment, or nil on miss.
func (c *EnrichmentCache) GetJob(ctx context.Context, text string) (*domain.JobEnrichment, error) {
	raw, err := c.get(ctx, Key("job", text))
	if err != nil || raw == nil {
		return nil, err
	}
	var e domain.JobEnrichment
	if unmarshalErr := json.Unmarshal(raw, &e); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal cached job enrichment: %w", unmarshalErr)
	}
	return &e, nil
}

// SetJob stores a job enrichment. Error records are never cached so a
// transient failure does not stick for the TTL.
func (c *EnrichmentCache) SetJob(ctx context.Context, text string, e *domain.JobEnrichment) error {
	if e.Status != domain.EnrichmentSuccess {
		return nil
	}
	return c.set(ctx, Key("job", text), e)
}

// GetCandidate returns a cached candidate enrichment, or nil on miss.
func (c *EnrichmentCache) GetCandidate(ctx context.Context, text string) (*domain.CandidateEnrichment, error) {
	raw, err := c.get(ctx, Key("candidate", text))
	if err != nil || raw == nil {
		return nil, err
	}
	var e domain.CandidateEnrichment
	if unmarshalErr := json.Unmarshal(raw, &e); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal cached candidate enrichment: %w", unmarshalErr)
	}
	return &e, nil
}

// SetCandidate stores a candidate enrichment.
func (c *EnrichmentCache) SetCandidate(ctx context.Context, text string, e *domain.CandidateEnrichment) error {
	if e.Status != domain.EnrichmentSuccess {
		return nil
	}
	return c.set(ctx, Key("candidate", text), e)
}

func (c *EnrichmentCache) get(ctx context.Context, key string) ([]byte, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return raw, nil
}

func (c *EnrichmentCache) set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
		return fmt.Errorf("cache set: %w", setErr)
	}
	return nil
}
