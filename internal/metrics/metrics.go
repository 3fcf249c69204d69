// Package metrics exposes Prometheus collectors for sync, enrichment,
// scoring and webhook delivery.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the service registers.
type Metrics struct {
	SyncRuns           *prometheus.CounterVec
	SyncItems          *prometheus.CounterVec
	SyncDuration       *prometheus.HistogramVec
	Enrichments        *prometheus.CounterVec
	MatchesScored      prometheus.Counter
	MatchRecommended   *prometheus.CounterVec
	WebhookDeliveries  *prometheus.CounterVec
	WebhookAttemptTime prometheus.Histogram
	PartnerRequests    *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
}

// New creates and registers all collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchsync_sync_runs_total",
			Help: "Sync runs by kind and final status.",
		}, []string{"kind", "status"}),
		SyncItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchsync_sync_items_total",
			Help: "Items processed by sync runs.",
		}, []string{"kind", "outcome"}),
		SyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matchsync_sync_duration_seconds",
			Help:    "Wall time of sync runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"kind"}),
		Enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchsync_enrichments_total",
			Help: "Enrichment results by entity and status.",
		}, []string{"entity", "status"}),
		MatchesScored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchsync_matches_scored_total",
			Help: "Candidate/job pairs scored.",
		}),
		MatchRecommended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchsync_match_recommendations_total",
			Help: "Stored matches by recommendation tier.",
		}, []string{"recommendation"}),
		WebhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchsync_webhook_deliveries_total",
			Help: "Webhook delivery attempts by outcome.",
		}, []string{"outcome"}),
		WebhookAttemptTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "matchsync_webhook_attempt_seconds",
			Help:    "Duration of webhook POST attempts.",
			Buckets: prometheus.DefBuckets,
		}),
		PartnerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchsync_partner_requests_total",
			Help: "Partner API requests by operation and result kind.",
		}, []string{"operation", "kind"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchsync_enrichment_cache_lookups_total",
			Help: "Enrichment cache lookups by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.SyncRuns, m.SyncItems, m.SyncDuration, m.Enrichments,
		m.MatchesScored, m.MatchRecommended, m.WebhookDeliveries,
		m.WebhookAttemptTime, m.PartnerRequests, m.CacheLookups,
	)
	return m
}

// NewNop returns metrics bound to a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
