// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_batches_accepted_total",
		Help: "Batches admitted by the ingestion gate.",
	})
	BatchesDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_batches_duplicate_total",
		Help: "Batches rejected as idempotent duplicates.",
	})
	BatchesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_batches_rejected_total",
		Help: "Batches rejected by validation.",
	})
	EventsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_events_total",
		Help: "Events appended to the event store.",
	})
	RateLimitDenials = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_rate_limit_denials_total",
		Help: "Requests denied by the per-tenant rate limiter.",
	})
	IncidentsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "correlation_incidents_upserted_total",
		Help: "Incident aggregates created or updated, by kind.",
	}, []string{"kind"})
	ReputationProviderAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_provider_attempts_total",
		Help: "External reputation provider lookups, by provider.",
	}, []string{"provider"})
	ReputationCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reputation_cache_hits_total",
		Help: "Reputation resolutions served from a fresh cached record.",
	})
	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dispatched_total",
		Help: "Notification hand-offs, by delivery status.",
	}, []string{"status"})
)
