// Package reputation resolves IP addresses to 0-100 risk scores through
// a TTL cache backed by an ordered chain of external providers.
package reputation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"telemetry-service/internal/metrics"
	"telemetry-service/internal/models"
	"telemetry-service/internal/repository"
)

// SourceNone marks a record that no provider could score.
const SourceNone = "none"

// Resolver serves cached scores while they are fresh and walks the
// provider chain in priority order on a miss or an expired record.
// Concurrent refreshes of the same IP are allowed; the upsert is an
// idempotent overwrite, so the last writer wins.
type Resolver struct {
	store   repository.ReputationRepository
	sources []Source
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

func NewResolver(store repository.ReputationRepository, sources []Source, ttl time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:   store,
		sources: sources,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// Resolve returns the reputation score for ip. Provider errors,
// timeouts and missing credentials all degrade to the next provider;
// when the whole chain fails the score defaults to 0, source "none".
// The record is upserted on every refresh and never deleted.
func (r *Resolver) Resolve(ctx context.Context, ip string) int {
	if ip == "" {
		return 0
	}

	now := r.now().UTC()

	cached, err := r.store.Get(ctx, ip)
	if err == nil && cached.Fresh(now, r.ttl) {
		metrics.ReputationCacheHits.Inc()
		return cached.Score
	}

	score, source := r.fetch(ctx, ip)

	rec := &models.ReputationRecord{
		IP:        ip,
		Score:     score,
		Source:    source,
		UpdatedAt: now,
	}
	if err := r.store.Upsert(ctx, rec); err != nil {
		r.logger.Warn("failed to cache reputation record",
			zap.String("ip", ip),
			zap.Error(err))
	}

	return score
}

// fetch walks the provider chain, stopping at the first configured
// source that yields a usable result.
func (r *Resolver) fetch(ctx context.Context, ip string) (int, string) {
	for _, src := range r.sources {
		if !src.Configured() {
			continue
		}
		metrics.ReputationProviderAttempts.WithLabelValues(src.Name()).Inc()
		score, ok, err := src.Attempt(ctx, ip)
		if err != nil {
			r.logger.Debug("reputation provider failed",
				zap.String("provider", src.Name()),
				zap.String("ip", ip),
				zap.Error(err))
			continue
		}
		if ok {
			return score, src.Name()
		}
	}
	return 0, SourceNone
}
