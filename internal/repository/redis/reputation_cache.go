package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"telemetry-service/internal/client"
	"telemetry-service/internal/models"
	"telemetry-service/internal/repository"
	"telemetry-service/internal/util"
)

const reputationPrefix = "ip_rep:"

// ReputationCache stores reputation records as Redis hashes keyed by IP.
// Records are overwritten in place; no key-level TTL is set because the
// freshness check belongs to the resolver, and a stale record is still
// the refresh baseline.
type ReputationCache struct {
	client *client.RedisClient
}

func NewReputationCache(redisClient *client.RedisClient) *ReputationCache {
	return &ReputationCache{client: redisClient}
}

func (c *ReputationCache) Get(ctx context.Context, ip string) (*models.ReputationRecord, error) {
	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := reputationPrefix + ip
	fields, err := c.client.HGetAll(opCtx, key)
	if err != nil {
		util.Error("Failed to read reputation record",
			zap.String("ip", ip),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read reputation record: %w", err)
	}
	if len(fields) == 0 {
		return nil, repository.ErrNotFound
	}

	score, err := strconv.Atoi(fields["score"])
	if err != nil {
		return nil, fmt.Errorf("invalid reputation score for %s: %w", ip, err)
	}
	updatedUnix, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid reputation timestamp for %s: %w", ip, err)
	}

	return &models.ReputationRecord{
		IP:        ip,
		Score:     score,
		Source:    fields["source"],
		UpdatedAt: time.Unix(updatedUnix, 0).UTC(),
	}, nil
}

func (c *ReputationCache) Upsert(ctx context.Context, rec *models.ReputationRecord) error {
	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := reputationPrefix + rec.IP
	err := c.client.HSet(opCtx, key,
		"score", strconv.Itoa(rec.Score),
		"source", rec.Source,
		"updated_at", strconv.FormatInt(rec.UpdatedAt.Unix(), 10))
	if err != nil {
		util.Error("Failed to upsert reputation record",
			zap.String("ip", rec.IP),
			zap.Error(err))
		return fmt.Errorf("failed to upsert reputation record: %w", err)
	}

	util.Debug("Reputation record upserted",
		zap.String("ip", rec.IP),
		zap.Int("score", rec.Score),
		zap.String("source", rec.Source))

	return nil
}
