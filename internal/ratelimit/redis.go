package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"telemetry-service/internal/client"
	"telemetry-service/internal/util"
)

const rateLimitPrefix = "rl:"

// bucketExpiry outlives the window so that clock skew between
// instances cannot drop a live bucket early.
const bucketExpiry = 70 * time.Second

// RedisLimiter counts admissions in a shared store so that every
// instance sees the same bucket. The bucket key embeds the
// floor-to-minute epoch. A Redis failure degrades to the in-process
// fallback rather than rejecting traffic.
type RedisLimiter struct {
	client   *client.RedisClient
	fallback *MemoryLimiter
	now      func() time.Time
}

func NewRedisLimiter(redisClient *client.RedisClient) *RedisLimiter {
	return &RedisLimiter{
		client:   redisClient,
		fallback: NewMemoryLimiter(),
		now:      time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, quota int) error {
	bucket := fmt.Sprintf("%s%s:%d", rateLimitPrefix, key, l.now().Unix()/60)

	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	count, err := l.client.IncrWithExpire(opCtx, bucket, bucketExpiry)
	if err != nil {
		util.Warn("Redis rate limit check failed, falling back to memory",
			zap.String("key", key),
			zap.Error(err))
		return l.fallback.Allow(ctx, key, quota)
	}

	if count > int64(quota) {
		return ErrRateLimitExceeded
	}
	return nil
}
