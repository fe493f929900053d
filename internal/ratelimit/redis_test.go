package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"telemetry-service/internal/client"
)

func newTestRedisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewRedisLimiter(client.NewRedisClientFromRaw(rdb))
	return l, mr
}

func TestRedisLimiter_QuotaEnforced(t *testing.T) {
	l, _ := newTestRedisLimiter(t)
	base := time.Date(2026, 8, 30, 12, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return base }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow(ctx, "tenant-a", 3))
	}
	require.ErrorIs(t, l.Allow(ctx, "tenant-a", 3), ErrRateLimitExceeded)
}

func TestRedisLimiter_NewWindowAllows(t *testing.T) {
	l, _ := newTestRedisLimiter(t)
	base := time.Date(2026, 8, 30, 12, 0, 59, 0, time.UTC)
	l.now = func() time.Time { return base }

	ctx := context.Background()
	require.NoError(t, l.Allow(ctx, "tenant-a", 1))
	require.ErrorIs(t, l.Allow(ctx, "tenant-a", 1), ErrRateLimitExceeded)

	l.now = func() time.Time { return base.Add(2 * time.Second) }
	require.NoError(t, l.Allow(ctx, "tenant-a", 1))
}

func TestRedisLimiter_BucketHasExpiry(t *testing.T) {
	l, mr := newTestRedisLimiter(t)
	base := time.Date(2026, 8, 30, 12, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return base }

	require.NoError(t, l.Allow(context.Background(), "tenant-a", 10))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	ttl := mr.TTL(keys[0])
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, bucketExpiry)
}

func TestRedisLimiter_FallsBackOnRedisFailure(t *testing.T) {
	l, mr := newTestRedisLimiter(t)
	base := time.Date(2026, 8, 30, 12, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return base }
	l.fallback.now = l.now

	mr.Close()

	// Requests are still admitted and counted in process.
	ctx := context.Background()
	require.NoError(t, l.Allow(ctx, "tenant-a", 1))
	require.ErrorIs(t, l.Allow(ctx, "tenant-a", 1), ErrRateLimitExceeded)
}
