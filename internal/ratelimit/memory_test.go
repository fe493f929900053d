package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_QuotaEnforced(t *testing.T) {
	l := NewMemoryLimiter()
	base := time.Date(2026, 8, 30, 12, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return base }

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Allow(ctx, "tenant-a", 5))
	}

	err := l.Allow(ctx, "tenant-a", 5)
	require.ErrorIs(t, err, ErrRateLimitExceeded)
}

func TestMemoryLimiter_WindowReset(t *testing.T) {
	l := NewMemoryLimiter()
	base := time.Date(2026, 8, 30, 12, 0, 59, 0, time.UTC)
	l.now = func() time.Time { return base }

	ctx := context.Background()
	require.NoError(t, l.Allow(ctx, "tenant-a", 1))
	require.ErrorIs(t, l.Allow(ctx, "tenant-a", 1), ErrRateLimitExceeded)

	// Two seconds later the minute boundary has passed.
	l.now = func() time.Time { return base.Add(2 * time.Second) }
	require.NoError(t, l.Allow(ctx, "tenant-a", 1))
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter()
	base := time.Date(2026, 8, 30, 12, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return base }

	ctx := context.Background()
	require.NoError(t, l.Allow(ctx, "tenant-a", 1))
	require.ErrorIs(t, l.Allow(ctx, "tenant-a", 1), ErrRateLimitExceeded)
	require.NoError(t, l.Allow(ctx, "tenant-b", 1))
}

func TestMemoryLimiter_DeniedRequestStillCounts(t *testing.T) {
	l := NewMemoryLimiter()
	base := time.Date(2026, 8, 30, 12, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return base }

	ctx := context.Background()
	require.NoError(t, l.Allow(ctx, "tenant-a", 2))
	require.NoError(t, l.Allow(ctx, "tenant-a", 2))
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, l.Allow(ctx, "tenant-a", 2), ErrRateLimitExceeded)
	}
}
