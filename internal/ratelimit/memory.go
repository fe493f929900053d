package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start int64
	count int
}

// MemoryLimiter keeps one (window-start, count) pair per key. The
// counter resets whenever the observed minute boundary moves past the
// stored one. State lives for the process lifetime; only window
// rollover clears a bucket.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]window),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, quota int) error {
	now := l.now().Unix()
	minute := now - (now % 60)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || w.start != minute {
		w = window{start: minute}
	}
	w.count++
	l.windows[key] = w

	if w.count > quota {
		return ErrRateLimitExceeded
	}
	return nil
}
