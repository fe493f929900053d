// Package ratelimit provides per-key request admission over a fixed
// one-minute window. Two interchangeable strategies exist: a Redis
// counter for multi-instance deployments and an in-process map that is
// only correct when a single process serves the key space.
package ratelimit

import (
	"context"
	"errors"
)

// ErrRateLimitExceeded signals that the caller must reject the request
// before any persistence happens. It is retryable in the next window.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Limiter admits or rejects a request under the given per-minute quota.
type Limiter interface {
	Allow(ctx context.Context, key string, quota int) error
}
