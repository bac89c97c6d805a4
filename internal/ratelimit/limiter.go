// Package ratelimit throttles per-account operations with a sliding window.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole seconds until the window frees up, at least one.
func (r *Result) RetryAfter(now time.Time) int {
	if r == nil {
		return 1
	}
	secs := int(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter describes a rate-limiting strategy.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// ErrLimitExceeded indicates the rate limit has been reached for the key.
var ErrLimitExceeded = errors.New("rate limit exceeded")

type clockFunc func() time.Time
