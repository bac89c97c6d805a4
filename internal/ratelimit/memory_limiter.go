package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryLimiter is an in-process sliding-window limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	now     clockFunc
	log     *slog.Logger
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{
		buckets: make(map[string][]time.Time),
		now:     time.Now,
		log:     log,
	}
}

// Check enforces a sliding-window limit for the provided key.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := m.now()
	windowStart := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	reqs := keepRecent(m.buckets[key], windowStart)

	allowed := len(reqs) < limit
	if allowed {
		reqs = append(reqs, now)
	}
	m.buckets[key] = reqs

	remaining := limit - len(reqs)
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now.Add(window)
	if len(reqs) > 0 {
		resetAt = reqs[0].Add(window)
	}

	result := &Result{Allowed: allowed, Remaining: remaining, ResetAt: resetAt}
	if !allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}

// Cleanup removes buckets that have been inactive for more than maxAge.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, reqs := range m.buckets {
		if len(reqs) == 0 || reqs[len(reqs)-1].Before(cutoff) {
			delete(m.buckets, key)
			removed++
		}
	}
	return removed
}

func keepRecent(reqs []time.Time, windowStart time.Time) []time.Time {
	firstIdx := 0
	for firstIdx < len(reqs) && reqs[firstIdx].Before(windowStart) {
		firstIdx++
	}

	if firstIdx == 0 {
		return reqs
	}

	copy(reqs, reqs[firstIdx:])
	return reqs[:len(reqs)-firstIdx]
}
