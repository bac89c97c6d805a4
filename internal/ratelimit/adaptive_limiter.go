package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rateLimitChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapcoin_ratelimit_checks_total",
		Help: "Total number of rate limit checks by backend and result.",
	}, []string{"backend", "result"})

	rateLimitRedisErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tapcoin_ratelimit_redis_errors_total",
		Help: "Total number of Redis errors encountered by the limiter.",
	})
)

// AdaptiveLimiter delegates to a primary (Redis) limiter and falls back to
// a stricter in-memory limiter when the primary fails.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
}

var _ Limiter = (*AdaptiveLimiter)(nil)

func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) *AdaptiveLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{
		primary:  primary,
		fallback: fallback,
		log:      log,
	}
}

// Check evaluates the limit using the primary backend, falling back to memory
// at half the limit on errors.
func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	result, err := a.primary.Check(ctx, key, limit, window)
	if err == nil {
		rateLimitChecksTotal.WithLabelValues("primary", resultLabel(result.Allowed)).Inc()
		if !result.Allowed {
			return result, ErrLimitExceeded
		}
		return result, nil
	}
	if err == ErrLimitExceeded {
		rateLimitChecksTotal.WithLabelValues("primary", resultLabel(false)).Inc()
		return result, err
	}

	rateLimitRedisErrorsTotal.Inc()
	a.log.Warn("primary limiter failed, falling back to in-memory", slog.String("key", key), slog.Any("error", err))

	fallbackLimit := limit / 2
	if fallbackLimit <= 0 {
		fallbackLimit = 1
	}

	fallbackResult, fallbackErr := a.fallback.Check(ctx, key, fallbackLimit, window)
	if fallbackResult != nil {
		rateLimitChecksTotal.WithLabelValues("fallback", resultLabel(fallbackResult.Allowed)).Inc()
	}
	if fallbackErr != nil {
		return fallbackResult, fallbackErr
	}
	if !fallbackResult.Allowed {
		return fallbackResult, ErrLimitExceeded
	}
	return fallbackResult, nil
}

func resultLabel(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "rejected"
}
