package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// RedisLimiter implements Limiter using Redis sorted sets and a sliding window,
// so limits hold across engine instances.
type RedisLimiter struct {
	client redis.Cmdable
	now    clockFunc
	log    *slog.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client redis.Cmdable, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{
		client: client,
		now:    time.Now,
		log:    log,
	}
}

// Check records the attempt and reports whether it fits in the window.
func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("redis client is not configured for rate limiting")
	}

	now := l.now()
	if limit <= 0 {
		return &Result{Allowed: false, Remaining: 0, ResetAt: now.Add(window)}, nil
	}

	windowStart := now.Add(-window)
	redisKey := keyPrefix + key

	cutoff := float64(windowStart.UnixNano()) / float64(time.Millisecond)
	score := float64(now.UnixNano()) / float64(time.Millisecond)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("(%f", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: score, Member: uuid.NewString()})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("rate limiter pipeline failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	count := countCmd.Val()
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= int64(limit),
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}, nil
}
