package repository

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
)

const (
	aggregateKey = "tapcoin:aggregate"

	fieldCoins = "total_coins"
	fieldTaps  = "total_taps"
	fieldUsers = "total_users"
)

// HashClient is the subset of the Redis client the aggregate needs.
type HashClient interface {
	TxPipeline() goredis.Pipeliner
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// RedisAggregate keeps the totals in one hash and applies deltas with HINCRBY
// inside MULTI/EXEC.
type RedisAggregate struct {
	client HashClient
	key    string
}

var _ AggregateCounter = (*RedisAggregate)(nil)

func NewRedisAggregate(client HashClient) *RedisAggregate {
	return &RedisAggregate{client: client, key: aggregateKey}
}

func (r *RedisAggregate) Add(ctx context.Context, d Delta) error {
	if d.IsZero() {
		return nil
	}

	pipe := r.client.TxPipeline()
	if d.Coins != 0 {
		pipe.HIncrBy(ctx, r.key, fieldCoins, d.Coins)
	}
	if d.Taps != 0 {
		pipe.HIncrBy(ctx, r.key, fieldTaps, d.Taps)
	}
	if d.Users != 0 {
		pipe.HIncrBy(ctx, r.key, fieldUsers, d.Users)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("apply aggregate delta: %w", err)
	}
	return nil
}

func (r *RedisAggregate) Snapshot(ctx context.Context) (Aggregate, error) {
	fields, err := r.client.HGetAll(ctx, r.key)
	if err != nil {
		return Aggregate{}, fmt.Errorf("read aggregate: %w", err)
	}

	var agg Aggregate
	for name, dst := range map[string]*int64{
		fieldCoins: &agg.TotalCoins,
		fieldTaps:  &agg.TotalTaps,
		fieldUsers: &agg.TotalUsers,
	} {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Aggregate{}, fmt.Errorf("parse aggregate field %s: %w", name, err)
		}
		*dst = v
	}

	return agg, nil
}
