package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultLeaseKey is shared by every engine instance sweeping the same store.
const DefaultLeaseKey = "tapcoin:sweep:lease"

// Lease elects a single sweeper per tick across instances.
type Lease interface {
	// Acquire returns a release func when the lease was won, or nil when another holder has it.
	Acquire(ctx context.Context) (release func(), err error)
}

// LockClient is the subset of pkg/redis the lease needs.
type LockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key, token string) (bool, error)
}

// RedisLease is a SET NX PX lock released only by the holder that set it.
type RedisLease struct {
	client LockClient
	key    string
	ttl    time.Duration
	log    *slog.Logger
}

func NewRedisLease(client LockClient, key string, ttl time.Duration, log *slog.Logger) *RedisLease {
	if key == "" {
		key = DefaultLeaseKey
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisLease{client: client, key: key, ttl: ttl, log: log}
}

func (l *RedisLease) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire sweep lease: %w", err)
	}
	if !ok {
		return nil, nil
	}

	return func() {
		// The holder may have outlived the TTL; never delete someone else's lease.
		if _, err := l.client.DeleteIfEquals(context.Background(), l.key, token); err != nil {
			l.log.Error("failed to release sweep lease", slog.String("key", l.key), slog.Any("error", err))
		}
	}, nil
}

// LocalLease always wins. Single-instance deployments use it.
type LocalLease struct{}

func (LocalLease) Acquire(context.Context) (func(), error) {
	return func() {}, nil
}
