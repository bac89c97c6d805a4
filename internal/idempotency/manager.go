// Package idempotency runs an operation at most once per key and replays its
// stored result to later callers.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

var ErrRequestInProgress = errors.New("request with this key is already in progress")

const defaultLockTTL = 5 * time.Minute

type Manager struct {
	store   Store
	lockTTL time.Duration
	log     *slog.Logger
}

func NewManager(store Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: store, lockTTL: defaultLockTTL, log: log}
}

// Execute returns the stored result for key if one exists. Otherwise it runs fn
// under the key's lock and stores the result for ttl. A failed fn stores
// nothing, so the caller may retry. The bool reports a replayed result.
func Execute[T any](ctx context.Context, m *Manager, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T
	if fn == nil {
		return zero, false, errors.New("operation fn cannot be nil")
	}

	if out, ok, err := replay[T](ctx, m, key); err != nil || ok {
		return out, ok, err
	}

	locked, err := m.store.Lock(ctx, key, m.lockTTL)
	if err != nil {
		return zero, false, err
	}
	if !locked {
		// The holder may have finished between our read and lock attempt.
		if out, ok, err := replay[T](ctx, m, key); err != nil || ok {
			return out, ok, err
		}
		return zero, false, ErrRequestInProgress
	}
	keepLock := false
	defer func() {
		if keepLock {
			return
		}
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
			m.log.Warn("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	// Re-check under the lock.
	if out, ok, err := replay[T](ctx, m, key); err != nil || ok {
		return out, ok, err
	}

	out, err := fn(ctx)
	if err != nil {
		return zero, false, err
	}

	data, err := json.Marshal(out)
	if err != nil {
		return zero, false, err
	}
	if err := m.store.Set(context.WithoutCancel(ctx), key, &Record{Response: data}, ttl); err != nil {
		// The operation already happened; hold the lock until it expires so retries cannot repeat it.
		keepLock = true
		m.log.Error("failed to store idempotent result", slog.String("key", key), slog.Any("error", err))
	}
	return out, false, nil
}

func replay[T any](ctx context.Context, m *Manager, key string) (T, bool, error) {
	var out T
	rec, err := m.store.Get(ctx, key)
	if err != nil || rec == nil {
		return out, false, err
	}
	if err := json.Unmarshal(rec.Response, &out); err != nil {
		return out, false, err
	}
	return out, true, nil
}
