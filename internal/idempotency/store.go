package idempotency

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record is a completed operation's encoded result.
type Record struct {
	Response []byte
}

// Store keeps completed results and per-key locks.
type Store interface {
	Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, record *Record, ttl time.Duration) error
	ReleaseLock(ctx context.Context, key string) error
}

type RedisStore struct {
	client redis.Cmdable
	log    *slog.Logger
}

func NewRedisStore(client redis.Cmdable, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{client: client, log: log}
}

func (s *RedisStore) Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, lockKey(key), 1, lockTTL).Result()
	if err != nil {
		s.log.Error("failed to acquire idempotency lock", slog.String("key", key), slog.Any("error", err))
		return false, err
	}
	return acquired, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	data, err := s.client.Get(ctx, recordKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to fetch idempotency record", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}
	return &Record{Response: data}, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, record *Record, ttl time.Duration) error {
	if record == nil {
		return nil
	}
	if err := s.client.Set(ctx, recordKey(key), record.Response, ttl).Err(); err != nil {
		s.log.Error("failed to store idempotency record", slog.String("key", key), slog.Any("error", err))
		return err
	}
	return nil
}

func (s *RedisStore) ReleaseLock(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, lockKey(key)).Err(); err != nil {
		s.log.Error("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		return err
	}
	return nil
}

func recordKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

func lockKey(key string) string {
	return fmt.Sprintf("idempotency:%s:lock", key)
}

type memoryRecord struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is the single-process Store. Expired records are dropped on read.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	locks   map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryRecord),
		locks:   make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryStore) Lock(_ context.Context, key string, lockTTL time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if until, ok := s.locks[key]; ok && now.Before(until) {
		return false, nil
	}
	s.locks[key] = now.Add(lockTTL)
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	if !rec.expiresAt.IsZero() && !s.now().Before(rec.expiresAt) {
		delete(s.records, key)
		return nil, nil
	}
	return &Record{Response: append([]byte(nil), rec.data...)}, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, record *Record, ttl time.Duration) error {
	if record == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := memoryRecord{data: append([]byte(nil), record.Response...)}
	if ttl > 0 {
		rec.expiresAt = s.now().Add(ttl)
	}
	s.records[key] = rec
	return nil
}

func (s *MemoryStore) ReleaseLock(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.locks, key)
	s.mu.Unlock()
	return nil
}
