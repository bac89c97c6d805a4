package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receipt struct {
	AccountID int64  `json:"account_id"`
	Item      string `json:"item"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client, testLogger()),
	}
}

func TestExecute_RunsOnceAndReplays(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			m := NewManager(store, testLogger())
			ctx := context.Background()
			calls := 0
			fn := func(context.Context) (receipt, error) {
				calls++
				return receipt{AccountID: 7, Item: "fire"}, nil
			}

			out, replayed, err := Execute(ctx, m, "charge-1", time.Hour, fn)
			require.NoError(t, err)
			assert.False(t, replayed)
			assert.Equal(t, receipt{AccountID: 7, Item: "fire"}, out)

			out, replayed, err = Execute(ctx, m, "charge-1", time.Hour, fn)
			require.NoError(t, err)
			assert.True(t, replayed)
			assert.Equal(t, receipt{AccountID: 7, Item: "fire"}, out)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestExecute_FailureIsNotStored(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			m := NewManager(store, testLogger())
			ctx := context.Background()

			_, _, err := Execute(ctx, m, "charge-2", time.Hour, func(context.Context) (receipt, error) {
				return receipt{}, errors.New("ledger unavailable")
			})
			require.Error(t, err)

			out, replayed, err := Execute(ctx, m, "charge-2", time.Hour, func(context.Context) (receipt, error) {
				return receipt{Item: "crown"}, nil
			})
			require.NoError(t, err)
			assert.False(t, replayed)
			assert.Equal(t, "crown", out.Item)
		})
	}
}

func TestExecute_InProgress(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, testLogger())
	ctx := context.Background()

	locked, err := store.Lock(ctx, "charge-3", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	_, _, err = Execute(ctx, m, "charge-3", time.Hour, func(context.Context) (receipt, error) {
		t.Fatal("must not run while another caller holds the key")
		return receipt{}, nil
	})
	assert.ErrorIs(t, err, ErrRequestInProgress)
}

func TestMemoryStore_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", &Record{Response: []byte(`1`)}, time.Minute))
	rec, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte(`1`), rec.Response)

	now = now.Add(time.Minute)
	rec, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, GenerateKey("telegram", "ch_1"), GenerateKey("telegram", "ch_1"))
	assert.NotEqual(t, GenerateKey("telegram", "ch_1"), GenerateKey("telegram", "ch_2"))
	assert.NotEqual(t, GenerateKey("payment", "ab", "c"), GenerateKey("payment", "a", "bc"))
	assert.Len(t, GenerateKey("payment", "x"), len("payment:")+64)
}
