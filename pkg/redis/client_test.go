package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	c := Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })

	return mr, c
}

func TestClient_SetNXAndDeleteIfEquals(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lease", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lease", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := c.DeleteIfEquals(ctx, "lease", "b")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, mr.Exists("lease"))

	deleted, err = c.DeleteIfEquals(ctx, "lease", "a")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, mr.Exists("lease"))
}

func TestMetricsClient_Forwards(t *testing.T) {
	mr, c := setupTestRedis(t)
	m := NewMetricsClient(c)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", 0))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	mr.HSet("h", "f", "1")
	fields, err := m.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"f": "1"}, fields)

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, goredis.Nil)
	assert.NoError(t, m.Ping(ctx))
}
