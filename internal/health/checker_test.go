package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"gopkg.in/telebot.v3"

	appredis "github.com/Proton-105/tapcoin-engine/pkg/redis"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := appredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	c := NewChecker(testLogger(), 50*time.Millisecond)
	c.AddCheck("redis", NewRedisChecker(client))
	c.AddCheck("telegram", NewTelegramChecker(&telebot.Bot{Me: &telebot.User{ID: 1}}))
	c.AddCheck("", CheckFunc(func(context.Context) error { return nil }))

	results, ok := c.Check(context.Background())
	assert.True(t, ok)
	assert.Equal(t, map[string]string{"redis": StatusOK, "telegram": StatusOK}, results)
	assert.Equal(t, []string{"redis", "telegram"}, c.Names())

	c.AddCheck("slow", CheckFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	c.AddCheck("db", NewDBChecker(nil))
	c.AddCheck("bot", NewTelegramChecker(nil))

	results, ok = c.Check(context.Background())
	assert.False(t, ok)
	assert.Equal(t, context.DeadlineExceeded.Error(), results["slow"])
	assert.NotEqual(t, StatusOK, results["db"])
	assert.NotEqual(t, StatusOK, results["bot"])
	assert.Equal(t, StatusOK, results["redis"])
}

func TestRedisChecker_Down(t *testing.T) {
	assert.Error(t, NewRedisChecker(nil).HealthCheck(context.Background()))

	failing := pingFunc(func(context.Context) error { return errors.New("connection refused") })
	assert.EqualError(t, NewRedisChecker(failing).HealthCheck(context.Background()), "connection refused")
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
