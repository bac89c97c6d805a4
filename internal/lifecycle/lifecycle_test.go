package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/tapcoin-engine/internal/health"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShutdown_RunsAllHooksAndJoinsErrors(t *testing.T) {
	s := NewShutdown(testLogger())
	var ran atomic.Int32

	s.Register("ok", func(context.Context) error {
		ran.Add(1)
		return nil
	})
	s.Register("broken", func(context.Context) error {
		ran.Add(1)
		return errors.New("boom")
	})
	s.RegisterHook(Hook{Name: "slow", Timeout: 20 * time.Millisecond, Fn: func(ctx context.Context) error {
		ran.Add(1)
		<-ctx.Done()
		return ctx.Err()
	}})
	s.Register("closer", CloserHook(func() error { ran.Add(1); return nil }))
	s.Register("stop", StopHook(func() { ran.Add(1) }))
	s.Register("nil", nil)

	err := s.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "broken: boom")
	assert.Equal(t, int32(5), ran.Load())
}

func TestProbes(t *testing.T) {
	var failing atomic.Bool
	checker := health.NewChecker(testLogger(), time.Second)
	checker.AddCheck("store", health.CheckFunc(func(context.Context) error {
		if failing.Load() {
			return errors.New("down")
		}
		return nil
	}))
	p := NewProbes(checker, testLogger())
	ctx := context.Background()

	assert.NoError(t, p.Liveness(ctx))
	assert.ErrorIs(t, p.Readiness(ctx), ErrNotReady)

	p.SetReady(true)
	assert.NoError(t, p.Readiness(ctx))

	rec := httptest.NewRecorder()
	p.ReadyzHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	failing.Store(true)
	assert.Error(t, p.Readiness(ctx))

	rec = httptest.NewRecorder()
	p.HealthzHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"healthy":false,"checks":{"store":"down"}}`, rec.Body.String())
}
