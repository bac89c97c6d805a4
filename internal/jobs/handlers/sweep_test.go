package handlers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/tapcoin-engine/internal/jobs"
	"github.com/Proton-105/tapcoin-engine/internal/sweep"
)

type stubSweeper struct {
	outcome string
	calls   int
}

func (s *stubSweeper) Sweep(context.Context) sweep.Report {
	s.calls++
	return sweep.Report{PassID: "pass", Outcome: s.outcome}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAutoclickerSweepHandler(t *testing.T) {
	task, err := jobs.NewAutoclickerSweepTask("schedule", 10*time.Second)
	require.NoError(t, err)

	tests := []struct {
		name    string
		outcome string
		wantErr bool
	}{
		{name: "completed", outcome: sweep.OutcomeCompleted},
		{name: "not leader", outcome: sweep.OutcomeNotLeader},
		{name: "overlap", outcome: sweep.OutcomeOverlap},
		{name: "failed", outcome: sweep.OutcomeFailed, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stubSweeper{outcome: tt.outcome}
			err := NewAutoclickerSweepHandler(s, testLogger()).ProcessTask(context.Background(), task)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 1, s.calls)
		})
	}
}

func TestAutoclickerSweepHandler_BadPayloadSkipsRetry(t *testing.T) {
	s := &stubSweeper{outcome: sweep.OutcomeCompleted}
	err := NewAutoclickerSweepHandler(s, testLogger()).ProcessTask(context.Background(), asynq.NewTask(jobs.TaskTypeAutoclickerSweep, []byte("{")))

	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Zero(t, s.calls)
}
