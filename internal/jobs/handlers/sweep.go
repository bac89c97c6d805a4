package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/tapcoin-engine/internal/jobs"
	"github.com/Proton-105/tapcoin-engine/internal/sweep"
)

// Sweeper runs one autoclicker pass.
type Sweeper interface {
	Sweep(ctx context.Context) sweep.Report
}

type AutoclickerSweepHandler struct {
	sweeper Sweeper
	log     *slog.Logger
}

func NewAutoclickerSweepHandler(sweeper Sweeper, log *slog.Logger) *AutoclickerSweepHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AutoclickerSweepHandler{sweeper: sweeper, log: log}
}

func (h *AutoclickerSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.AutoclickerSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "autoclicker sweep: failed to decode payload", slog.String("task_type", t.Type()), slog.String("error", err.Error()))
		return fmt.Errorf("decode %s payload: %w: %w", t.Type(), err, asynq.SkipRetry)
	}

	report := h.sweeper.Sweep(ctx)
	h.log.DebugContext(ctx, "autoclicker sweep task done",
		slog.String("reason", payload.Reason),
		slog.String("pass_id", report.PassID),
		slog.String("outcome", report.Outcome),
		slog.Int("applied", report.Applied),
		slog.Int("failed", report.Failed),
	)

	if report.Outcome == sweep.OutcomeFailed {
		return fmt.Errorf("autoclicker sweep %s failed", report.PassID)
	}
	return nil
}
