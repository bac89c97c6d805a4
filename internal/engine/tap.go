package engine

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/Proton-105/tapcoin-engine/internal/domain"
	apperrors "github.com/Proton-105/tapcoin-engine/internal/errors"
	"github.com/Proton-105/tapcoin-engine/internal/notify"
	"github.com/Proton-105/tapcoin-engine/internal/ratelimit"
	"github.com/Proton-105/tapcoin-engine/internal/repository"
	"github.com/Proton-105/tapcoin-engine/pkg/metrics"
)

// TapResult is returned by ProcessTap.
type TapResult struct {
	Account    AccountView `json:"account"`
	Reward     int64       `json:"reward"`
	Multiplier int64       `json:"multiplier"`
}

// ProcessTap spends one energy per tap and credits the multiplied reward.
func (e *Engine) ProcessTap(ctx context.Context, req TapRequest) (res TapResult, err error) {
	defer e.observe(ctx, opTap, req.AccountID, time.Now(), &err)

	if err = e.check(req); err != nil {
		return TapResult{}, err
	}
	if err = e.allow(ctx, req.AccountID, opTap); err != nil {
		return TapResult{}, err
	}

	now := e.now()
	n := int64(req.Taps)

	var (
		reward, multiplier int64
		flagged            bool
	)
	a, err := e.mutate(ctx, req.AccountID, now, func(a *domain.Account) error {
		if err := requireActive(a); err != nil {
			return err
		}
		if a.Energy < n {
			return apperrors.NewInsufficientError("energy", n, a.Energy)
		}

		multiplier = a.TapMultiplier(now)
		reward = n * multiplier

		a.Energy -= n
		a.TotalTaps += n
		a.Credit(reward)
		a.LastActiveAt = now

		flagged = false
		if req.IntervalMS != nil {
			flagged = a.RecordTapInterval(*req.IntervalMS)
		}
		return nil
	})
	if err != nil {
		return TapResult{}, err
	}

	metrics.RecordTaps("manual", n, reward)
	e.cascadeReferral(ctx, a.ReferredBy, reward)
	e.addAggregate(ctx, repository.Delta{Coins: reward, Taps: n})

	if flagged {
		e.reportSuspicious(ctx, a)
	}

	return TapResult{Account: viewOf(a, now), Reward: reward, Multiplier: multiplier}, nil
}

func (e *Engine) allow(ctx context.Context, accountID int64, op string) error {
	if e.guard == nil {
		return nil
	}

	err := e.guard.Allow(ctx, accountID, op)
	if err == nil {
		return nil
	}

	var exceeded *ratelimit.ExceededError
	if stderrors.As(err, &exceeded) {
		return apperrors.NewRateLimitError(exceeded.RetryAfter)
	}

	// Limiter backends failing must not block play.
	e.log.Warn("rate limiter unavailable", slog.String("operation", op), slog.Any("error", err))
	return nil
}

func (e *Engine) reportSuspicious(ctx context.Context, a *domain.Account) {
	metrics.RecordSuspicious()
	e.log.Warn("account flagged as suspicious",
		slog.Int64("account_id", a.ID),
		slog.Int64("mean_interval_ms", a.MeanRecentInterval),
	)

	ev := notify.SuspiciousEvent{AccountID: a.ID, Username: a.Username, MeanMS: a.MeanRecentInterval}
	if err := e.notifier.SuspiciousActivity(ctx, ev); err != nil {
		e.log.Error("failed to send suspicious activity notification", slog.Int64("account_id", a.ID), slog.Any("error", err))
	}
}
