package engine

import (
	"context"
	"log/slog"

	"github.com/Proton-105/tapcoin-engine/internal/domain"
	apperrors "github.com/Proton-105/tapcoin-engine/internal/errors"
	"github.com/Proton-105/tapcoin-engine/internal/repository"
	"github.com/Proton-105/tapcoin-engine/pkg/metrics"
)

// referralBonus is floor(reward * percent / 100).
func (e *Engine) referralBonus(reward int64) int64 {
	if reward <= 0 || e.cfg.ReferralPercent <= 0 {
		return 0
	}
	return reward * e.cfg.ReferralPercent / 100
}

// cascadeReferral pays the direct referrer its share of reward. It runs after
// the earner's unit has committed and never recurses to the referrer's referrer.
func (e *Engine) cascadeReferral(ctx context.Context, referredBy *int64, reward int64) {
	if referredBy == nil {
		return
	}
	bonus := e.referralBonus(reward)
	if bonus <= 0 {
		return
	}

	referrerID := *referredBy
	credited := false
	_, err := e.mutate(ctx, referrerID, e.now(), func(a *domain.Account) error {
		credited = false
		if a.Banned {
			return nil
		}
		a.CreditReferral(bonus)
		credited = true
		return nil
	})
	if err != nil {
		if !apperrors.IsKind(err, apperrors.KindNotFound) {
			e.log.Error("failed to credit referral bonus",
				slog.Int64("referrer_id", referrerID),
				slog.Int64("bonus", bonus),
				slog.Any("error", err),
			)
		}
		return
	}
	if !credited {
		return
	}

	metrics.RecordCredit("referral", bonus)
	e.addAggregate(ctx, repository.Delta{Coins: bonus})
}
