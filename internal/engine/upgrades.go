package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Proton-105/tapcoin-engine/internal/domain"
	apperrors "github.com/Proton-105/tapcoin-engine/internal/errors"
	"github.com/Proton-105/tapcoin-engine/internal/repository"
)

// UpgradeResult is returned by PurchaseUpgrade.
type UpgradeResult struct {
	Account AccountView `json:"account"`
	Cost    int64       `json:"cost"`
}

// PurchaseUpgrade buys the next permanent level of tap power or stamina.
// Levels must be bought in order.
func (e *Engine) PurchaseUpgrade(ctx context.Context, id int64, kind UpgradeKind, level int) (res UpgradeResult, err error) {
	defer e.observe(ctx, "purchase_upgrade", id, time.Now(), &err)

	if err = checkID(id); err != nil {
		return UpgradeResult{}, err
	}
	levels, ok := e.cfg.Upgrades[kind]
	if !ok {
		return UpgradeResult{}, apperrors.NewValidationError(fmt.Sprintf("unknown upgrade %q", kind))
	}
	if level < 1 || level > len(levels) {
		return UpgradeResult{}, apperrors.NewValidationError(fmt.Sprintf("upgrade %s has no level %d", kind, level))
	}
	step := levels[level-1]

	now := e.now()
	a, err := e.mutate(ctx, id, now, func(a *domain.Account) error {
		if err := requireActive(a); err != nil {
			return err
		}
		var current int
		switch kind {
		case UpgradeTapPower:
			current = currentLevel(levels, a.TapPower)
		case UpgradeStamina:
			current = currentLevel(levels, a.BaseMaxEnergy(now))
		}

		if level <= current {
			return apperrors.NewConflictError(fmt.Sprintf("upgrade %s level %d already purchased", kind, level))
		}
		if level != current+1 {
			return apperrors.NewConflictError(fmt.Sprintf("upgrade %s level %d requires level %d first", kind, level, current+1))
		}
		if a.Coins < step.Cost {
			return apperrors.NewInsufficientError("coins", step.Cost, a.Coins)
		}

		a.Debit(step.Cost)
		switch kind {
		case UpgradeTapPower:
			a.TapPower = step.Value
		case UpgradeStamina:
			a.SetBaseMaxEnergy(step.Value, now)
		}
		return nil
	})
	if err != nil {
		return UpgradeResult{}, err
	}

	e.addAggregate(ctx, repository.Delta{Coins: -step.Cost})
	return UpgradeResult{Account: viewOf(a, now), Cost: step.Cost}, nil
}
