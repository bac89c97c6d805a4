package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"github.com/Proton-105/tapcoin-engine/internal/domain"
	apperrors "github.com/Proton-105/tapcoin-engine/internal/errors"
	"github.com/Proton-105/tapcoin-engine/internal/repository"
)

// ActivateBooster starts or stacks a booster window without charging for it.
// Payment-backed and promotional activations come through here.
func (e *Engine) ActivateBooster(ctx context.Context, req ActivateRequest) (view AccountView, err error) {
	defer e.observe(ctx, "activate_booster", req.AccountID, time.Now(), &err)

	if err = e.check(req); err != nil {
		return AccountView{}, err
	}

	now := e.now()
	a, err := e.mutate(ctx, req.AccountID, now, func(a *domain.Account) error {
		if err := requireActive(a); err != nil {
			return err
		}
		_, err := a.ActivateBooster(domain.BoosterKind(req.Kind), req.Duration, now)
		return boosterError(err)
	})
	if err != nil {
		return AccountView{}, err
	}
	return viewOf(a, now), nil
}

func boosterError(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, domain.ErrUnknownBooster), stderrors.Is(err, domain.ErrInvalidDuration):
		return apperrors.NewValidationError(err.Error())
	default:
		return err
	}
}

// PurchaseResult is returned by PurchaseBooster.
type PurchaseResult struct {
	Account AccountView `json:"account"`
	Price   int64       `json:"price"`
	Level   int         `json:"level"`
}

// PurchaseBooster buys one booster window for coins. The price grows with each purchase.
func (e *Engine) PurchaseBooster(ctx context.Context, id int64, kind domain.BoosterKind) (res PurchaseResult, err error) {
	defer e.observe(ctx, "purchase_booster", id, time.Now(), &err)

	if err = checkID(id); err != nil {
		return PurchaseResult{}, err
	}
	if !kind.Valid() {
		return PurchaseResult{}, apperrors.NewValidationError(fmt.Sprintf("unknown booster kind %q", kind))
	}
	if _, ok := e.prices.PriceFor(kind, 0); !ok {
		return PurchaseResult{}, apperrors.NewValidationError(fmt.Sprintf("booster %q is not sold for coins", kind))
	}

	now := e.now()
	var price int64
	var level int
	a, err := e.mutate(ctx, id, now, func(a *domain.Account) error {
		if err := requireActive(a); err != nil {
			return err
		}
		current := a.Booster(kind).Level
		price, _ = e.prices.PriceFor(kind, current)
		if a.Coins < price {
			return apperrors.NewInsufficientError("coins", price, a.Coins)
		}

		if _, err := a.ActivateBooster(kind, e.cfg.BoosterDuration, now); err != nil {
			return boosterError(err)
		}
		a.Debit(price)

		st := a.Boosters[kind]
		st.Level = current + 1
		a.Boosters[kind] = st
		level = st.Level
		return nil
	})
	if err != nil {
		return PurchaseResult{}, err
	}

	e.addAggregate(ctx, repository.Delta{Coins: -price})
	return PurchaseResult{Account: viewOf(a, now), Price: price, Level: level}, nil
}

// BoosterPrice is the next purchase price of one booster kind.
type BoosterPrice struct {
	Kind  domain.BoosterKind `json:"kind"`
	Level int                `json:"level"`
	Price int64              `json:"price"`
}

// BoosterPrices lists what the next purchase of each booster would cost the account.
func (e *Engine) BoosterPrices(ctx context.Context, id int64) ([]BoosterPrice, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	a, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	kinds := e.prices.Kinds()
	out := make([]BoosterPrice, 0, len(kinds))
	for _, kind := range kinds {
		level := a.Booster(kind).Level
		price, _ := e.prices.PriceFor(kind, level)
		out = append(out, BoosterPrice{Kind: kind, Level: level, Price: price})
	}
	return out, nil
}

// ExpiryWarning flags a booster that is about to run out.
type ExpiryWarning struct {
	Kind        domain.BoosterKind `json:"kind"`
	ExpiresAt   time.Time          `json:"expires_at"`
	MinutesLeft int                `json:"minutes_left"`
}

// ExpiryWarnings lists effective autoclicker and capacity boosters expiring
// within the warning window.
func (e *Engine) ExpiryWarnings(ctx context.Context, id int64) ([]ExpiryWarning, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	a, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var out []ExpiryWarning
	for _, kind := range []domain.BoosterKind{domain.BoosterAutoclicker, domain.BoosterCapacity} {
		st := a.Booster(kind)
		if !st.IsEffective(now) {
			continue
		}
		left := st.ExpiresAt.Sub(now)
		if left > e.cfg.ExpiryWarningWindow {
			continue
		}
		out = append(out, ExpiryWarning{
			Kind:        kind,
			ExpiresAt:   st.ExpiresAt,
			MinutesLeft: int(math.Ceil(left.Minutes())),
		})
	}
	return out, nil
}
