package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Proton-105/tapcoin-engine/internal/catalog"
	"github.com/Proton-105/tapcoin-engine/internal/domain"
	apperrors "github.com/Proton-105/tapcoin-engine/internal/errors"
)

// SkinResult is returned by UnlockSkin. RequiresPayment means nothing changed
// and the caller must run the payment flow, which ends in GrantSkin.
type SkinResult struct {
	Account         AccountView `json:"account"`
	RequiresPayment bool        `json:"requires_payment"`
	Price           int64       `json:"price,omitempty"`
}

func (e *Engine) skin(id string) (catalog.Skin, error) {
	s, ok := e.catalog.Skin(id)
	if !ok {
		return catalog.Skin{}, apperrors.NewNotFoundError(fmt.Sprintf("skin %q", id))
	}
	return s, nil
}

// UnlockSkin unlocks a referral-gated skin, or reports the price of a paid one.
func (e *Engine) UnlockSkin(ctx context.Context, id int64, skinID string) (res SkinResult, err error) {
	defer e.observe(ctx, "unlock_skin", id, time.Now(), &err)

	if err = checkID(id); err != nil {
		return SkinResult{}, err
	}
	skin, err := e.skin(skinID)
	if err != nil {
		return SkinResult{}, err
	}

	now := e.now()
	if skin.Type == catalog.SkinStars {
		a, err := e.load(ctx, id)
		if err != nil {
			return SkinResult{}, err
		}
		if err := requireActive(a); err != nil {
			return SkinResult{}, err
		}
		if a.HasSkin(skin.ID) {
			return SkinResult{}, apperrors.NewConflictError(fmt.Sprintf("skin %q already unlocked", skin.ID))
		}
		return SkinResult{Account: viewOf(a, now), RequiresPayment: true, Price: skin.Price}, nil
	}

	a, err := e.mutate(ctx, id, now, func(a *domain.Account) error {
		if err := requireActive(a); err != nil {
			return err
		}
		if a.HasSkin(skin.ID) {
			return apperrors.NewConflictError(fmt.Sprintf("skin %q already unlocked", skin.ID))
		}
		if a.ActiveReferralCount < skin.RequiredReferrals {
			return apperrors.NewInsufficientError("active referrals", int64(skin.RequiredReferrals), int64(a.ActiveReferralCount))
		}
		a.AddSkin(skin.ID)
		return nil
	})
	if err != nil {
		return SkinResult{}, err
	}
	return SkinResult{Account: viewOf(a, now)}, nil
}

// GrantSkin unlocks a skin after the payment provider confirmed settlement.
// Granting an owned skin is a no-op so provider retries are safe.
func (e *Engine) GrantSkin(ctx context.Context, id int64, skinID string) (view AccountView, err error) {
	defer e.observe(ctx, "grant_skin", id, time.Now(), &err)

	if err = checkID(id); err != nil {
		return AccountView{}, err
	}
	skin, err := e.skin(skinID)
	if err != nil {
		return AccountView{}, err
	}

	now := e.now()
	a, err := e.mutate(ctx, id, now, func(a *domain.Account) error {
		if err := requireActive(a); err != nil {
			return err
		}
		a.AddSkin(skin.ID)
		return nil
	})
	if err != nil {
		return AccountView{}, err
	}
	return viewOf(a, now), nil
}

// ActivateSkin selects an unlocked skin.
func (e *Engine) ActivateSkin(ctx context.Context, id int64, skinID string) (view AccountView, err error) {
	defer e.observe(ctx, "activate_skin", id, time.Now(), &err)

	if err = checkID(id); err != nil {
		return AccountView{}, err
	}
	skin, err := e.skin(skinID)
	if err != nil {
		return AccountView{}, err
	}

	now := e.now()
	a, err := e.mutate(ctx, id, now, func(a *domain.Account) error {
		if err := requireActive(a); err != nil {
			return err
		}
		if !a.HasSkin(skin.ID) {
			return apperrors.NewForbiddenError(fmt.Sprintf("skin %q is locked", skin.ID))
		}
		a.ActiveSkin = skin.ID
		return nil
	})
	if err != nil {
		return AccountView{}, err
	}
	return viewOf(a, now), nil
}
