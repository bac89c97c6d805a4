package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Proton-105/tapcoin-engine/internal/domain"
	apperrors "github.com/Proton-105/tapcoin-engine/internal/errors"
	"github.com/Proton-105/tapcoin-engine/internal/repository"
)

// BanAccount blocks an account and burns its spendable coins. Lifetime
// earnings are kept.
func (e *Engine) BanAccount(ctx context.Context, id int64, reason string) (view AccountView, err error) {
	defer e.observe(ctx, "ban_account", id, time.Now(), &err)

	if err = checkID(id); err != nil {
		return AccountView{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = e.cfg.DefaultBanReason
	}

	now := e.now()
	var burned int64
	a, err := e.mutate(ctx, id, now, func(a *domain.Account) error {
		if a.Banned {
			return apperrors.NewConflictError(fmt.Sprintf("account %d is already banned", id))
		}
		burned = a.Ban(reason)
		return nil
	})
	if err != nil {
		return AccountView{}, err
	}

	e.log.Warn("account banned",
		slog.Int64("account_id", id),
		slog.String("reason", reason),
		slog.Int64("coins_burned", burned),
	)
	e.addAggregate(ctx, repository.Delta{Coins: -burned})
	return viewOf(a, now), nil
}

// RefreshReferralActivity recounts the referrals active within the activity window.
func (e *Engine) RefreshReferralActivity(ctx context.Context, referrerID int64) (view AccountView, err error) {
	defer e.observe(ctx, "refresh_referrals", referrerID, time.Now(), &err)

	if err = checkID(referrerID); err != nil {
		return AccountView{}, err
	}

	now := e.now()
	count, err := e.accounts.CountActiveReferrals(ctx, referrerID, now.Add(-e.cfg.ActiveReferralWindow))
	if err != nil {
		return AccountView{}, storeError(err)
	}

	a, err := e.mutate(ctx, referrerID, now, func(a *domain.Account) error {
		a.ActiveReferralCount = count
		return nil
	})
	if err != nil {
		return AccountView{}, err
	}
	return viewOf(a, now), nil
}

// NudgeReferral reminds one of the caller's referrals to come back.
func (e *Engine) NudgeReferral(ctx context.Context, id, referralID int64) (err error) {
	defer e.observe(ctx, opNudge, id, time.Now(), &err)

	if err = checkID(id); err != nil {
		return err
	}
	if err = checkID(referralID); err != nil {
		return err
	}

	sender, err := e.load(ctx, id)
	if err != nil {
		return err
	}
	if err = requireActive(sender); err != nil {
		return err
	}

	referral, err := e.load(ctx, referralID)
	if err != nil {
		return err
	}
	if referral.ReferredBy == nil || *referral.ReferredBy != id {
		return apperrors.NewForbiddenError(fmt.Sprintf("account %d is not a referral of %d", referralID, id))
	}

	if err = e.allow(ctx, id, opNudge); err != nil {
		return err
	}

	name := sender.FirstName
	if name == "" {
		name = sender.Username
	}
	if name == "" {
		name = "A friend"
	}

	return e.notifier.ReferralNudge(ctx, referralID, name)
}
