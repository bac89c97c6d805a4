package engine

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Proton-105/tapcoin-engine/internal/domain"
	"github.com/Proton-105/tapcoin-engine/internal/repository"
)

// InitResult is returned by InitAccount.
type InitResult struct {
	Account AccountView `json:"account"`
	Created bool        `json:"created"`
}

// InitAccount returns the caller's account, creating it on first contact.
// referralCode ("ref_<id>" or "<id>") is only honoured on creation.
func (e *Engine) InitAccount(ctx context.Context, id Identity, referralCode string) (res InitResult, err error) {
	defer e.observe(ctx, "init_account", id.ID, time.Now(), &err)

	if err = e.check(id); err != nil {
		return InitResult{}, err
	}

	now := e.now()
	existing, err := e.accounts.Get(ctx, id.ID)
	switch {
	case err == nil:
		return e.touch(ctx, id, existing, now)
	case !stderrors.Is(err, repository.ErrAccountNotFound):
		return InitResult{}, storeError(err)
	}

	a := domain.NewAccount(id.ID, id.Username, id.FirstName, id.LastName, now)
	referrerID, hasReferrer := e.resolveReferrer(ctx, referralCode, id.ID)
	if hasReferrer {
		a.ReferredBy = &referrerID
	}

	if err = e.accounts.Create(ctx, a); err != nil {
		if stderrors.Is(err, repository.ErrAccountExists) {
			current, getErr := e.load(ctx, id.ID)
			if getErr != nil {
				return InitResult{}, getErr
			}
			return e.touch(ctx, id, current, now)
		}
		return InitResult{}, storeError(err)
	}

	e.addAggregate(ctx, repository.Delta{Users: 1})
	if hasReferrer {
		e.registerReferral(ctx, referrerID)
	}

	e.log.Info("account created", slog.Int64("account_id", a.ID), slog.Bool("referred", hasReferrer))
	return InitResult{Account: viewOf(a, now), Created: true}, nil
}

func (e *Engine) touch(ctx context.Context, id Identity, current *domain.Account, now time.Time) (InitResult, error) {
	if current.Banned {
		settle(current, now)
		return InitResult{Account: viewOf(current, now)}, nil
	}

	a, err := e.mutate(ctx, id.ID, now, func(a *domain.Account) error {
		a.LastActiveAt = now
		if id.Username != "" {
			a.Username = id.Username
		}
		if id.FirstName != "" {
			a.FirstName = id.FirstName
		}
		if id.LastName != "" {
			a.LastName = id.LastName
		}
		return nil
	})
	if err != nil {
		return InitResult{}, err
	}
	return InitResult{Account: viewOf(a, now)}, nil
}

func parseReferralCode(code string) (int64, bool) {
	code = strings.TrimPrefix(strings.TrimSpace(code), "ref_")
	if code == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(code, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (e *Engine) resolveReferrer(ctx context.Context, code string, self int64) (int64, bool) {
	referrerID, ok := parseReferralCode(code)
	if !ok || referrerID == self {
		return 0, false
	}
	if _, err := e.accounts.Get(ctx, referrerID); err != nil {
		if !stderrors.Is(err, repository.ErrAccountNotFound) {
			e.log.Warn("failed to resolve referrer", slog.Int64("referrer_id", referrerID), slog.Any("error", err))
		}
		return 0, false
	}
	return referrerID, true
}

func (e *Engine) registerReferral(ctx context.Context, referrerID int64) {
	_, err := e.mutate(ctx, referrerID, e.now(), func(a *domain.Account) error {
		a.ReferralCount++
		a.ActiveReferralCount++
		return nil
	})
	if err != nil {
		e.log.Error("failed to register referral", slog.Int64("referrer_id", referrerID), slog.Any("error", err))
	}
}

// Account returns the read projection of an account, with energy and boosters
// brought up to now without persisting anything.
func (e *Engine) Account(ctx context.Context, id int64) (AccountView, error) {
	if err := checkID(id); err != nil {
		return AccountView{}, err
	}

	a, err := e.load(ctx, id)
	if err != nil {
		return AccountView{}, err
	}

	now := e.now()
	settle(a, now)
	return viewOf(a, now), nil
}

// GlobalStats returns the process-wide totals.
func (e *Engine) GlobalStats(ctx context.Context) (repository.Aggregate, error) {
	agg, err := e.aggregate.Snapshot(ctx)
	if err != nil {
		return repository.Aggregate{}, storeError(err)
	}
	return agg, nil
}
