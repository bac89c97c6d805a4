package engine

import (
	"context"
	"time"

	"github.com/Proton-105/tapcoin-engine/internal/domain"
	"github.com/Proton-105/tapcoin-engine/internal/repository"
	"github.com/Proton-105/tapcoin-engine/pkg/metrics"
)

// AutoclickResult is returned by ReconcileAutoclicker.
type AutoclickResult struct {
	Account AccountView `json:"account"`
	Seconds int64       `json:"seconds"`
	Taps    int64       `json:"taps"`
	Reward  int64       `json:"reward"`
}

// ReconcileAutoclicker credits the simulated taps accrued since the last
// application, at most the foreground cap per call.
func (e *Engine) ReconcileAutoclicker(ctx context.Context, id int64) (res AutoclickResult, err error) {
	defer e.observe(ctx, "reconcile_autoclicker", id, time.Now(), &err)

	if err = checkID(id); err != nil {
		return AutoclickResult{}, err
	}

	now := e.now()
	a, applied, err := e.reconcile(ctx, id, now, e.cfg.ForegroundCap, true)
	if err != nil {
		return AutoclickResult{}, err
	}

	return AutoclickResult{
		Account: viewOf(a, now),
		Seconds: applied.Seconds,
		Taps:    applied.Taps,
		Reward:  applied.Reward,
	}, nil
}

// SweepAccount is the background counterpart of ReconcileAutoclicker with the
// sweep cap. Banned accounts are skipped silently.
func (e *Engine) SweepAccount(ctx context.Context, id int64) (applied domain.AutoTapResult, err error) {
	defer e.observe(ctx, "sweep_account", id, time.Now(), &err)

	_, applied, err = e.reconcile(ctx, id, e.now(), e.cfg.SweepCap, false)
	return applied, err
}

// AutoclickerDue lists accounts the sweep should visit.
func (e *Engine) AutoclickerDue(ctx context.Context) ([]int64, error) {
	ids, err := e.accounts.ListAutoclickerDue(ctx, e.now())
	if err != nil {
		return nil, storeError(err)
	}
	return ids, nil
}

// reconcile reads and advances LastAppliedAt inside one per-account unit, so
// concurrent callers never apply the same window twice.
func (e *Engine) reconcile(ctx context.Context, id int64, now time.Time, limit time.Duration, foreground bool) (*domain.Account, domain.AutoTapResult, error) {
	var applied domain.AutoTapResult
	a, err := e.mutate(ctx, id, now, func(a *domain.Account) error {
		applied = domain.AutoTapResult{}
		if a.Banned {
			if foreground {
				return requireActive(a)
			}
			return nil
		}

		applied = a.ApplyAutoclicker(now, int64(limit/time.Second))
		if foreground {
			a.LastActiveAt = now
		}
		return nil
	})
	if err != nil {
		return nil, domain.AutoTapResult{}, err
	}

	if applied.Reward > 0 {
		metrics.RecordTaps("autoclicker", applied.Taps, applied.Reward)
		e.cascadeReferral(ctx, a.ReferredBy, applied.Reward)
		e.addAggregate(ctx, repository.Delta{Coins: applied.Reward, Taps: applied.Taps})
	}
	return a, applied, nil
}

// OfflineReport estimates what the autoclicker accrued while the client was away.
type OfflineReport struct {
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Seconds   int64      `json:"seconds"`
	Taps      int64      `json:"taps"`
	Coins     int64      `json:"coins"`
}

// ReportOfflineEarnings is a read-only projection and an upper bound on what
// will be credited. Crediting happens only through ReconcileAutoclicker and the
// sweep, which stop at expiry; see domain.Account.EstimateOffline.
func (e *Engine) ReportOfflineEarnings(ctx context.Context, id int64) (OfflineReport, error) {
	if err := checkID(id); err != nil {
		return OfflineReport{}, err
	}

	a, err := e.load(ctx, id)
	if err != nil {
		return OfflineReport{}, err
	}

	now := e.now()
	st := a.Booster(domain.BoosterAutoclicker)
	report := OfflineReport{Active: st.IsEffective(now)}
	if st.Active {
		exp := st.ExpiresAt
		report.ExpiresAt = &exp
	}
	if a.Banned {
		return report, nil
	}

	est := a.EstimateOffline(now)
	report.Seconds = est.Seconds
	report.Taps = est.Taps
	report.Coins = est.Reward
	return report, nil
}
