// Package engine is the economy core: every operation that reads or changes
// an account's ledger goes through an Engine.
package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	validator "github.com/go-playground/validator/v10"

	"github.com/Proton-105/tapcoin-engine/internal/catalog"
	"github.com/Proton-105/tapcoin-engine/internal/clock"
	"github.com/Proton-105/tapcoin-engine/internal/domain"
	apperrors "github.com/Proton-105/tapcoin-engine/internal/errors"
	"github.com/Proton-105/tapcoin-engine/internal/notify"
	"github.com/Proton-105/tapcoin-engine/internal/repository"
	"github.com/Proton-105/tapcoin-engine/pkg/metrics"
)

const (
	opTap   = "tap"
	opNudge = "nudge"
)

// Config holds the tunable economy parameters.
type Config struct {
	ForegroundCap        time.Duration
	SweepCap             time.Duration
	BoosterDuration      time.Duration
	ReferralPercent      int64
	ActiveReferralWindow time.Duration
	ExpiryWarningWindow  time.Duration
	DefaultBanReason     string
	MinPromoLength       int
	// AdRewards is the fixed credit per ad type; the client never sets the amount.
	AdRewards            map[string]int64
	Prices               map[domain.BoosterKind]PriceRule
	Upgrades             map[UpgradeKind][]UpgradeLevel
}

// DefaultConfig returns the production economy.
func DefaultConfig() Config {
	return Config{
		ForegroundCap:        60 * time.Second,
		SweepCap:             time.Hour,
		BoosterDuration:      time.Hour,
		ReferralPercent:      10,
		ActiveReferralWindow: 7 * 24 * time.Hour,
		ExpiryWarningWindow:  time.Hour,
		DefaultBanReason:     "Suspicious activity",
		MinPromoLength:       5,
		AdRewards:            DefaultAdRewards(),
		Prices:               DefaultPrices(),
		Upgrades:             DefaultUpgrades(),
	}
}

// RateGuard throttles per-account operations.
type RateGuard interface {
	Allow(ctx context.Context, accountID int64, op string) error
}

// Deps are the collaborators an Engine needs. Clock, Notifier, Errors and Log
// default when nil; Guard is optional.
type Deps struct {
	Accounts  repository.AccountStore
	Promos    repository.PromoStore
	Aggregate repository.AggregateCounter
	Catalog   *catalog.Catalog
	Clock     clock.Clock
	Notifier  notify.Notifier
	Guard     RateGuard
	Errors    *apperrors.Handler
	Log       *slog.Logger
}

// Engine applies economy operations with per-account serializability.
type Engine struct {
	cfg       Config
	prices    *PriceTable
	accounts  repository.AccountStore
	promos    repository.PromoStore
	aggregate repository.AggregateCounter
	catalog   *catalog.Catalog
	clock     clock.Clock
	notifier  notify.Notifier
	guard     RateGuard
	errors    *apperrors.Handler
	validate  *validator.Validate
	log       *slog.Logger
}

func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Accounts == nil || deps.Promos == nil || deps.Aggregate == nil {
		return nil, fmt.Errorf("engine: account, promo and aggregate stores are required")
	}

	prices, err := NewPriceTable(cfg.Prices)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if err := validateUpgrades(cfg.Upgrades); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if cfg.AdRewards == nil {
		cfg.AdRewards = DefaultAdRewards()
	}
	for adType, reward := range cfg.AdRewards {
		if reward <= 0 {
			return nil, fmt.Errorf("engine: ad reward for %q must be positive", adType)
		}
	}

	if deps.Catalog == nil {
		if deps.Catalog, err = catalog.Default(); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Errors == nil {
		deps.Errors = apperrors.NewHandler(deps.Log, false)
	}

	return &Engine{
		cfg:       cfg,
		prices:    prices,
		accounts:  deps.Accounts,
		promos:    deps.Promos,
		aggregate: deps.Aggregate,
		catalog:   deps.Catalog,
		clock:     deps.Clock,
		notifier:  deps.Notifier,
		guard:     deps.Guard,
		errors:    deps.Errors,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       deps.Log.With(slog.String("component", "engine")),
	}, nil
}

// mutate runs fn as one atomic unit on the account, retrying transient store
// failures. The account is settled to now before fn sees it, so lapsed boosters
// are never persisted or returned as effective.
func (e *Engine) mutate(ctx context.Context, id int64, now time.Time, fn repository.MutateFunc) (*domain.Account, error) {
	var out *domain.Account
	err := apperrors.WithRetry(ctx, func() error {
		a, err := e.accounts.Mutate(ctx, id, func(a *domain.Account) error {
			settle(a, now)
			return fn(a)
		})
		if err != nil {
			return storeError(err)
		}
		out = a
		return nil
	})
	return out, err
}

func (e *Engine) load(ctx context.Context, id int64) (*domain.Account, error) {
	var out *domain.Account
	err := apperrors.WithRetry(ctx, func() error {
		a, err := e.accounts.Get(ctx, id)
		if err != nil {
			return storeError(err)
		}
		out = a
		return nil
	})
	return out, err
}

func storeError(err error) error {
	var appErr *apperrors.AppError
	switch {
	case err == nil:
		return nil
	case stderrors.As(err, &appErr):
		return err
	case stderrors.Is(err, repository.ErrAccountNotFound):
		return apperrors.NewNotFoundError("account")
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperrors.NewDatabaseError(err)
	}
}

func requireActive(a *domain.Account) error {
	if a.Banned {
		return apperrors.NewForbiddenError(fmt.Sprintf("account %d is banned", a.ID))
	}
	return nil
}

// settle brings time-dependent state up to now.
func settle(a *domain.Account, now time.Time) {
	a.SettleBoosters(now)
	a.Regenerate(now)
}

func (e *Engine) addAggregate(ctx context.Context, d repository.Delta) {
	if d.IsZero() {
		return
	}
	if err := e.aggregate.Add(ctx, d); err != nil {
		metrics.RecordAggregateFailure()
		e.log.Error("failed to apply aggregate delta",
			slog.Int64("coins", d.Coins),
			slog.Int64("taps", d.Taps),
			slog.Int64("users", d.Users),
			slog.Any("error", err),
		)
	}
}

// observe records the outcome of an operation. Use with a named error result.
func (e *Engine) observe(ctx context.Context, op string, accountID int64, started time.Time, errp *error) {
	status := "ok"
	if errp != nil && *errp != nil {
		err := *errp
		status = string(apperrors.KindOf(err))
		if status == "" {
			status = "error"
		}

		var appErr *apperrors.AppError
		severity := string(apperrors.SeverityHigh)
		if stderrors.As(err, &appErr) {
			severity = string(appErr.Severity)
		}
		metrics.RecordError(status, severity)

		// Caller mistakes are routine; infrastructure failures go to the error handler.
		if severity == string(apperrors.SeverityHigh) || severity == string(apperrors.SeverityCritical) {
			e.errors.Handle(ctx, fmt.Errorf("%s account %d: %w", op, accountID, err))
		} else {
			e.log.LogAttrs(ctx, slog.LevelDebug, "operation failed",
				slog.String("operation", op),
				slog.Int64("account_id", accountID),
				slog.Any("error", err),
			)
		}
	}
	metrics.RecordOperation(op, status, time.Since(started))
}

func (e *Engine) now() time.Time {
	return e.clock.Now()
}
