package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Proton-105/tapcoin-engine/internal/domain"
	apperrors "github.com/Proton-105/tapcoin-engine/internal/errors"
	"github.com/Proton-105/tapcoin-engine/internal/repository"
	"github.com/Proton-105/tapcoin-engine/pkg/metrics"
)

// RewardResult is returned by operations that credit a fixed reward.
type RewardResult struct {
	Account AccountView `json:"account"`
	Reward  int64       `json:"reward"`
}

// RedeemCode credits a promo code once per account. The use is claimed in the
// promo store first and released again if the ledger update fails.
func (e *Engine) RedeemCode(ctx context.Context, id int64, code string) (res RewardResult, err error) {
	defer e.observe(ctx, "redeem_code", id, time.Now(), &err)

	if err = checkID(id); err != nil {
		return RewardResult{}, err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < e.cfg.MinPromoLength {
		return RewardResult{}, apperrors.NewValidationError(fmt.Sprintf("promo code must be at least %d characters", e.cfg.MinPromoLength))
	}

	current, err := e.load(ctx, id)
	if err != nil {
		return RewardResult{}, err
	}
	if err = requireActive(current); err != nil {
		return RewardResult{}, err
	}

	now := e.now()
	promo, err := e.promos.Claim(ctx, code, id, now)
	if err != nil {
		return RewardResult{}, promoError(err)
	}

	a, err := e.mutate(ctx, id, now, func(a *domain.Account) error {
		if err := requireActive(a); err != nil {
			return err
		}
		a.Credit(promo.Reward)
		return nil
	})
	if err != nil {
		if relErr := e.promos.Release(context.WithoutCancel(ctx), code, id); relErr != nil {
			e.log.Error("failed to release promo claim",
				slog.String("code", code),
				slog.Int64("account_id", id),
				slog.Any("error", relErr),
			)
		}
		return RewardResult{}, err
	}

	e.credited(ctx, a, "promo", promo.Reward)
	return RewardResult{Account: viewOf(a, now), Reward: promo.Reward}, nil
}

// PromoRequest describes a promo code to issue. An empty Code is generated.
type PromoRequest struct {
	Code    string        `validate:"omitempty,alphanum"`
	Reward  int64         `validate:"gt=0"`
	MaxUses int           `validate:"gte=0"`
	TTL     time.Duration `validate:"gte=0"`
}

// CreatePromoCode issues a promo code. Zero MaxUses means unlimited, zero TTL never expires.
func (e *Engine) CreatePromoCode(ctx context.Context, req PromoRequest) (*repository.PromoCode, error) {
	if err := e.check(req); err != nil {
		return nil, err
	}

	code := strings.ToUpper(req.Code)
	if code == "" {
		code = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	}
	if len(code) < e.cfg.MinPromoLength {
		return nil, apperrors.NewValidationError(fmt.Sprintf("promo code must be at least %d characters", e.cfg.MinPromoLength))
	}

	now := e.now()
	promo := &repository.PromoCode{
		Code:      code,
		Reward:    req.Reward,
		MaxUses:   req.MaxUses,
		CreatedAt: now,
	}
	if req.TTL > 0 {
		exp := now.Add(req.TTL)
		promo.ExpiresAt = &exp
	}

	if err := e.promos.Create(ctx, promo); err != nil {
		if stderrors.Is(err, repository.ErrPromoExists) {
			return nil, apperrors.NewConflictError(fmt.Sprintf("promo code %s already exists", code))
		}
		return nil, storeError(err)
	}

	e.log.Info("promo code created", slog.String("code", code), slog.Int64("reward", req.Reward), slog.Int("max_uses", req.MaxUses))
	return promo, nil
}

func promoError(err error) error {
	switch {
	case stderrors.Is(err, repository.ErrPromoNotFound):
		return apperrors.NewNotFoundError("promo code")
	case stderrors.Is(err, repository.ErrPromoExpired):
		return apperrors.NewExpiredError("promo code")
	case stderrors.Is(err, repository.ErrPromoAlreadyUsed):
		return apperrors.NewConflictError("promo code already redeemed by this account")
	case stderrors.Is(err, repository.ErrPromoExhausted):
		return apperrors.NewConflictError("promo code has no uses left")
	default:
		return storeError(err)
	}
}

// CompleteTask credits a catalog task once per account.
func (e *Engine) CompleteTask(ctx context.Context, id int64, taskID string) (res RewardResult, err error) {
	defer e.observe(ctx, "complete_task", id, time.Now(), &err)

	if err = checkID(id); err != nil {
		return RewardResult{}, err
	}
	task, ok := e.catalog.Task(taskID)
	if !ok {
		return RewardResult{}, apperrors.NewNotFoundError(fmt.Sprintf("task %q", taskID))
	}

	now := e.now()
	a, err := e.mutate(ctx, id, now, func(a *domain.Account) error {
		if err := requireActive(a); err != nil {
			return err
		}
		if a.HasCompletedTask(task.ID) {
			return apperrors.NewConflictError(fmt.Sprintf("task %q already completed", task.ID))
		}
		a.CompleteTask(task.ID)
		a.Credit(task.Reward)
		return nil
	})
	if err != nil {
		return RewardResult{}, err
	}

	e.credited(ctx, a, "task", task.Reward)
	return RewardResult{Account: viewOf(a, now), Reward: task.Reward}, nil
}

// DefaultAdType is assumed when the client names no ad type.
const DefaultAdType = "standard"

func DefaultAdRewards() map[string]int64 {
	return map[string]int64{
		DefaultAdType: 50,
		"afk":         100,
	}
}

// RecordAdView credits the configured reward for one watched ad.
func (e *Engine) RecordAdView(ctx context.Context, id int64, adType string) (res RewardResult, err error) {
	defer e.observe(ctx, "ad_view", id, time.Now(), &err)

	if err = checkID(id); err != nil {
		return RewardResult{}, err
	}
	adType = strings.ToLower(strings.TrimSpace(adType))
	if adType == "" {
		adType = DefaultAdType
	}
	reward, ok := e.cfg.AdRewards[adType]
	if !ok {
		return RewardResult{}, apperrors.NewValidationError(fmt.Sprintf("unknown ad type %q", adType))
	}
	if err = e.allow(ctx, id, "ad"); err != nil {
		return RewardResult{}, err
	}

	now := e.now()
	a, err := e.mutate(ctx, id, now, func(a *domain.Account) error {
		if err := requireActive(a); err != nil {
			return err
		}
		a.Credit(reward)
		a.LastActiveAt = now
		return nil
	})
	if err != nil {
		return RewardResult{}, err
	}

	e.credited(ctx, a, "ad", reward)
	return RewardResult{Account: viewOf(a, now), Reward: reward}, nil
}

// credited runs the post-commit effects of a non-tap reward.
func (e *Engine) credited(ctx context.Context, a *domain.Account, source string, reward int64) {
	metrics.RecordCredit(source, reward)
	e.cascadeReferral(ctx, a.ReferredBy, reward)
	e.addAggregate(ctx, repository.Delta{Coins: reward})
}
