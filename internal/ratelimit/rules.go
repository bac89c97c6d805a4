package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Rule is a limit of Limit operations per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Guard applies per-operation rules to account-scoped keys.
type Guard struct {
	limiter   Limiter
	rules     map[string]Rule
	whitelist map[int64]struct{}
	now       clockFunc
}

func NewGuard(limiter Limiter, rules map[string]Rule, whitelist []int64) *Guard {
	wl := make(map[int64]struct{}, len(whitelist))
	for _, id := range whitelist {
		wl[id] = struct{}{}
	}
	return &Guard{limiter: limiter, rules: rules, whitelist: wl, now: time.Now}
}

// ExceededError carries how long the caller should wait.
type ExceededError struct {
	RetryAfter int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfter)
}

func (e *ExceededError) Unwrap() error {
	return ErrLimitExceeded
}

// Allow checks op for accountID. Operations without a rule and whitelisted
// accounts always pass.
func (g *Guard) Allow(ctx context.Context, accountID int64, op string) error {
	if g == nil || g.limiter == nil {
		return nil
	}
	rule, ok := g.rules[op]
	if !ok || rule.Limit <= 0 || rule.Window <= 0 {
		return nil
	}
	if _, ok := g.whitelist[accountID]; ok {
		return nil
	}

	res, err := g.limiter.Check(ctx, fmt.Sprintf("%s:%d", op, accountID), rule.Limit, rule.Window)
	if err != nil && !errors.Is(err, ErrLimitExceeded) {
		return err
	}
	if err != nil || (res != nil && !res.Allowed) {
		return &ExceededError{RetryAfter: res.RetryAfter(g.now())}
	}
	return nil
}
