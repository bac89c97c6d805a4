// Package repository defines persistence for accounts, promo codes and the
// global aggregate, with in-memory, PostgreSQL and Redis backends.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Proton-105/tapcoin-engine/internal/domain"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")

	ErrPromoNotFound    = errors.New("promo code not found")
	ErrPromoExists      = errors.New("promo code already exists")
	ErrPromoExpired     = errors.New("promo code expired")
	ErrPromoExhausted   = errors.New("promo code fully used")
	ErrPromoAlreadyUsed = errors.New("promo code already used by account")
)

// MutateFunc validates and then changes the account in place. Returning an
// error discards every change.
type MutateFunc func(a *domain.Account) error

// AccountStore persists accounts. Mutate is the unit of per-account
// serializability: concurrent calls for one id run one after another.
type AccountStore interface {
	Get(ctx context.Context, id int64) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	Mutate(ctx context.Context, id int64, fn MutateFunc) (*domain.Account, error)
	// ListAutoclickerDue returns ids of non-banned accounts whose autoclicker is effective at now.
	ListAutoclickerDue(ctx context.Context, now time.Time) ([]int64, error)
	// CountActiveReferrals counts accounts referred by referrerID and active since the given time.
	CountActiveReferrals(ctx context.Context, referrerID int64, since time.Time) (int, error)
}

// PromoCode is a redeemable code.
type PromoCode struct {
	Code      string
	Reward    int64
	MaxUses   int
	UsedBy    []int64
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Expired reports whether the code can no longer be redeemed at now.
func (p *PromoCode) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

// Exhausted reports whether every use is taken. Zero MaxUses means unlimited.
func (p *PromoCode) Exhausted() bool {
	return p.MaxUses > 0 && len(p.UsedBy) >= p.MaxUses
}

func (p *PromoCode) UsedByAccount(id int64) bool {
	for _, u := range p.UsedBy {
		if u == id {
			return true
		}
	}
	return false
}

func (p *PromoCode) checkClaim(accountID int64, now time.Time) error {
	switch {
	case p.Expired(now):
		return ErrPromoExpired
	case p.UsedByAccount(accountID):
		return ErrPromoAlreadyUsed
	case p.Exhausted():
		return ErrPromoExhausted
	default:
		return nil
	}
}

// PromoStore persists promo codes. Claim atomically records a use.
type PromoStore interface {
	Get(ctx context.Context, code string) (*PromoCode, error)
	Create(ctx context.Context, p *PromoCode) error
	Claim(ctx context.Context, code string, accountID int64, now time.Time) (*PromoCode, error)
	Release(ctx context.Context, code string, accountID int64) error
}

// Delta is an increment applied to the global aggregate.
type Delta struct {
	Coins int64
	Taps  int64
	Users int64
}

func (d Delta) IsZero() bool {
	return d.Coins == 0 && d.Taps == 0 && d.Users == 0
}

// Aggregate is a snapshot of the process-wide totals.
type Aggregate struct {
	TotalCoins int64 `json:"total_coins"`
	TotalTaps  int64 `json:"total_taps"`
	TotalUsers int64 `json:"total_users"`
}

// AggregateCounter applies atomic deltas. Implementations never read then overwrite.
type AggregateCounter interface {
	Add(ctx context.Context, d Delta) error
	Snapshot(ctx context.Context) (Aggregate, error)
}
