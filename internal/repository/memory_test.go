package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/tapcoin-engine/internal/domain"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func seedAccount(t *testing.T, s *MemoryAccountStore, id int64) {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), domain.NewAccount(id, "", "", "", epoch)))
}

func TestMemoryAccountStore_CreateAndGet(t *testing.T) {
	s := NewMemoryAccountStore()
	ctx := context.Background()

	_, err := s.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	seedAccount(t, s, 1)
	assert.ErrorIs(t, s.Create(ctx, domain.NewAccount(1, "", "", "", epoch)), ErrAccountExists)

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	got.Coins = 999

	again, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.Coins, "Get must return a copy")
}

func TestMemoryAccountStore_MutateDiscardsOnError(t *testing.T) {
	s := NewMemoryAccountStore()
	seedAccount(t, s, 1)
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := s.Mutate(ctx, 1, func(a *domain.Account) error {
		a.Coins = 100
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Coins)

	_, err = s.Mutate(ctx, 2, func(*domain.Account) error { return nil })
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestMemoryAccountStore_MutateSerializes(t *testing.T) {
	s := NewMemoryAccountStore()
	seedAccount(t, s, 1)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := s.Mutate(ctx, 1, func(a *domain.Account) error {
				a.Credit(1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), got.Coins)
}

func TestMemoryAccountStore_ListAutoclickerDue(t *testing.T) {
	s := NewMemoryAccountStore()
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		seedAccount(t, s, id)
	}

	for _, id := range []int64{1, 3} {
		_, err := s.Mutate(ctx, id, func(a *domain.Account) error {
			_, err := a.ActivateBooster(domain.BoosterAutoclicker, time.Hour, epoch)
			return err
		})
		require.NoError(t, err)
	}
	_, err := s.Mutate(ctx, 3, func(a *domain.Account) error {
		a.Ban("bot")
		return nil
	})
	require.NoError(t, err)

	ids, err := s.ListAutoclickerDue(ctx, epoch.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	ids, err = s.ListAutoclickerDue(ctx, epoch.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryAccountStore_CountActiveReferrals(t *testing.T) {
	s := NewMemoryAccountStore()
	ctx := context.Background()
	seedAccount(t, s, 1)

	referrer := int64(1)
	for i, lastActive := range []time.Time{epoch, epoch.Add(-10 * 24 * time.Hour), epoch.Add(-time.Hour)} {
		a := domain.NewAccount(int64(10+i), "", "", "", epoch)
		a.ReferredBy = &referrer
		a.LastActiveAt = lastActive
		require.NoError(t, s.Create(ctx, a))
	}

	n, err := s.CountActiveReferrals(ctx, 1, epoch.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryPromoStore_Claim(t *testing.T) {
	s := NewMemoryPromoStore()
	ctx := context.Background()
	expires := epoch.Add(time.Hour)

	require.NoError(t, s.Create(ctx, &PromoCode{Code: "welcome", Reward: 100, MaxUses: 2, ExpiresAt: &expires}))
	assert.ErrorIs(t, s.Create(ctx, &PromoCode{Code: "WELCOME"}), ErrPromoExists)

	testCases := []struct {
		name      string
		code      string
		accountID int64
		now       time.Time
		expected  error
	}{
		{name: "unknown", code: "NOPE1", accountID: 1, now: epoch, expected: ErrPromoNotFound},
		{name: "first use, any case", code: "Welcome", accountID: 1, now: epoch, expected: nil},
		{name: "same account again", code: "WELCOME", accountID: 1, now: epoch, expected: ErrPromoAlreadyUsed},
		{name: "second account", code: "WELCOME", accountID: 2, now: epoch, expected: nil},
		{name: "exhausted", code: "WELCOME", accountID: 3, now: epoch, expected: ErrPromoExhausted},
	}

	for _, tc := range testCases {
		_, err := s.Claim(ctx, tc.code, tc.accountID, tc.now)
		if tc.expected == nil {
			assert.NoError(t, err, tc.name)
		} else {
			assert.ErrorIs(t, err, tc.expected, tc.name)
		}
	}

	require.NoError(t, s.Release(ctx, "WELCOME", 2))
	_, err := s.Claim(ctx, "WELCOME", 3, epoch.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrPromoExpired)

	p, err := s.Claim(ctx, "WELCOME", 3, epoch)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, p.UsedBy)
}

func TestMemoryAggregate_ConcurrentAdds(t *testing.T) {
	agg := NewMemoryAggregate()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = agg.Add(ctx, Delta{Coins: 10, Taps: 1})
		}()
	}
	wg.Wait()

	snap, err := agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, Aggregate{TotalCoins: 1000, TotalTaps: 100}, snap)
}
