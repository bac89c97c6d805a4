package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/tapcoin-engine/internal/domain"
	apperrors "github.com/Proton-105/tapcoin-engine/internal/errors"
)

func boosterView(t *testing.T, v AccountView, kind domain.BoosterKind) BoosterView {
	t.Helper()
	for _, b := range v.Boosters {
		if b.Kind == kind {
			return b
		}
	}
	t.Fatalf("booster %s not in view", kind)
	return BoosterView{}
}

func TestActivateBooster_StacksExpiry(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, nil)
	ctx := context.Background()

	req := ActivateRequest{AccountID: 1, Kind: "autoclicker", Duration: time.Hour}
	_, err := f.eng.ActivateBooster(ctx, req)
	require.NoError(t, err)
	view, err := f.eng.ActivateBooster(ctx, req)
	require.NoError(t, err)

	b := boosterView(t, view, domain.BoosterAutoclicker)
	require.NotNil(t, b.ExpiresAt)
	assert.Equal(t, epoch.Add(2*time.Hour), *b.ExpiresAt)
	assert.True(t, b.Effective)
	assert.Equal(t, int64(7200), b.SecondsLeft)
}

func TestActivateBooster_Validation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, nil)
	ctx := context.Background()

	_, err := f.eng.ActivateBooster(ctx, ActivateRequest{AccountID: 1, Kind: "turbo", Duration: time.Hour})
	assertKind(t, err, apperrors.KindInvalidInput)

	_, err = f.eng.ActivateBooster(ctx, ActivateRequest{AccountID: 1, Kind: "capacity", Duration: 0})
	assertKind(t, err, apperrors.KindInvalidInput)

	_, err = f.eng.ActivateBooster(ctx, ActivateRequest{AccountID: 5, Kind: "capacity", Duration: time.Minute})
	assertKind(t, err, apperrors.KindNotFound)
}

func TestCapacityBooster_RestoresBaselineOnLapse(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, nil)
	ctx := context.Background()

	view, err := f.eng.ActivateBooster(ctx, ActivateRequest{AccountID: 1, Kind: "capacity", Duration: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), view.MaxEnergy)

	f.clk.Advance(30 * time.Minute)
	view, err = f.eng.ActivateBooster(ctx, ActivateRequest{AccountID: 1, Kind: "capacity", Duration: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), view.MaxEnergy, "stacking does not add a second bonus")

	f.clk.Advance(30 * time.Minute)
	view, err = f.eng.Account(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), view.Energy)

	f.clk.Advance(time.Hour)
	view, err = f.eng.Account(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), view.MaxEnergy)
	assert.Equal(t, int64(1000), view.Energy)
}

func TestPurchaseBooster_PriceGrowsWithLevel(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, func(a *domain.Account) {
		a.Coins = 1000
		a.TotalEarned = 1000
	})
	ctx := context.Background()

	steps := []struct {
		kind  domain.BoosterKind
		price int64
		level int
	}{
		{kind: domain.BoosterDoubleTap, price: 100, level: 1},
		{kind: domain.BoosterDoubleTap, price: 200, level: 2},
		{kind: domain.BoosterCapacity, price: 50, level: 1},
		{kind: domain.BoosterCapacity, price: 75, level: 2},
		{kind: domain.BoosterCapacity, price: 112, level: 3},
	}

	var spent int64
	for _, s := range steps {
		res, err := f.eng.PurchaseBooster(ctx, 1, s.kind)
		require.NoError(t, err)
		assert.Equal(t, s.price, res.Price, "%s level %d", s.kind, s.level)
		assert.Equal(t, s.level, res.Level)
		spent += s.price
	}

	a := f.get(t, 1)
	assert.Equal(t, 1000-spent, a.Coins)
	assert.Equal(t, int64(1000), a.TotalEarned, "spending never lowers total earned")
	assert.Equal(t, -spent, f.snapshot(t).TotalCoins)

	prices, err := f.eng.BoosterPrices(ctx, 1)
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, BoosterPrice{Kind: domain.BoosterCapacity, Level: 3, Price: 168}, prices[0])
	assert.Equal(t, BoosterPrice{Kind: domain.BoosterDoubleTap, Level: 2, Price: 400}, prices[1])
}

func TestPurchaseBooster_Rejections(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, func(a *domain.Account) { a.Coins = 99 })
	ctx := context.Background()

	_, err := f.eng.PurchaseBooster(ctx, 1, domain.BoosterDoubleTap)
	assertKind(t, err, apperrors.KindInsufficientResource)

	_, err = f.eng.PurchaseBooster(ctx, 1, domain.BoosterAutoclicker)
	assertKind(t, err, apperrors.KindInvalidInput)

	_, err = f.eng.PurchaseBooster(ctx, 1, "turbo")
	assertKind(t, err, apperrors.KindInvalidInput)

	a := f.get(t, 1)
	assert.Equal(t, int64(99), a.Coins)
	assert.Empty(t, a.Boosters)
}

func TestExpiryWarnings(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, nil)
	ctx := context.Background()

	for _, req := range []ActivateRequest{
		{AccountID: 1, Kind: "autoclicker", Duration: 30 * time.Minute},
		{AccountID: 1, Kind: "capacity", Duration: 2 * time.Hour},
		{AccountID: 1, Kind: "double_tap", Duration: 10 * time.Minute},
	} {
		_, err := f.eng.ActivateBooster(ctx, req)
		require.NoError(t, err)
	}

	f.clk.Advance(90 * time.Second)
	warnings, err := f.eng.ExpiryWarnings(ctx, 1)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.BoosterAutoclicker, warnings[0].Kind)
	assert.Equal(t, 29, warnings[0].MinutesLeft)

	f.clk.Advance(time.Hour)
	warnings, err = f.eng.ExpiryWarnings(ctx, 1)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.BoosterCapacity, warnings[0].Kind)
}

func TestPurchaseUpgrade(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, func(a *domain.Account) {
		a.Coins = 100000
		a.TotalEarned = 100000
	})
	ctx := context.Background()

	res, err := f.eng.PurchaseUpgrade(ctx, 1, UpgradeTapPower, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), res.Cost)
	assert.Equal(t, int64(2), res.Account.TapPower)

	_, err = f.eng.PurchaseUpgrade(ctx, 1, UpgradeTapPower, 1)
	assertKind(t, err, apperrors.KindConflict)

	_, err = f.eng.PurchaseUpgrade(ctx, 1, UpgradeTapPower, 3)
	assertKind(t, err, apperrors.KindConflict)

	_, err = f.eng.PurchaseUpgrade(ctx, 1, UpgradeTapPower, 6)
	assertKind(t, err, apperrors.KindInvalidInput)

	_, err = f.eng.PurchaseUpgrade(ctx, 1, "luck", 1)
	assertKind(t, err, apperrors.KindInvalidInput)

	assert.Equal(t, int64(97000), f.get(t, 1).Coins)
}

func TestPurchaseUpgrade_StaminaUnderCapacityBooster(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, func(a *domain.Account) {
		a.Coins = 7000
		a.TotalEarned = 7000
	})
	ctx := context.Background()

	_, err := f.eng.ActivateBooster(ctx, ActivateRequest{AccountID: 1, Kind: "capacity", Duration: time.Hour})
	require.NoError(t, err)

	res, err := f.eng.PurchaseUpgrade(ctx, 1, UpgradeStamina, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), res.Account.MaxEnergy)
	assert.Zero(t, res.Account.Coins)

	_, err = f.eng.PurchaseUpgrade(ctx, 1, UpgradeStamina, 2)
	assertKind(t, err, apperrors.KindInsufficientResource)

	f.clk.Advance(2 * time.Hour)
	view, err := f.eng.Account(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), view.MaxEnergy, "the upgrade survives the booster")
}

func TestLapsedCapacity_SettledByEveryMutation(t *testing.T) {
	tests := []struct {
		name string
		run  func(ctx context.Context, e *Engine) (AccountView, error)
	}{
		{name: "activate skin", run: func(ctx context.Context, e *Engine) (AccountView, error) {
			return e.ActivateSkin(ctx, 1, "default")
		}},
		{name: "grant skin", run: func(ctx context.Context, e *Engine) (AccountView, error) {
			return e.GrantSkin(ctx, 1, "fire")
		}},
		{name: "refresh referrals", run: func(ctx context.Context, e *Engine) (AccountView, error) {
			return e.RefreshReferralActivity(ctx, 1)
		}},
		{name: "ban", run: func(ctx context.Context, e *Engine) (AccountView, error) {
			return e.BanAccount(ctx, 1, "")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, 1, nil)
			ctx := context.Background()

			_, err := f.eng.ActivateBooster(ctx, ActivateRequest{AccountID: 1, Kind: "capacity", Duration: time.Hour})
			require.NoError(t, err)
			f.clk.Advance(2 * time.Hour)

			view, err := tt.run(ctx, f.eng)
			require.NoError(t, err)
			assert.Equal(t, int64(1000), view.MaxEnergy)

			stored := f.get(t, 1)
			assert.Equal(t, int64(1000), stored.MaxEnergy)
			assert.False(t, stored.Boosters[domain.BoosterCapacity].Active)
			assert.LessOrEqual(t, stored.Energy, stored.MaxEnergy)
		})
	}
}
