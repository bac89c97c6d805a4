package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withAutoclicker(t *testing.T, energy int64) *Account {
	t.Helper()
	a := NewAccount(1, "", "", "", epoch)
	a.Energy = energy
	_, err := a.ActivateBooster(BoosterAutoclicker, time.Hour, epoch)
	require.NoError(t, err)
	return a
}

func TestApplyAutoclicker(t *testing.T) {
	testCases := []struct {
		name     string
		energy   int64
		after    time.Duration
		cap      int64
		expected AutoTapResult
	}{
		{name: "under a second", energy: 100, after: 500 * time.Millisecond, cap: 60, expected: AutoTapResult{}},
		{name: "plain window", energy: 100, after: 30 * time.Second, cap: 60, expected: AutoTapResult{Seconds: 30, Taps: 30, Reward: 30}},
		{name: "foreground cap", energy: 1000, after: 10 * time.Minute, cap: 60, expected: AutoTapResult{Seconds: 60, Taps: 60, Reward: 60}},
		{name: "bounded by energy", energy: 7, after: 30 * time.Second, cap: 60, expected: AutoTapResult{Seconds: 30, Taps: 7, Reward: 7}},
		{name: "after expiry", energy: 100, after: 2 * time.Hour, cap: 3600, expected: AutoTapResult{}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			a := withAutoclicker(t, tc.energy)
			res := a.ApplyAutoclicker(epoch.Add(tc.after), tc.cap)

			assert.Equal(t, tc.expected, res)
			assert.Equal(t, tc.energy-res.Taps, a.Energy)
			assert.Equal(t, res.Reward, a.Coins)
			assert.LessOrEqual(t, a.Coins, a.TotalEarned)
		})
	}
}

func TestApplyAutoclicker_AdvancesCursorEvenWithoutEnergy(t *testing.T) {
	a := withAutoclicker(t, 0)
	now := epoch.Add(20 * time.Second)

	res := a.ApplyAutoclicker(now, 60)

	assert.Equal(t, int64(0), res.Taps)
	assert.Equal(t, now, a.Booster(BoosterAutoclicker).LastAppliedAt)
}

func TestApplyAutoclicker_WindowAppliedOnce(t *testing.T) {
	a := withAutoclicker(t, 500)
	now := epoch.Add(45 * time.Second)

	first := a.ApplyAutoclicker(now, 60)
	second := a.ApplyAutoclicker(now, 60)

	assert.Equal(t, int64(45), first.Taps)
	assert.Equal(t, AutoTapResult{}, second)
}

func TestEstimateOffline_DoesNotMutate(t *testing.T) {
	a := withAutoclicker(t, 1000)
	a.TapPower = 3
	before := a.Clone()

	est := a.EstimateOffline(epoch.Add(90 * time.Minute))

	assert.Equal(t, int64(3600), est.Seconds)
	assert.Equal(t, int64(1000), est.Taps)
	assert.Equal(t, int64(3000), est.Reward)
	assert.Equal(t, before, a)
}
