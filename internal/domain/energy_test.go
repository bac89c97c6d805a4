package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func drained(energy int64) *Account {
	a := NewAccount(1, "player", "", "", epoch)
	a.Energy = energy
	return a
}

func TestRegenerate(t *testing.T) {
	testCases := []struct {
		name           string
		energy         int64
		after          time.Duration
		expectedEnergy int64
		expectedCursor time.Time
	}{
		{name: "sub second is a no-op", energy: 10, after: 900 * time.Millisecond, expectedEnergy: 10, expectedCursor: epoch},
		{name: "whole seconds only", energy: 10, after: 5500 * time.Millisecond, expectedEnergy: 15, expectedCursor: epoch.Add(5 * time.Second)},
		{name: "clamped at max", energy: 995, after: time.Minute, expectedEnergy: 1000, expectedCursor: epoch.Add(time.Minute)},
		{name: "cursor in the future", energy: 10, after: -time.Minute, expectedEnergy: 10, expectedCursor: epoch},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			a := drained(tc.energy)
			a.Regenerate(epoch.Add(tc.after))

			assert.Equal(t, tc.expectedEnergy, a.Energy)
			assert.Equal(t, tc.expectedCursor, a.EnergyCursor)
		})
	}
}

func TestRegenerate_IdempotentWithinSecond(t *testing.T) {
	a := drained(0)
	now := epoch.Add(3*time.Second + 200*time.Millisecond)

	a.Regenerate(now)
	a.Regenerate(now)

	assert.Equal(t, int64(3), a.Energy)
}

func TestRegenerate_Additive(t *testing.T) {
	split := drained(0)
	split.Regenerate(epoch.Add(1700 * time.Millisecond))
	split.Regenerate(epoch.Add(4200 * time.Millisecond))

	once := drained(0)
	once.Regenerate(epoch.Add(4200 * time.Millisecond))

	assert.Equal(t, once.Energy, split.Energy)
	assert.Equal(t, once.EnergyCursor, split.EnergyCursor)
	assert.Equal(t, int64(4), split.Energy)
}

func TestRegenerate_StaysInBounds(t *testing.T) {
	a := drained(0)
	now := epoch
	for i := 0; i < 200; i++ {
		now = now.Add(time.Duration(i*37) * time.Millisecond * 100)
		a.Regenerate(now)
		assert.GreaterOrEqual(t, a.Energy, int64(0))
		assert.LessOrEqual(t, a.Energy, a.MaxEnergy)
	}
}
