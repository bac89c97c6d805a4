package league

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierFor(t *testing.T) {
	testCases := []struct {
		name        string
		totalEarned int64
		expectedID  int
	}{
		{name: "zero is bronze", totalEarned: 0, expectedID: 0},
		{name: "just below silver", totalEarned: 999, expectedID: 0},
		{name: "exactly silver", totalEarned: 1000, expectedID: 1},
		{name: "gold", totalEarned: 7500, expectedID: 2},
		{name: "legend upper edge", totalEarned: 79999, expectedID: 5},
		{name: "top tier", totalEarned: 80000, expectedID: 6},
		{name: "far past top", totalEarned: 10_000_000, expectedID: 6},
		{name: "negative falls back to bronze", totalEarned: -5, expectedID: 0},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedID, TierFor(tc.totalEarned).ID)
		})
	}
}

func TestProgress(t *testing.T) {
	assert.Equal(t, float64(100), Progress(80000))
	assert.Equal(t, float64(100), Progress(1_000_000))
	assert.Equal(t, float64(0), Progress(0))
	assert.InDelta(t, 50.0, Progress(500), 0.0001)
	assert.InDelta(t, 25.0, Progress(2000), 0.0001)
}

func TestNext(t *testing.T) {
	next, ok := Next(TierFor(0))
	assert.True(t, ok)
	assert.Equal(t, "SILVER", next.Name)

	_, ok = Next(Top())
	assert.False(t, ok)
}
