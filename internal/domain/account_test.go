package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAccount_Defaults(t *testing.T) {
	a := NewAccount(42, "neo", "Thomas", "Anderson", epoch)

	assert.Equal(t, int64(1000), a.Energy)
	assert.Equal(t, int64(1000), a.MaxEnergy)
	assert.Equal(t, int64(1), a.TapPower)
	assert.Equal(t, epoch, a.EnergyCursor)
	assert.Equal(t, "default", a.ActiveSkin)
	assert.True(t, a.HasSkin("default"))
	assert.Equal(t, 0, a.Tier)
}

func TestClone_IsDeep(t *testing.T) {
	ref := int64(7)
	a := NewAccount(1, "", "", "", epoch)
	a.ReferredBy = &ref
	a.RecentTapIntervals = []int64{100}
	a.Boosters[BoosterDoubleTap] = BoosterState{Active: true}

	c := a.Clone()
	*c.ReferredBy = 8
	c.RecentTapIntervals[0] = 1
	c.UnlockedSkins[0] = "fire"
	c.Boosters[BoosterDoubleTap] = BoosterState{}

	assert.Equal(t, int64(7), *a.ReferredBy)
	assert.Equal(t, int64(100), a.RecentTapIntervals[0])
	assert.Equal(t, "default", a.UnlockedSkins[0])
	assert.True(t, a.Boosters[BoosterDoubleTap].Active)
}

func TestCredit_RefreshesTier(t *testing.T) {
	a := NewAccount(1, "", "", "", epoch)

	a.Credit(999)
	assert.Equal(t, 0, a.Tier)

	a.Credit(1)
	assert.Equal(t, 1, a.Tier)
	assert.Equal(t, int64(1000), a.Coins)
}

func TestBan_BurnsCoinsKeepsHistory(t *testing.T) {
	a := NewAccount(1, "", "", "", epoch)
	a.Credit(5000)

	burned := a.Ban("bot")

	assert.Equal(t, int64(5000), burned)
	assert.Equal(t, int64(0), a.Coins)
	assert.Equal(t, int64(5000), a.TotalEarned)
	assert.True(t, a.Banned)
}

func TestRecordTapInterval_ReportsTransition(t *testing.T) {
	a := NewAccount(1, "", "", "", epoch)

	var flips int
	for i := 0; i < 20; i++ {
		if a.RecordTapInterval(40) {
			flips++
		}
	}

	assert.Equal(t, 1, flips)
	assert.True(t, a.Suspicious)
	assert.Equal(t, int64(40), a.MeanRecentInterval)
}
