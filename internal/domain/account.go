package domain

import (
	"slices"
	"time"

	"github.com/Proton-105/tapcoin-engine/internal/anticheat"
	"github.com/Proton-105/tapcoin-engine/internal/league"
)

const (
	DefaultMaxEnergy = 1000
	DefaultTapPower  = 1
	DefaultSkin      = "default"
)

// Account is the per-player ledger.
type Account struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string

	Coins       int64
	TotalEarned int64
	TotalTaps   int64

	Energy       int64
	MaxEnergy    int64
	TapPower     int64
	EnergyCursor time.Time

	Tier           int
	ActiveSkin     string
	UnlockedSkins  []string
	CompletedTasks []string

	Boosters map[BoosterKind]BoosterState

	RecentTapIntervals []int64
	Suspicious         bool
	MeanRecentInterval int64

	ReferredBy          *int64
	ReferralCount       int
	ActiveReferralCount int
	ReferralEarnings    int64

	Banned    bool
	BanReason string

	LastActiveAt time.Time
	CreatedAt    time.Time
}

// NewAccount returns a zeroed ledger created at now.
func NewAccount(id int64, username, firstName, lastName string, now time.Time) *Account {
	return &Account{
		ID:            id,
		Username:      username,
		FirstName:     firstName,
		LastName:      lastName,
		Energy:        DefaultMaxEnergy,
		MaxEnergy:     DefaultMaxEnergy,
		TapPower:      DefaultTapPower,
		EnergyCursor:  now,
		Tier:          league.TierFor(0).ID,
		ActiveSkin:    DefaultSkin,
		UnlockedSkins: []string{DefaultSkin},
		Boosters:      make(map[BoosterKind]BoosterState),
		LastActiveAt:  now,
		CreatedAt:     now,
	}
}

// Clone returns a deep copy safe to mutate independently.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}

	c := *a
	c.UnlockedSkins = slices.Clone(a.UnlockedSkins)
	c.CompletedTasks = slices.Clone(a.CompletedTasks)
	c.RecentTapIntervals = slices.Clone(a.RecentTapIntervals)

	c.Boosters = make(map[BoosterKind]BoosterState, len(a.Boosters))
	for k, v := range a.Boosters {
		c.Boosters[k] = v
	}

	if a.ReferredBy != nil {
		ref := *a.ReferredBy
		c.ReferredBy = &ref
	}

	return &c
}

// Credit adds earned coins and refreshes the cached tier.
func (a *Account) Credit(amount int64) {
	if amount <= 0 {
		return
	}
	a.Coins += amount
	a.TotalEarned += amount
	a.refreshTier()
}

// Debit spends coins. The caller checks the balance first.
func (a *Account) Debit(amount int64) {
	a.Coins -= amount
	if a.Coins < 0 {
		a.Coins = 0
	}
}

// CreditReferral books a referral bonus.
func (a *Account) CreditReferral(bonus int64) {
	if bonus <= 0 {
		return
	}
	a.ReferralEarnings += bonus
	a.Credit(bonus)
}

// RecordTapInterval appends an observed interval and re-runs the analyzer.
// It reports whether the account became suspicious with this sample.
func (a *Account) RecordTapInterval(ms int64) bool {
	was := a.Suspicious

	a.RecentTapIntervals = anticheat.Record(a.RecentTapIntervals, ms)
	verdict := anticheat.Analyze(a.RecentTapIntervals)
	a.Suspicious = verdict.Suspicious
	a.MeanRecentInterval = verdict.MeanMS

	return verdict.Suspicious && !was
}

// Ban flags the account and burns its spendable balance. It returns the burned amount.
func (a *Account) Ban(reason string) int64 {
	burned := a.Coins
	a.Banned = true
	a.BanReason = reason
	a.Coins = 0
	return burned
}

func (a *Account) HasSkin(id string) bool {
	return slices.Contains(a.UnlockedSkins, id)
}

func (a *Account) AddSkin(id string) {
	if !a.HasSkin(id) {
		a.UnlockedSkins = append(a.UnlockedSkins, id)
	}
}

func (a *Account) HasCompletedTask(id string) bool {
	return slices.Contains(a.CompletedTasks, id)
}

func (a *Account) CompleteTask(id string) {
	if !a.HasCompletedTask(id) {
		a.CompletedTasks = append(a.CompletedTasks, id)
	}
}

// League returns the tier for the current lifetime earnings.
func (a *Account) League() league.Tier {
	return league.TierFor(a.TotalEarned)
}

func (a *Account) refreshTier() {
	a.Tier = league.TierFor(a.TotalEarned).ID
}
