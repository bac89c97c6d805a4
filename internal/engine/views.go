package engine

import (
	"time"

	"github.com/Proton-105/tapcoin-engine/internal/domain"
	"github.com/Proton-105/tapcoin-engine/internal/league"
)

// BoosterView is the public state of one booster.
type BoosterView struct {
	Kind        domain.BoosterKind `json:"kind"`
	Effective   bool               `json:"effective"`
	ExpiresAt   *time.Time         `json:"expires_at,omitempty"`
	SecondsLeft int64              `json:"seconds_left"`
	Level       int                `json:"level"`
}

// AccountView is the public ledger projection returned by every operation.
type AccountView struct {
	ID                  int64         `json:"id"`
	Username            string        `json:"username"`
	Coins               int64         `json:"coins"`
	TotalEarned         int64         `json:"total_earned"`
	TotalTaps           int64         `json:"total_taps"`
	Energy              int64         `json:"energy"`
	MaxEnergy           int64         `json:"max_energy"`
	TapPower            int64         `json:"tap_power"`
	Multiplier          int64         `json:"multiplier"`
	League              league.Tier   `json:"league"`
	Progress            float64       `json:"progress"`
	ActiveSkin          string        `json:"active_skin"`
	UnlockedSkins       []string      `json:"unlocked_skins"`
	CompletedTasks      []string      `json:"completed_tasks"`
	Boosters            []BoosterView `json:"boosters"`
	ReferralCount       int           `json:"referral_count"`
	ActiveReferralCount int           `json:"active_referral_count"`
	ReferralEarnings    int64         `json:"referral_earnings"`
	Suspicious          bool          `json:"suspicious"`
	Banned              bool          `json:"banned"`
	BanReason           string        `json:"ban_reason,omitempty"`
}

func viewOf(a *domain.Account, now time.Time) AccountView {
	v := AccountView{
		ID:                  a.ID,
		Username:            a.Username,
		Coins:               a.Coins,
		TotalEarned:         a.TotalEarned,
		TotalTaps:           a.TotalTaps,
		Energy:              a.Energy,
		MaxEnergy:           a.MaxEnergy,
		TapPower:            a.TapPower,
		Multiplier:          a.TapMultiplier(now),
		League:              a.League(),
		Progress:            league.Progress(a.TotalEarned),
		ActiveSkin:          a.ActiveSkin,
		UnlockedSkins:       append([]string(nil), a.UnlockedSkins...),
		CompletedTasks:      append([]string(nil), a.CompletedTasks...),
		ReferralCount:       a.ReferralCount,
		ActiveReferralCount: a.ActiveReferralCount,
		ReferralEarnings:    a.ReferralEarnings,
		Suspicious:          a.Suspicious,
		Banned:              a.Banned,
		BanReason:           a.BanReason,
	}

	for _, kind := range domain.BoosterKinds() {
		st, ok := a.Boosters[kind]
		if !ok {
			continue
		}
		bv := BoosterView{Kind: kind, Level: st.Level, Effective: st.IsEffective(now)}
		if bv.Effective {
			exp := st.ExpiresAt
			bv.ExpiresAt = &exp
			bv.SecondsLeft = int64(exp.Sub(now) / time.Second)
		}
		v.Boosters = append(v.Boosters, bv)
	}

	return v
}
