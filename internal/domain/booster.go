package domain

import (
	"errors"
	"time"
)

type BoosterKind string

const (
	BoosterDoubleTap   BoosterKind = "double_tap"
	BoosterCapacity    BoosterKind = "capacity"
	BoosterAutoclicker BoosterKind = "autoclicker"
)

// CapacityBonus is the max energy added while a capacity booster is effective.
const CapacityBonus = 1000

var (
	ErrUnknownBooster  = errors.New("unknown booster kind")
	ErrInvalidDuration = errors.New("booster duration must be positive")
)

// BoosterKinds lists every supported kind.
func BoosterKinds() []BoosterKind {
	return []BoosterKind{BoosterDoubleTap, BoosterCapacity, BoosterAutoclicker}
}

func (k BoosterKind) Valid() bool {
	switch k {
	case BoosterDoubleTap, BoosterCapacity, BoosterAutoclicker:
		return true
	default:
		return false
	}
}

// BoosterState is the stored state of one booster kind.
type BoosterState struct {
	Active            bool      `json:"active"`
	ExpiresAt         time.Time `json:"expires_at"`
	Level             int       `json:"level"`
	LastAppliedAt     time.Time `json:"last_applied_at,omitempty"`
	BaselineMaxEnergy int64     `json:"baseline_max_energy,omitempty"`
}

// IsEffective reports whether the booster applies at now. A lapsed but still
// active flag is treated as inactive.
func (b BoosterState) IsEffective(now time.Time) bool {
	return b.Active && b.ExpiresAt.After(now)
}

// Booster returns the state for kind, zero if never activated.
func (a *Account) Booster(kind BoosterKind) BoosterState {
	return a.Boosters[kind]
}

func (a *Account) IsEffective(kind BoosterKind, now time.Time) bool {
	return a.Boosters[kind].IsEffective(now)
}

// SettleBoosters restores the energy baseline of a lapsed capacity booster.
func (a *Account) SettleBoosters(now time.Time) {
	st, ok := a.Boosters[BoosterCapacity]
	if !ok || !st.Active || st.IsEffective(now) {
		return
	}

	a.MaxEnergy = st.BaselineMaxEnergy
	a.clampEnergy()

	st.Active = false
	a.Boosters[BoosterCapacity] = st
}

// ActivateBooster starts or extends a booster window. An effective booster is
// extended from its current expiry, otherwise a fresh window starts at now.
func (a *Account) ActivateBooster(kind BoosterKind, duration time.Duration, now time.Time) (BoosterState, error) {
	if !kind.Valid() {
		return BoosterState{}, ErrUnknownBooster
	}
	if duration <= 0 {
		return BoosterState{}, ErrInvalidDuration
	}

	a.SettleBoosters(now)
	if a.Boosters == nil {
		a.Boosters = make(map[BoosterKind]BoosterState)
	}

	st := a.Boosters[kind]
	if st.IsEffective(now) {
		st.ExpiresAt = st.ExpiresAt.Add(duration)
		a.Boosters[kind] = st
		return st, nil
	}

	st.Active = true
	st.ExpiresAt = now.Add(duration)

	switch kind {
	case BoosterCapacity:
		st.BaselineMaxEnergy = a.MaxEnergy
		a.MaxEnergy = st.BaselineMaxEnergy + CapacityBonus
	case BoosterAutoclicker:
		st.LastAppliedAt = now
	}

	a.Boosters[kind] = st
	return st, nil
}

// BaseMaxEnergy is the max energy without any capacity bonus.
func (a *Account) BaseMaxEnergy(now time.Time) int64 {
	st := a.Boosters[BoosterCapacity]
	if st.IsEffective(now) {
		return st.BaselineMaxEnergy
	}
	return a.MaxEnergy
}

// SetBaseMaxEnergy moves the base capacity, keeping an effective bonus on top.
func (a *Account) SetBaseMaxEnergy(value int64, now time.Time) {
	st, ok := a.Boosters[BoosterCapacity]
	if ok && st.IsEffective(now) {
		st.BaselineMaxEnergy = value
		a.Boosters[BoosterCapacity] = st
		a.MaxEnergy = value + CapacityBonus
	} else {
		a.MaxEnergy = value
	}
	a.clampEnergy()
}

// TapMultiplier is the reward per tap at now.
func (a *Account) TapMultiplier(now time.Time) int64 {
	if a.IsEffective(BoosterDoubleTap, now) {
		return a.TapPower * 2
	}
	return a.TapPower
}
