package domain

import "time"

// AutoTapResult describes one reconciliation of simulated taps.
type AutoTapResult struct {
	Seconds int64
	Taps    int64
	Reward  int64
}

// ApplyAutoclicker credits simulated taps for the whole seconds elapsed since
// the last application, capped at maxSeconds and bounded by energy. The
// application cursor moves to now whenever at least one second elapsed.
func (a *Account) ApplyAutoclicker(now time.Time, maxSeconds int64) AutoTapResult {
	st, ok := a.Boosters[BoosterAutoclicker]
	if !ok || !st.IsEffective(now) {
		return AutoTapResult{}
	}

	if st.LastAppliedAt.IsZero() {
		st.LastAppliedAt = now
		a.Boosters[BoosterAutoclicker] = st
		return AutoTapResult{}
	}

	secs := int64(now.Sub(st.LastAppliedAt) / time.Second)
	if secs < 1 {
		return AutoTapResult{}
	}
	if secs > maxSeconds {
		secs = maxSeconds
	}

	taps := secs
	if taps > a.Energy {
		taps = a.Energy
	}
	reward := taps * a.TapPower

	a.Energy -= taps
	a.TotalTaps += taps
	a.Credit(reward)

	st.LastAppliedAt = now
	a.Boosters[BoosterAutoclicker] = st

	return AutoTapResult{Seconds: secs, Taps: taps, Reward: reward}
}

// EstimateOffline projects what the autoclicker has accrued since the last
// application without touching the ledger. It is an upper bound: the window
// runs to min(now, ExpiresAt), while ApplyAutoclicker stops crediting once the
// booster lapses, so the tail after the last sweep before expiry is never paid.
func (a *Account) EstimateOffline(now time.Time) AutoTapResult {
	st, ok := a.Boosters[BoosterAutoclicker]
	if !ok || !st.Active || st.LastAppliedAt.IsZero() {
		return AutoTapResult{}
	}

	end := now
	if st.ExpiresAt.Before(end) {
		end = st.ExpiresAt
	}

	secs := int64(end.Sub(st.LastAppliedAt) / time.Second)
	if secs < 1 {
		return AutoTapResult{}
	}

	projected := a.Clone()
	projected.Regenerate(now)

	taps := secs
	if taps > projected.Energy {
		taps = projected.Energy
	}

	return AutoTapResult{Seconds: secs, Taps: taps, Reward: taps * a.TapPower}
}
