package domain

import "time"

// Regenerate settles energy up to now at one unit per whole elapsed second.
// The cursor moves by whole seconds only so sub-second remainders carry over.
func (a *Account) Regenerate(now time.Time) {
	if a.EnergyCursor.IsZero() {
		a.EnergyCursor = now
		return
	}

	elapsed := int64(now.Sub(a.EnergyCursor) / time.Second)
	if elapsed < 1 {
		return
	}

	a.Energy += elapsed
	if a.Energy > a.MaxEnergy {
		a.Energy = a.MaxEnergy
	}
	a.EnergyCursor = a.EnergyCursor.Add(time.Duration(elapsed) * time.Second)
}

func (a *Account) clampEnergy() {
	if a.Energy > a.MaxEnergy {
		a.Energy = a.MaxEnergy
	}
	if a.Energy < 0 {
		a.Energy = 0
	}
}
