// Package league holds the static tier ladder that ranks players by lifetime earnings.
package league

// Tier is one rung of the ladder.
type Tier struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	MinTotalEarned int64  `json:"min_total_earned"`
	Color          string `json:"color"`
}

var ladder = []Tier{
	{ID: 0, Name: "BRONZE", MinTotalEarned: 0, Color: "#CD7F32"},
	{ID: 1, Name: "SILVER", MinTotalEarned: 1000, Color: "#C0C0C0"},
	{ID: 2, Name: "GOLD", MinTotalEarned: 5000, Color: "#FFD700"},
	{ID: 3, Name: "DIAMOND", MinTotalEarned: 10000, Color: "#B9F2FF"},
	{ID: 4, Name: "MYTHIC", MinTotalEarned: 15000, Color: "#FF00FF"},
	{ID: 5, Name: "LEGEND", MinTotalEarned: 30000, Color: "#FF6347"},
	{ID: 6, Name: "GOD", MinTotalEarned: 80000, Color: "#FFD700"},
}

// Tiers returns a copy of the full ladder, lowest first.
func Tiers() []Tier {
	out := make([]Tier, len(ladder))
	copy(out, ladder)
	return out
}

// Top returns the highest tier.
func Top() Tier {
	return ladder[len(ladder)-1]
}

// TierFor returns the highest tier whose minimum does not exceed totalEarned.
func TierFor(totalEarned int64) Tier {
	for i := len(ladder) - 1; i >= 0; i-- {
		if totalEarned >= ladder[i].MinTotalEarned {
			return ladder[i]
		}
	}
	return ladder[0]
}

// Next returns the tier above t, or false when t is the top tier.
func Next(t Tier) (Tier, bool) {
	if t.ID+1 >= len(ladder) {
		return Tier{}, false
	}
	return ladder[t.ID+1], true
}

// Progress reports how far totalEarned is through its current tier, in percent.
func Progress(totalEarned int64) float64 {
	current := TierFor(totalEarned)
	next, ok := Next(current)
	if !ok {
		return 100
	}

	span := float64(next.MinTotalEarned - current.MinTotalEarned)
	p := float64(totalEarned-current.MinTotalEarned) / span * 100

	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
