package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/Proton-105/tapcoin-engine/internal/domain"
)

// PriceRule prices the n-th purchase of a booster as floor(Base * Growth^n).
type PriceRule struct {
	Base   int64
	Growth float64
}

// DefaultPrices are the coin prices of the purchasable boosters.
func DefaultPrices() map[domain.BoosterKind]PriceRule {
	return map[domain.BoosterKind]PriceRule{
		domain.BoosterDoubleTap: {Base: 100, Growth: 2.0},
		domain.BoosterCapacity:  {Base: 50, Growth: 1.5},
	}
}

// PriceTable holds validated price rules.
type PriceTable struct {
	rules map[domain.BoosterKind]PriceRule
}

// NewPriceTable rejects rules that would get cheaper with use.
func NewPriceTable(rules map[domain.BoosterKind]PriceRule) (*PriceTable, error) {
	t := &PriceTable{rules: make(map[domain.BoosterKind]PriceRule, len(rules))}
	for kind, rule := range rules {
		if !kind.Valid() {
			return nil, fmt.Errorf("price rule for unknown booster %q", kind)
		}
		if rule.Base <= 0 {
			return nil, fmt.Errorf("price rule for %s: base must be positive", kind)
		}
		if rule.Growth < 1 || math.IsNaN(rule.Growth) || math.IsInf(rule.Growth, 0) {
			return nil, fmt.Errorf("price rule for %s: growth %v must be >= 1", kind, rule.Growth)
		}
		t.rules[kind] = rule
	}
	return t, nil
}

// PriceFor returns the price of buying kind at level, and false if kind is not sold for coins.
func (t *PriceTable) PriceFor(kind domain.BoosterKind, level int) (int64, bool) {
	rule, ok := t.rules[kind]
	if !ok {
		return 0, false
	}
	if level < 0 {
		level = 0
	}

	price := math.Floor(float64(rule.Base) * math.Pow(rule.Growth, float64(level)))
	if price >= math.MaxInt64 {
		return math.MaxInt64, true
	}
	return int64(price), true
}

// Kinds lists the purchasable kinds in a stable order.
func (t *PriceTable) Kinds() []domain.BoosterKind {
	kinds := make([]domain.BoosterKind, 0, len(t.rules))
	for k := range t.rules {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

type UpgradeKind string

const (
	UpgradeTapPower UpgradeKind = "tap_power"
	UpgradeStamina  UpgradeKind = "stamina"
)

// UpgradeLevel is one permanent upgrade step: the resulting value and its cost.
type UpgradeLevel struct {
	Value int64
	Cost  int64
}

// DefaultUpgrades are the permanent upgrade ladders, index 0 being level 1.
func DefaultUpgrades() map[UpgradeKind][]UpgradeLevel {
	return map[UpgradeKind][]UpgradeLevel{
		UpgradeTapPower: {
			{Value: 2, Cost: 3000},
			{Value: 4, Cost: 6000},
			{Value: 8, Cost: 12000},
			{Value: 16, Cost: 24000},
			{Value: 32, Cost: 48000},
		},
		UpgradeStamina: {
			{Value: 2000, Cost: 7000},
			{Value: 3000, Cost: 12600},
			{Value: 4000, Cost: 22680},
			{Value: 5000, Cost: 40824},
			{Value: 6000, Cost: 73483},
		},
	}
}

func validateUpgrades(upgrades map[UpgradeKind][]UpgradeLevel) error {
	for kind, levels := range upgrades {
		var prev int64
		for i, l := range levels {
			if l.Value <= prev || l.Cost <= 0 {
				return fmt.Errorf("upgrade %s level %d: values must increase and cost must be positive", kind, i+1)
			}
			prev = l.Value
		}
	}
	return nil
}

// currentLevel derives the purchased level from the upgraded value.
func currentLevel(levels []UpgradeLevel, value int64) int {
	level := 0
	for i, l := range levels {
		if value >= l.Value {
			level = i + 1
		}
	}
	return level
}
