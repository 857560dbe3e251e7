package agent

import (
	"fmt"
	"strings"
)

// Tier is a capability/cost/latency class of the model service.
type Tier string

const (
	TierFast     Tier = "fast"
	TierBalanced Tier = "balanced"
	TierHigh     Tier = "high"
)

// Tiers lists every tier from cheapest to most capable.
var Tiers = []Tier{TierFast, TierBalanced, TierHigh}

// ParseTier accepts a tier name in any case.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tiers {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown model tier %q (want fast, balanced or high)", s)
}

// Next cycles to the following tier, wrapping around after high.
func (t Tier) Next() Tier {
	for i, known := range Tiers {
		if t == known {
			return Tiers[(i+1)%len(Tiers)]
		}
	}
	return TierFast
}

// Description is a one-line summary for pickers.
func (t Tier) Description() string {
	switch t {
	case TierFast:
		return "fast, lowest cost"
	case TierBalanced:
		return "balanced cost and capability"
	case TierHigh:
		return "most capable, slowest"
	}
	return string(t)
}

// Models maps each tier to a model identifier.
type Models struct {
	Fast     string
	Balanced string
	High     string
}

// DefaultModels returns the built-in tier mapping.
func DefaultModels() Models {
	return Models{
		Fast:     "gpt-4o-mini",
		Balanced: "gpt-4o",
		High:     "gpt-5",
	}
}

// Model returns the identifier for tier, falling back to the default mapping
// for tiers left empty.
func (m Models) Model(t Tier) string {
	defaults := DefaultModels()
	pick := func(configured, fallback string) string {
		if configured != "" {
			return configured
		}
		return fallback
	}
	switch t {
	case TierFast:
		return pick(m.Fast, defaults.Fast)
	case TierBalanced:
		return pick(m.Balanced, defaults.Balanced)
	default:
		return pick(m.High, defaults.High)
	}
}
