// Package routing decides which model tier serves a message and what it costs.
//
// The classifier and the router are pure apart from the random source the
// router is built with, so a seeded source makes tier selection reproducible.
package routing

import "fmt"

// Tier is a cost/capability bracket of the completion provider.
type Tier string

const (
	TierLight    Tier = "light"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// Tiers lists every tier from cheapest to most expensive.
var Tiers = []Tier{TierLight, TierStandard, TierPremium}

// TierSpec holds the static attributes of a tier. Prices are minor currency
// units (centavos) per 1000 tokens.
type TierSpec struct {
	MaxContextTokens int
	CostPerKInput    float64
	CostPerKOutput   float64
	// TargetUsageShare is the share of traffic the routing policy aims for,
	// in percent. It is not enforced.
	TargetUsageShare int
}

var tierSpecs = map[Tier]TierSpec{
	TierLight:    {MaxContextTokens: 200000, CostPerKInput: 25, CostPerKOutput: 125, TargetUsageShare: 70},
	TierStandard: {MaxContextTokens: 200000, CostPerKInput: 300, CostPerKOutput: 1500, TargetUsageShare: 25},
	TierPremium:  {MaxContextTokens: 200000, CostPerKInput: 1500, CostPerKOutput: 7500, TargetUsageShare: 5},
}

// Spec returns the attributes of t. Unknown tiers get a zero spec.
func (t Tier) Spec() TierSpec {
	return tierSpecs[t]
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	_, ok := tierSpecs[t]
	return ok
}

func (t Tier) String() string {
	return string(t)
}

// ParseTier converts a user supplied name into a Tier. The empty string
// parses to the empty Tier, meaning "no override".
func ParseTier(s string) (Tier, error) {
	if s == "" {
		return "", nil
	}
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}
