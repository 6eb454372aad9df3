package routing

import "math"

// Cost returns the price of a completion in integer minor currency units.
func Cost(tier Tier, inputTokens, outputTokens int) int64 {
	spec := tier.Spec()
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}

	inputCost := float64(inputTokens) / 1000.0 * spec.CostPerKInput
	outputCost := float64(outputTokens) / 1000.0 * spec.CostPerKOutput

	return int64(math.Round(inputCost + outputCost))
}
