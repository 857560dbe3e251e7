package client

var modelPricing = map[string]struct {
	InputCostPer1K  float64
	OutputCostPer1K float64
}{
	"gpt-4o":        {0.0025, 0.01},
	"gpt-4o-mini":   {0.00015, 0.0006},
	"gpt-4-turbo":   {0.01, 0.03},
	"gpt-4":         {0.03, 0.06},
	"gpt-3.5-turbo": {0.0015, 0.002},
	"gpt-5":         {0.005, 0.015},
	"gpt-5-mini":    {0.0003, 0.0012},
	"gpt-5-nano":    {0.0001, 0.0004},
}

// EstimateCost returns the expected USD cost of a call. Unknown models are
// priced as gpt-4o.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	pricing, exists := modelPricing[model]
	if !exists {
		pricing = modelPricing["gpt-4o"]
	}

	inputCost := float64(inputTokens) / 1000.0 * pricing.InputCostPer1K
	outputCost := float64(outputTokens) / 1000.0 * pricing.OutputCostPer1K

	return inputCost + outputCost
}
