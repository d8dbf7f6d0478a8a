package cost

import "strings"

// Rates holds per-provider judge model pricing configuration.
type Rates struct {
	OpenAI    map[string]ModelRate `yaml:"openai" mapstructure:"openai"`
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelRate holds per-model token pricing (per million tokens, USD).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Calculator computes estimated API spend for judge runs.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Judge computes the estimated cost of a judge run from its token usage.
// Unknown providers or models cost 0.
func (c *Calculator) Judge(provider, model string, input, output int) float64 {
	var table map[string]ModelRate
	switch provider {
	case "openai":
		table = c.rates.OpenAI
	case "anthropic":
		table = c.rates.Anthropic
	default:
		return 0
	}

	rate, ok := lookupRate(table, model)
	if !ok {
		return 0
	}

	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output

	return inCost + outCost
}

// lookupRate resolves a model id against the rate table, falling back to
// the longest registered prefix so dated snapshots price like their base
// model (claude-sonnet-4-5-20250929 matches claude-sonnet-4-5).
func lookupRate(table map[string]ModelRate, model string) (ModelRate, bool) {
	if rate, ok := table[model]; ok {
		return rate, true
	}

	best := ""
	var bestRate ModelRate
	for name, rate := range table {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
			bestRate = rate
		}
	}
	if best == "" {
		return ModelRate{}, false
	}
	return bestRate, true
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		OpenAI: map[string]ModelRate{
			"gpt-4o-mini":  {Input: 0.15, Output: 0.60},
			"gpt-4o":       {Input: 2.50, Output: 10.00},
			"gpt-4.1-mini": {Input: 0.40, Output: 1.60},
			"gpt-4.1":      {Input: 2.00, Output: 8.00},
		},
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5":  {Input: 1.00, Output: 5.00},
			"claude-sonnet-4-5": {Input: 3.00, Output: 15.00},
			"claude-opus-4-1":   {Input: 15.00, Output: 75.00},
		},
	}
}
