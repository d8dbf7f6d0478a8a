package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		OpenAI: map[string]ModelRate{
			"gpt-4o-mini": {Input: 0.15, Output: 0.60},
			"gpt-4o":      {Input: 2.50, Output: 10.00},
		},
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5":  {Input: 1.00, Output: 5.00},
			"claude-sonnet-4-5": {Input: 3.00, Output: 15.00},
		},
	}
}

func TestJudgeCost(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name     string
		provider string
		model    string
		input    int
		output   int
		want     float64
	}{
		{
			name:     "openai mini simple",
			provider: "openai", model: "gpt-4o-mini",
			input: 1000000, output: 100000,
			want: 0.15 + 0.06, // 0.15 input + 0.06 output
		},
		{
			name:     "anthropic sonnet",
			provider: "anthropic", model: "claude-sonnet-4-5",
			input: 1000000, output: 100000,
			want: 3.00 + 1.50, // 3.00 input + 1.50 output
		},
		{
			name:     "dated snapshot uses base model rate",
			provider: "anthropic", model: "claude-sonnet-4-5-20250929",
			input: 1000000, output: 100000,
			want: 3.00 + 1.50,
		},
		{
			name:     "prefix match prefers longest entry",
			provider: "openai", model: "gpt-4o-mini-2024-07-18",
			input: 1000000, output: 1000000,
			want: 0.15 + 0.60, // mini rate, not the shorter gpt-4o prefix
		},
		{
			name:     "unknown model returns 0",
			provider: "openai", model: "qwen2.5-72b",
			input: 1000000, output: 1000000,
			want: 0,
		},
		{
			name:     "unknown provider returns 0",
			provider: "cohere", model: "gpt-4o-mini",
			input: 1000000, output: 1000000,
			want: 0,
		},
		{
			name:     "zero tokens returns 0",
			provider: "openai", model: "gpt-4o-mini",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := calc.Judge(tt.provider, tt.model, tt.input, tt.output)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()

	assert.Contains(t, rates.OpenAI, "gpt-4o-mini")
	assert.Contains(t, rates.OpenAI, "gpt-4.1")
	assert.Contains(t, rates.Anthropic, "claude-haiku-4-5")
	assert.Contains(t, rates.Anthropic, "claude-sonnet-4-5")
	assert.Contains(t, rates.Anthropic, "claude-opus-4-1")
}
