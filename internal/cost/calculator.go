// Package cost estimates the USD cost of LLM extraction calls.
package cost

import "github.com/sells-group/newsfacts/internal/model"

// Provider names used as keys throughout the extract pipeline.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Rates holds per-provider, per-model pricing.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    map[string]ModelRate `yaml:"openai" mapstructure:"openai"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	BatchDiscount float64 `yaml:"batch_discount" mapstructure:"batch_discount"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Known reports whether the calculator has a rate for provider/model.
func (c *Calculator) Known(provider, modelName string) bool {
	_, ok := c.rate(provider, modelName)
	return ok
}

func (c *Calculator) rate(provider, modelName string) (ModelRate, bool) {
	var table map[string]ModelRate
	switch provider {
	case ProviderAnthropic:
		table = c.rates.Anthropic
	case ProviderOpenAI:
		table = c.rates.OpenAI
	}
	r, ok := table[modelName]
	return r, ok
}

// Cost returns the USD cost of usage on provider/model. Unknown models cost 0.
func (c *Calculator) Cost(provider, modelName string, isBatch bool, u model.TokenUsage) float64 {
	rate, ok := c.rate(provider, modelName)
	if !ok {
		return 0
	}

	batchMul := 1.0
	if isBatch && rate.BatchDiscount > 0 {
		batchMul = rate.BatchDiscount
	}

	in := (float64(u.InputTokens) / 1e6) * rate.Input
	out := (float64(u.OutputTokens) / 1e6) * rate.Output
	cw := (float64(u.CacheCreationTokens) / 1e6) * rate.Input * rate.CacheWriteMul
	cr := (float64(u.CacheReadTokens) / 1e6) * rate.Input * rate.CacheReadMul

	return (in + out + cw + cr) * batchMul
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 1.00, Output: 5.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		OpenAI: map[string]ModelRate{
			"gpt-4o-mini": {
				Input: 0.15, Output: 0.60,
				BatchDiscount: 0.5, CacheReadMul: 0.5,
			},
			"gpt-4o": {
				Input: 2.50, Output: 10.00,
				BatchDiscount: 0.5, CacheReadMul: 0.5,
			},
			"gpt-4.1-mini": {
				Input: 0.40, Output: 1.60,
				BatchDiscount: 0.5, CacheReadMul: 0.25,
			},
		},
	}
}
