package cost

import "github.com/maroofsyyed/Duesense1/internal/config"

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic          map[string]ModelRate
	JinaPerMTok        float64
	PerplexityPerQuery float64
	MistralPerPage     float64
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64
	Output float64
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of one model's token usage.
func (c *Calculator) Claude(model string, input, output int64) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// Jina computes the cost for Jina Reader token usage.
func (c *Calculator) Jina(tokens int64) float64 {
	return (float64(tokens) / 1e6) * c.rates.JinaPerMTok
}

// Perplexity returns the cost of n Perplexity queries.
func (c *Calculator) Perplexity(n int64) float64 {
	return float64(n) * c.rates.PerplexityPerQuery
}

// Mistral returns the cost of OCR over n pages.
func (c *Calculator) Mistral(pages int64) float64 {
	return float64(pages) * c.rates.MistralPerPage
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
		},
		JinaPerMTok:        0.02,
		PerplexityPerQuery: 0.005,
		MistralPerPage:     0.001,
	}
}

// RatesFromConfig overlays configured third-party pricing on DefaultRates.
func RatesFromConfig(p config.PricingConfig) Rates {
	r := DefaultRates()
	if p.Jina.PerMTok > 0 {
		r.JinaPerMTok = p.Jina.PerMTok
	}
	if p.Perplexity.PerQuery > 0 {
		r.PerplexityPerQuery = p.Perplexity.PerQuery
	}
	if p.Mistral.PerPage > 0 {
		r.MistralPerPage = p.Mistral.PerPage
	}
	return r
}
