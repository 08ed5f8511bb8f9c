package cost

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maroofsyyed/Duesense1/internal/config"
)

func testRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"haiku":  {Input: 1.00, Output: 5.00},
			"sonnet": {Input: 3.00, Output: 15.00},
		},
		JinaPerMTok:        0.02,
		PerplexityPerQuery: 0.005,
		MistralPerPage:     0.001,
	}
}

func TestClaude(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name   string
		model  string
		input  int64
		output int64
		want   float64
	}{
		{"sonnet 1M each", "sonnet", 1_000_000, 1_000_000, 18.0},
		{"haiku input only", "haiku", 2_000_000, 0, 2.0},
		{"unknown model", "gpt", 1_000_000, 1_000_000, 0},
		{"zero", "sonnet", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, calc.Claude(tt.model, tt.input, tt.output), 0.0001)
		})
	}
}

func TestThirdPartyCosts(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	assert.InDelta(t, 0.02, calc.Jina(1_000_000), 0.0001)
	assert.InDelta(t, 0.015, calc.Perplexity(3), 0.0001)
	assert.InDelta(t, 0.012, calc.Mistral(12), 0.0001)
}

func TestRatesFromConfig(t *testing.T) {
	t.Parallel()

	r := RatesFromConfig(config.PricingConfig{Perplexity: config.PerplexityPricing{PerQuery: 0.01}})
	assert.InDelta(t, 0.01, r.PerplexityPerQuery, 0.0001)
	assert.InDelta(t, 0.02, r.JinaPerMTok, 0.0001)
	assert.Contains(t, r.Anthropic, "claude-sonnet-4-5-20250929")
}

func TestLedger_Summarize(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.AddTokens("sonnet", 100_000, 10_000)
		}()
	}
	wg.Wait()
	l.AddTokens("haiku", 1_000_000, 0)
	l.AddPerplexityQuery()
	l.AddJinaTokens(1_000_000)
	l.AddOCRPages(10)

	s := l.Summarize(NewCalculator(testRates()))
	assert.Equal(t, int64(2_000_000), s.InputTokens)
	assert.Equal(t, int64(100_000), s.OutputTokens)
	assert.Equal(t, []string{"haiku", "sonnet"}, s.Models)
	// sonnet: 1M in = 3.0, 0.1M out = 1.5; haiku: 1.0; pplx 0.005; jina 0.02; ocr 0.01
	assert.InDelta(t, 5.535, s.TotalUSD, 0.0001)
}

func TestLedger_Context(t *testing.T) {
	t.Parallel()

	assert.Nil(t, FromContext(context.Background()))

	l := NewLedger()
	ctx := WithLedger(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}
