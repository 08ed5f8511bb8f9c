package cost

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Ledger accumulates usage for one pipeline run. It is safe for concurrent
// use by the units of a stage.
type Ledger struct {
	mu       sync.Mutex
	tokens   map[string][2]int64 // model → {input, output}
	jinaTok  int64
	pplxQ    int64
	ocrPages int64
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{tokens: make(map[string][2]int64)}
}

// AddTokens records model token usage.
func (l *Ledger) AddTokens(model string, input, output int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.tokens[model]
	l.tokens[model] = [2]int64{t[0] + input, t[1] + output}
}

// AddJinaTokens records Jina Reader token usage.
func (l *Ledger) AddJinaTokens(n int64) {
	l.mu.Lock()
	l.jinaTok += n
	l.mu.Unlock()
}

// AddPerplexityQuery records one Perplexity query.
func (l *Ledger) AddPerplexityQuery() {
	l.mu.Lock()
	l.pplxQ++
	l.mu.Unlock()
}

// AddOCRPages records pages sent to the vision OCR strategy.
func (l *Ledger) AddOCRPages(n int64) {
	l.mu.Lock()
	l.ocrPages += n
	l.mu.Unlock()
}

// Summary is a priced snapshot of a ledger.
type Summary struct {
	InputTokens  int64
	OutputTokens int64
	Models       []string
	TotalUSD     float64
}

// Summarize prices the ledger with calc.
func (l *Ledger) Summarize(calc *Calculator) Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	var s Summary
	for model, t := range l.tokens {
		s.Models = append(s.Models, model)
		s.InputTokens += t[0]
		s.OutputTokens += t[1]
		s.TotalUSD += calc.Claude(model, t[0], t[1])
	}
	sort.Strings(s.Models)
	s.TotalUSD += calc.Jina(l.jinaTok) + calc.Perplexity(l.pplxQ) + calc.Mistral(l.ocrPages)
	return s
}

// Log writes the priced summary for a deal.
func (l *Ledger) Log(calc *Calculator, dealID string) {
	s := l.Summarize(calc)
	zap.L().Info("cost: run usage",
		zap.String("deal_id", dealID),
		zap.Strings("models", s.Models),
		zap.Int64("input_tokens", s.InputTokens),
		zap.Int64("output_tokens", s.OutputTokens),
		zap.Float64("estimated_cost_usd", s.TotalUSD),
	)
}

type ctxKey struct{}

// WithLedger attaches a ledger to ctx.
func WithLedger(ctx context.Context, l *Ledger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the ledger attached to ctx, or nil.
func FromContext(ctx context.Context) *Ledger {
	l, _ := ctx.Value(ctxKey{}).(*Ledger)
	return l
}
