package scoring

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/maroofsyyed/Duesense1/internal/llm"
	"github.com/maroofsyyed/Duesense1/internal/model"
)

var thesisSchema = llm.MustCompileSchema("thesis", map[string]any{
	"type":     "object",
	"required": []string{"recommendation", "investment_thesis"},
	"properties": map[string]any{
		"recommendation": map[string]any{
			"type": "string",
			"enum": []string{
				string(model.RecommendStrongBuy),
				string(model.RecommendBuy),
				string(model.RecommendHold),
				string(model.RecommendPass),
			},
		},
		"investment_thesis": map[string]any{"type": "string", "minLength": 1},
		"top_reasons":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"top_risks":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"expected_return":   map[string]any{"type": "string"},
	},
})

// fallbackThesis keeps the numeric result usable when the thesis call fails.
func fallbackThesis(rec *model.ScoreRecord) model.Thesis {
	return model.Thesis{
		Recommendation: model.RecommendHold,
		InvestmentThesis: fmt.Sprintf(
			"Thesis generation failed. The numeric result stands at %.1f/100 (%s); manual review recommended.",
			rec.CompositeScore, rec.Tier),
		TopReasons:     []string{},
		TopRisks:       []string{"thesis could not be generated"},
		ExpectedReturn: "N/A",
		Fallback:       true,
	}
}

func (e *Engine) thesis(ctx context.Context, bundle *model.ExtractionBundle, rec *model.ScoreRecord) model.Thesis {
	if e.gen == nil {
		return fallbackThesis(rec)
	}

	out, _, err := llm.GenerateJSON[model.Thesis](ctx, e.gen, llm.Request{
		Operation: "score.thesis",
		System:    "You are a senior VC partner. Base the recommendation only on the scores and facts provided.",
		Prompt:    thesisPrompt(bundle, rec),
		Variant:   llm.VariantQuality,
	}, thesisSchema)
	if err != nil {
		zap.L().Warn("scoring: thesis generation failed, using fallback", zap.Error(err))
		return fallbackThesis(rec)
	}
	if out.TopReasons == nil {
		out.TopReasons = []string{}
	}
	if out.TopRisks == nil {
		out.TopRisks = []string{}
	}
	out.Fallback = false
	return out
}

func thesisPrompt(bundle *model.ExtractionBundle, rec *model.ScoreRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the investment analysis of %s, write the investment view.\n\nSCORES:\n", companyName(bundle))
	fmt.Fprintf(&b, "- Total: %.1f/100 (%s, confidence %s)\n", rec.CompositeScore, rec.Tier, rec.Confidence)

	names := make([]string, 0, len(rec.Required))
	for name := range rec.Required {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := rec.Required[name]
		fmt.Fprintf(&b, "- %s: %.1f/%g - %s\n", name, s.SubScore, s.Max, excerpt(s.Reasoning, 150))
	}

	fmt.Fprintf(&b, "\nRED FLAGS: %s\nGREEN FLAGS: %s\n", compact(head(rec.RedFlags, 5), 1000), compact(head(rec.GreenFlags, 5), 1000))
	if bundle != nil {
		fmt.Fprintf(&b, "\nCOMPANY: %s\n", compact(bundle.Company, 2000))
	}
	b.WriteString(`
Respond with JSON only:
{
  "recommendation": "STRONG BUY | BUY | HOLD | PASS",
  "investment_thesis": "2-3 paragraph thesis",
  "top_reasons": ["reason 1", "reason 2", "reason 3"],
  "top_risks": ["risk 1", "risk 2", "risk 3"],
  "expected_return": "Nx in Y years"
}`)
	return b.String()
}

func companyName(b *model.ExtractionBundle) string {
	if b == nil || !model.Known(b.Company.Name) {
		return "the company"
	}
	return b.Company.Name
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}
