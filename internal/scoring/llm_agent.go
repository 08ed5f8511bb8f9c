package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/maroofsyyed/Duesense1/internal/llm"
	"github.com/maroofsyyed/Duesense1/internal/model"
)

// Criterion is one rubric line of an agent.
type Criterion struct {
	Key   string
	Label string
	Max   float64
}

// Evidence is one labelled block of data shown to an agent.
type Evidence struct {
	Label string
	Data  func(Input) any
}

// LLMAgent scores a dimension by asking the quality model to apply a rubric
// to selected evidence.
type LLMAgent struct {
	name     string
	role     string
	criteria []Criterion
	evidence []Evidence
	gen      llm.Generator
}

// NewLLMAgent creates a rubric agent. Its max is the sum of its criteria.
func NewLLMAgent(gen llm.Generator, name, role string, criteria []Criterion, evidence []Evidence) *LLMAgent {
	return &LLMAgent{name: name, role: role, criteria: criteria, evidence: evidence, gen: gen}
}

// Name implements Agent.
func (a *LLMAgent) Name() string { return a.name }

// Max implements Agent.
func (a *LLMAgent) Max() float64 {
	var total float64
	for _, c := range a.criteria {
		total += c.Max
	}
	return total
}

type agentOutput struct {
	SubScore     float64            `json:"sub_score"`
	SubBreakdown map[string]float64 `json:"sub_breakdown"`
	Reasoning    string             `json:"reasoning"`
	RedFlags     []string           `json:"red_flags"`
	GreenFlags   []string           `json:"green_flags"`
	Confidence   string             `json:"confidence"`
}

var agentSchema = llm.MustCompileSchema("agent_score", map[string]any{
	"type":     "object",
	"required": []string{"sub_score"},
	"properties": map[string]any{
		"sub_score": map[string]any{"type": "number"},
		"sub_breakdown": map[string]any{
			"type":                 "object",
			"additionalProperties": map[string]any{"type": "number"},
		},
		"reasoning":   map[string]any{"type": "string"},
		"red_flags":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"green_flags": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"confidence":  map[string]any{"type": "string"},
	},
})

// Score implements Agent. The model's self-reported confidence is kept as
// is; which model tier served the call does not change it.
func (a *LLMAgent) Score(ctx context.Context, in Input) (*model.AgentScore, error) {
	out, resp, err := llm.GenerateJSON[agentOutput](ctx, a.gen, llm.Request{
		Operation: "score." + a.name,
		System:    fmt.Sprintf("You are a %s. Score ONLY from the data provided. Never invent facts. Respond with JSON only.", a.role),
		Prompt:    a.prompt(in),
		Variant:   llm.VariantQuality,
	}, agentSchema)
	if err != nil {
		return nil, err
	}

	return &model.AgentScore{
		SubScore:     out.SubScore,
		SubBreakdown: out.SubBreakdown,
		RedFlags:     out.RedFlags,
		GreenFlags:   out.GreenFlags,
		Confidence:   model.Confidence(out.Confidence),
		Reasoning:    out.Reasoning,
		Model:        resp.Model,
	}, nil
}

func (a *LLMAgent) prompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Evaluate %s for a venture investment. Score out of %g points.\n\nRUBRIC:\n", strings.ReplaceAll(a.name, "_", " "), a.Max())
	keys := make([]string, len(a.criteria))
	for i, c := range a.criteria {
		fmt.Fprintf(&b, "- %s (0-%g): %s\n", c.Key, c.Max, c.Label)
		keys[i] = fmt.Sprintf("%q: number", c.Key)
	}
	for _, e := range a.evidence {
		fmt.Fprintf(&b, "\n%s:\n%s\n", e.Label, compact(e.Data(in), 3000))
	}
	fmt.Fprintf(&b, `
Facts marked "not_mentioned" are absent; score them as missing evidence, not as negatives you imagine.

Respond with JSON only:
{
  "sub_breakdown": {%s},
  "sub_score": number (0-%g, the sum of sub_breakdown),
  "reasoning": "string citing the data above",
  "red_flags": ["string"],
  "green_flags": ["string"],
  "confidence": "HIGH | MEDIUM | LOW"
}`, strings.Join(keys, ", "), a.Max())
	return b.String()
}

func bundleField(f func(*model.ExtractionBundle) any) func(Input) any {
	return func(in Input) any {
		if in.Bundle == nil {
			return nil
		}
		return f(in.Bundle)
	}
}

func enrichmentField(source string) func(Input) any {
	return func(in Input) any { return enrichmentData(in, source) }
}

// RequiredAgents returns the five weighted dimensions: founders 30, market
// 20, technical moat 20, traction 20 and business model 10.
func RequiredAgents(gen llm.Generator) []Agent {
	return []Agent{
		NewLLMAgent(gen, "founder_quality", "VC founder evaluation specialist",
			[]Criterion{
				{"domain_expertise", "years in industry, relevant experience, previous companies", 10},
				{"track_record", "prior exits, companies built, leadership experience", 10},
				{"technical_credibility", "technical skills, GitHub presence, engineering background", 10},
			},
			[]Evidence{
				{"FOUNDERS", bundleField(func(b *model.ExtractionBundle) any { return b.Founders })},
				{"FOUNDER RESEARCH", enrichmentField("founder_profiles")},
				{"GITHUB", enrichmentField("github")},
				{"SOLUTION", bundleField(func(b *model.ExtractionBundle) any { return b.Solution })},
			}),
		NewLLMAgent(gen, "market_opportunity", "VC market analysis specialist",
			[]Criterion{
				{"market_size", "TAM/SAM/SOM validation and growth rate", 7},
				{"market_timing", "technology readiness, behaviour shifts, regulation", 7},
				{"competition", "saturation and barriers to entry", 6},
			},
			[]Evidence{
				{"MARKET (FROM MATERIALS)", bundleField(func(b *model.ExtractionBundle) any { return b.Market })},
				{"MARKET RESEARCH", enrichmentField("market")},
				{"NEWS", enrichmentField("news")},
				{"PROBLEM", bundleField(func(b *model.ExtractionBundle) any { return b.Problem })},
			}),
		NewLLMAgent(gen, "technical_moat", "VC technical defensibility evaluator",
			[]Criterion{
				{"proprietary_tech", "unique algorithms, patents, proprietary data", 7},
				{"engineering_velocity", "GitHub activity, tech stack, development pace", 7},
				{"network_effects", "data flywheel, network effects, switching costs", 6},
			},
			[]Evidence{
				{"SOLUTION", bundleField(func(b *model.ExtractionBundle) any { return b.Solution })},
				{"GITHUB", enrichmentField("github")},
				{"COMPETITORS", enrichmentField("competitors")},
				{"COMPETITIVE ADVANTAGES", bundleField(func(b *model.ExtractionBundle) any { return b.CompetitiveAdvantages })},
			}),
		NewLLMAgent(gen, "traction", "VC traction analyst",
			[]Criterion{
				{"revenue_growth", ">200% YoY=7, >100%=5, >50%=3, any revenue=1", 7},
				{"unit_economics", "LTV/CAC above 3, payback under 12 months, margins", 6},
				{"customer_quality", "enterprise customers, retention, logos", 4},
				{"product_metrics", "DAU/MAU, activation, engagement", 3},
			},
			[]Evidence{
				{"TRACTION", bundleField(func(b *model.ExtractionBundle) any { return b.Traction })},
				{"BUSINESS MODEL", bundleField(func(b *model.ExtractionBundle) any { return b.BusinessModel })},
				{"WEBSITE", enrichmentField("website")},
			}),
		NewLLMAgent(gen, "business_model", "VC business model analyst",
			[]Criterion{
				{"revenue_model", "clear pricing and monetization strategy", 4},
				{"scalability", "path to $100M ARR, capital efficiency", 3},
				{"capital_efficiency", "burn rate, runway, efficiency metrics", 3},
			},
			[]Evidence{
				{"BUSINESS MODEL", bundleField(func(b *model.ExtractionBundle) any { return b.BusinessModel })},
				{"FUNDING", bundleField(func(b *model.ExtractionBundle) any { return b.Funding })},
				{"TRACTION", bundleField(func(b *model.ExtractionBundle) any { return b.Traction })},
			}),
	}
}
