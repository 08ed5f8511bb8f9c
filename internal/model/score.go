package model

import "strings"

// Tier is the classification derived from the composite score.
type Tier string

const (
	Tier1    Tier = "TIER_1"
	Tier2    Tier = "TIER_2"
	Tier3    Tier = "TIER_3"
	TierPass Tier = "PASS"
)

// tierFloors is ordered highest first; the lower bound is inclusive.
var tierFloors = []struct {
	floor float64
	tier  Tier
}{
	{85, Tier1},
	{70, Tier2},
	{55, Tier3},
}

// TierFor classifies a composite score. Comparison is on the raw value with
// no rounding, so 84.999 is TIER_2.
func TierFor(composite float64) Tier {
	for _, t := range tierFloors {
		if composite >= t.floor {
			return t.tier
		}
	}
	return TierPass
}

// Confidence is an agent's self-reported certainty.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// ParseConfidence normalizes free-form model output. Unknown values map
// to MEDIUM.
func ParseConfidence(s string) Confidence {
	switch Confidence(strings.ToUpper(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceLow:
		return ConfidenceLow
	default:
		return ConfidenceMedium
	}
}

// MinConfidence returns the lowest confidence in cs, or LOW when cs is empty.
func MinConfidence(cs ...Confidence) Confidence {
	if len(cs) == 0 {
		return ConfidenceLow
	}
	low := cs[0]
	for _, c := range cs[1:] {
		if c.rank() < low.rank() {
			low = c
		}
	}
	return low
}

// AgentScore is one scoring agent's output, bounded by Max.
type AgentScore struct {
	Agent        string             `json:"agent"`
	Max          float64            `json:"max"`
	SubScore     float64            `json:"sub_score"`
	SubBreakdown map[string]float64 `json:"sub_breakdown"`
	RedFlags     []string           `json:"red_flags"`
	GreenFlags   []string           `json:"green_flags"`
	Confidence   Confidence         `json:"confidence"`
	Reasoning    string             `json:"reasoning"`
	Model        string             `json:"model,omitempty"`
	Failed       bool               `json:"failed,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Recommendation is the thesis verdict.
type Recommendation string

const (
	RecommendStrongBuy Recommendation = "STRONG BUY"
	RecommendBuy       Recommendation = "BUY"
	RecommendHold      Recommendation = "HOLD"
	RecommendPass      Recommendation = "PASS"
)

// Thesis is the free-text investment view attached to a score.
type Thesis struct {
	Recommendation   Recommendation `json:"recommendation"`
	InvestmentThesis string         `json:"investment_thesis"`
	TopReasons       []string       `json:"top_reasons"`
	TopRisks         []string       `json:"top_risks"`
	ExpectedReturn   string         `json:"expected_return"`
	Fallback         bool           `json:"fallback,omitempty"`
}

// ScoreRecord is the scoring outcome for one run. CompositeScore is always
// the clamped sum of Required sub-scores.
type ScoreRecord struct {
	Required       map[string]AgentScore `json:"required"`
	Supplemental   map[string]AgentScore `json:"supplemental"`
	CompositeScore float64               `json:"composite_score"`
	Tier           Tier                  `json:"tier"`
	Confidence     Confidence            `json:"confidence"`
	RedFlags       []string              `json:"red_flags"`
	GreenFlags     []string              `json:"green_flags"`
	Thesis         Thesis                `json:"thesis"`
}
