// Package scoring rates a deal across weighted dimensions and derives the
// composite score, tier, confidence and investment thesis.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

// RequiredTotal is the sum the required agents' maxima must reach.
const RequiredTotal = 100

// Input is what every agent sees.
type Input struct {
	Bundle     *model.ExtractionBundle
	Enrichment map[string]model.EnrichmentRecord
}

// Agent scores one dimension out of Max points.
type Agent interface {
	Name() string
	Max() float64
	Score(ctx context.Context, in Input) (*model.AgentScore, error)
}

// ValidateRoster checks that required agents have unique names and maxima
// summing to exactly RequiredTotal.
func ValidateRoster(required []Agent) error {
	if len(required) == 0 {
		return eris.New("scoring: empty required roster")
	}
	seen := make(map[string]bool, len(required))
	var total float64
	for _, a := range required {
		if seen[a.Name()] {
			return eris.Errorf("scoring: duplicate agent %q", a.Name())
		}
		seen[a.Name()] = true
		if a.Max() <= 0 {
			return eris.Errorf("scoring: agent %q has non-positive max %v", a.Name(), a.Max())
		}
		total += a.Max()
	}
	if math.Abs(total-RequiredTotal) > 1e-9 {
		return eris.Errorf("scoring: required maxima sum to %v, want %d", total, RequiredTotal)
	}
	return nil
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// sanitize applies the score bounds to an agent's raw output.
func sanitize(s *model.AgentScore, name string, max float64) {
	s.Agent = name
	s.Max = max
	s.SubScore = clamp(s.SubScore, 0, max)
	if s.SubBreakdown == nil {
		s.SubBreakdown = map[string]float64{}
	}
	for k, v := range s.SubBreakdown {
		s.SubBreakdown[k] = clamp(v, 0, math.Inf(1))
	}
	if s.RedFlags == nil {
		s.RedFlags = []string{}
	}
	if s.GreenFlags == nil {
		s.GreenFlags = []string{}
	}
	s.Confidence = model.ParseConfidence(string(s.Confidence))
}

// placeholder is the minimum score recorded for a failed agent.
func placeholder(name string, max float64, err error) model.AgentScore {
	return model.AgentScore{
		Agent:        name,
		Max:          max,
		SubScore:     0,
		SubBreakdown: map[string]float64{},
		RedFlags:     []string{},
		GreenFlags:   []string{},
		Confidence:   model.ConfidenceLow,
		Reasoning:    "scoring unavailable",
		Failed:       true,
		Error:        err.Error(),
	}
}

// compact renders v as JSON for a prompt, cut to limit bytes.
func compact(v any, limit int) string {
	if v == nil {
		return "No data available"
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	if len(raw) > limit {
		return string(raw[:limit]) + "…"
	}
	return string(raw)
}

// enrichmentData returns the payload for source, or a note saying why
// there is none.
func enrichmentData(in Input, source string) any {
	rec, ok := in.Enrichment[source]
	if !ok {
		return "not collected"
	}
	if !rec.OK() {
		return "unavailable: " + rec.Error
	}
	return rec.Payload
}
