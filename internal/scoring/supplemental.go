package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

// SupplementalMax is the ceiling of the github_signals and web_presence
// agents.
const SupplementalMax = 5

// GitHubSignals rates open-source activity from the github enrichment
// payload. It never calls a model.
type GitHubSignals struct{}

// Name implements Agent.
func (GitHubSignals) Name() string { return "github_signals" }

// Max implements Agent.
func (GitHubSignals) Max() float64 { return SupplementalMax }

// Score implements Agent.
func (GitHubSignals) Score(_ context.Context, in Input) (*model.AgentScore, error) {
	s := &model.AgentScore{SubBreakdown: map[string]float64{}, Confidence: model.ConfidenceHigh}
	p, ok := payload(in, "github")
	if !ok || p["found"] != true {
		s.Confidence = model.ConfidenceLow
		s.Reasoning = "no public GitHub organization found"
		return s, nil
	}

	stars := number(p["total_stars"])
	active := number(p["active_repos"])
	languages, _ := p["languages"].([]any)

	// log-scaled stars: 10 -> 1, 100 -> 2, 1000+ -> 3
	s.SubBreakdown["stars"] = math.Min(3, math.Max(0, math.Log10(math.Max(stars, 1))))
	s.SubBreakdown["activity"] = math.Min(1.5, active*0.5)
	if len(languages) > 1 {
		s.SubBreakdown["breadth"] = 0.5
	}
	for _, v := range s.SubBreakdown {
		s.SubScore += v
	}

	if stars >= 1000 {
		s.GreenFlags = append(s.GreenFlags, fmt.Sprintf("%.0f GitHub stars", stars))
	}
	if active == 0 {
		s.RedFlags = append(s.RedFlags, "no recently active repositories")
		s.Confidence = model.ConfidenceMedium
	}
	s.Reasoning = fmt.Sprintf("%.0f stars across public repos, %.0f active in the last 90 days", stars, active)
	return s, nil
}

// WebPresence rates the company website from the website enrichment payload.
type WebPresence struct{}

// Name implements Agent.
func (WebPresence) Name() string { return "web_presence" }

// Max implements Agent.
func (WebPresence) Max() float64 { return SupplementalMax }

// Score implements Agent.
func (WebPresence) Score(_ context.Context, in Input) (*model.AgentScore, error) {
	s := &model.AgentScore{SubBreakdown: map[string]float64{}, Confidence: model.ConfidenceHigh}
	p, ok := payload(in, "website")
	if !ok {
		s.Confidence = model.ConfidenceLow
		s.Reasoning = "website could not be read"
		s.RedFlags = []string{"website unreachable"}
		return s, nil
	}

	pages := number(p["pages_found"])
	s.SubBreakdown["coverage"] = math.Min(2, pages*0.4)
	for _, sig := range []string{"has_pricing", "has_customers", "has_careers"} {
		if p[sig] == true {
			s.SubBreakdown[sig] = 0.75
		}
	}
	if techs, _ := p["technologies"].([]any); len(techs) > 0 {
		s.SubBreakdown["technologies"] = 0.75
	}
	for _, v := range s.SubBreakdown {
		s.SubScore += v
	}

	if p["has_pricing"] == true {
		s.GreenFlags = append(s.GreenFlags, "public pricing")
	}
	if p["has_security"] == true {
		s.GreenFlags = append(s.GreenFlags, "security or compliance page")
	}
	if pages < 2 {
		s.Confidence = model.ConfidenceMedium
	}
	s.Reasoning = fmt.Sprintf("%.0f of the standard site pages found", pages)
	return s, nil
}

// SupplementalAgents returns the unweighted deterministic agents.
func SupplementalAgents() []Agent {
	return []Agent{GitHubSignals{}, WebPresence{}, WebsiteDiligence{}, LinkedInSignals{}, FundingQuality{}}
}

func payload(in Input, source string) (map[string]any, bool) {
	rec, ok := in.Enrichment[source]
	if !ok || !rec.OK() {
		return nil, false
	}
	return rec.Payload, true
}

// number reads a JSON number; payloads are normalized so ints arrive as
// float64.
func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
