package synth

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// SectionSpec describes one narrative section.
type SectionSpec struct {
	Key   string `yaml:"key"`
	Title string `yaml:"title"`
	Brief string `yaml:"brief"`
}

// DefaultSections is the memo layout in output order.
var DefaultSections = []SectionSpec{
	{"executive_summary", "Executive Summary", "2-3 paragraphs summarizing the investment opportunity, the score and the recommendation."},
	{"company_overview", "Company Overview", "Company description, product and founding story."},
	{"founders_team", "Founders & Team", "Founder backgrounds, strengths and concerns."},
	{"market_opportunity", "Market Opportunity", "TAM/SAM/SOM, market trends and timing."},
	{"competitive_landscape", "Competitive Landscape", "Key competitors, differentiation and defensibility."},
	{"technical_moat", "Technical Moat & Product", "Technology stack, proprietary advantages and IP."},
	{"traction_metrics", "Traction & Metrics", "Revenue, growth, unit economics and customers."},
	{"business_model", "Business Model & Scalability", "Revenue model, pricing and path to scale."},
	{"investment_thesis", "Investment Thesis", "Why invest, expected returns and timeline."},
	{"risks_mitigations", "Risks & Mitigations", "Key risks, each with a proposed mitigation."},
	{"key_insights", "Key Insights", "Three bullet lists headed Strengths, Risks and Questions for Founders, each item tied to a fact or score."},
	{"due_diligence_roadmap", "Due Diligence Roadmap", "Concrete next steps for deeper diligence, prioritizing facts that are not_mentioned."},
}

type sectionsFile struct {
	Sections []SectionSpec `yaml:"sections"`
}

// LoadSections reads a section layout from a YAML file of the form
//
//	sections:
//	  - key: executive_summary
//	    title: Executive Summary
//	    brief: ...
func LoadSections(path string) ([]SectionSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "synth: read sections file %s", path)
	}
	var f sectionsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrapf(err, "synth: parse sections file %s", path)
	}
	if err := validateSections(f.Sections); err != nil {
		return nil, eris.Wrapf(err, "synth: sections file %s", path)
	}
	return f.Sections, nil
}

func validateSections(specs []SectionSpec) error {
	if len(specs) == 0 {
		return eris.New("no sections")
	}
	seen := make(map[string]bool, len(specs))
	for i, s := range specs {
		if s.Key == "" || s.Title == "" {
			return eris.Errorf("section %d needs a key and a title", i)
		}
		if seen[s.Key] {
			return eris.Errorf("duplicate section %q", s.Key)
		}
		seen[s.Key] = true
	}
	return nil
}
