package model

import (
	"strings"
	"time"
)

// NotMentioned is the sentinel for any fact not explicitly present in the
// source material.
const NotMentioned = "not_mentioned"

// Page is one page (or slide) of extracted document text.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// ExtractionBundle is the normalized output of the extraction step. Every
// string leaf is either a verbatim value or NotMentioned.
type ExtractionBundle struct {
	Company               CompanyFacts  `json:"company"`
	Founders              []Founder     `json:"founders"`
	Problem               ProblemFacts  `json:"problem"`
	Solution              SolutionFacts `json:"solution"`
	Market                MarketFacts   `json:"market"`
	Traction              TractionFacts `json:"traction"`
	BusinessModel         BusinessModel `json:"business_model"`
	Funding               FundingFacts  `json:"funding"`
	CompetitiveAdvantages []string      `json:"competitive_advantages"`
	Risks                 []string      `json:"risks"`

	// Provenance.
	Pages      []Page         `json:"pages,omitempty"`
	PageLabel  string         `json:"page_label,omitempty"`
	Inputs     []DocumentKind `json:"inputs"`
	Strategy   string         `json:"strategy,omitempty"`
	TextChars  int            `json:"text_chars"`
	Truncated  bool           `json:"truncated"`
	Degraded   string         `json:"degraded,omitempty"`
	ProfileURL string         `json:"profile_url,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// CompanyFacts describes the company itself.
type CompanyFacts struct {
	Name       string `json:"name"`
	Tagline    string `json:"tagline"`
	Founded    string `json:"founded"`
	HQLocation string `json:"hq_location"`
	Website    string `json:"website"`
	Stage      string `json:"stage"`
	Industry   string `json:"industry"`
}

// Founder is one member of the founding team.
type Founder struct {
	Name              string   `json:"name"`
	Role              string   `json:"role"`
	LinkedIn          string   `json:"linkedin"`
	GitHub            string   `json:"github"`
	PreviousCompanies []string `json:"previous_companies"`
	Education         string   `json:"education"`
}

// ProblemFacts is the problem statement.
type ProblemFacts struct {
	Statement  string `json:"statement"`
	MarketPain string `json:"market_pain"`
}

// SolutionFacts is the product description.
type SolutionFacts struct {
	ProductDescription string   `json:"product_description"`
	KeyFeatures        []string `json:"key_features"`
	TechnologyStack    []string `json:"technology_stack"`
}

// MarketFacts covers market sizing.
type MarketFacts struct {
	TAM             string `json:"tam"`
	SAM             string `json:"sam"`
	SOM             string `json:"som"`
	GrowthRate      string `json:"growth_rate"`
	TargetCustomers string `json:"target_customers"`
}

// TractionFacts covers revenue and usage signals.
type TractionFacts struct {
	Revenue    string   `json:"revenue"`
	Customers  string   `json:"customers"`
	GrowthRate string   `json:"growth_rate"`
	KeyMetrics []string `json:"key_metrics"`
}

// BusinessModel covers how the company makes money.
type BusinessModel struct {
	Type          string `json:"type"`
	Pricing       string `json:"pricing"`
	UnitEconomics string `json:"unit_economics"`
}

// FundingFacts covers the raise.
type FundingFacts struct {
	Seeking        string   `json:"seeking"`
	TotalRaised    string   `json:"total_raised"`
	Valuation      string   `json:"valuation"`
	PreviousRounds []string `json:"previous_rounds"`
}

// NewDefaultBundle returns a bundle where every fact is NotMentioned.
func NewDefaultBundle() *ExtractionBundle {
	b := &ExtractionBundle{}
	b.Normalize()
	return b
}

// Normalize replaces every blank string leaf with NotMentioned, drops blank
// list entries and guarantees non-nil slices.
func (b *ExtractionBundle) Normalize() {
	for _, p := range []*string{
		&b.Company.Name, &b.Company.Tagline, &b.Company.Founded, &b.Company.HQLocation,
		&b.Company.Website, &b.Company.Stage, &b.Company.Industry,
		&b.Problem.Statement, &b.Problem.MarketPain,
		&b.Solution.ProductDescription,
		&b.Market.TAM, &b.Market.SAM, &b.Market.SOM, &b.Market.GrowthRate, &b.Market.TargetCustomers,
		&b.Traction.Revenue, &b.Traction.Customers, &b.Traction.GrowthRate,
		&b.BusinessModel.Type, &b.BusinessModel.Pricing, &b.BusinessModel.UnitEconomics,
		&b.Funding.Seeking, &b.Funding.TotalRaised, &b.Funding.Valuation,
	} {
		*p = sentinel(*p)
	}

	b.Solution.KeyFeatures = compact(b.Solution.KeyFeatures)
	b.Solution.TechnologyStack = compact(b.Solution.TechnologyStack)
	b.Traction.KeyMetrics = compact(b.Traction.KeyMetrics)
	b.Funding.PreviousRounds = compact(b.Funding.PreviousRounds)
	b.CompetitiveAdvantages = compact(b.CompetitiveAdvantages)
	b.Risks = compact(b.Risks)

	founders := make([]Founder, 0, len(b.Founders))
	for _, f := range b.Founders {
		f.Name = sentinel(f.Name)
		if f.Name == NotMentioned {
			continue
		}
		f.Role = sentinel(f.Role)
		f.LinkedIn = sentinel(f.LinkedIn)
		f.GitHub = sentinel(f.GitHub)
		f.Education = sentinel(f.Education)
		f.PreviousCompanies = compact(f.PreviousCompanies)
		founders = append(founders, f)
	}
	b.Founders = founders

	if b.Inputs == nil {
		b.Inputs = []DocumentKind{}
	}
}

// Known reports whether v carries a real value.
func Known(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, NotMentioned)
}

func sentinel(v string) string {
	if !Known(v) {
		return NotMentioned
	}
	return strings.TrimSpace(v)
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if Known(v) {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}
