package enrich

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/maroofsyyed/Duesense1/internal/llm"
	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/internal/scrape"
)

const profileSystem = `You are a VC company profiler. Cross-reference every source you are given and flag discrepancies between them.
Output ONLY a valid JSON object. Use "not_mentioned" for anything no source states.`

const profilePrompt = `Build a verified company profile from the sources below.

DECK FACTS:
%s

FUNDING FACTS:
%s

PUBLIC PROFILE PAGE:
%s

Respond with JSON:
{
  "verified_name": "",
  "founded_date": "",
  "hq_location": "",
  "headcount": "",
  "headcount_source": "profile | deck | not_mentioned",
  "business_model": "B2B_SAAS | B2C | MARKETPLACE | PLATFORM | HARDWARE | OTHER",
  "industry_classification": "",
  "sub_industry": "",
  "funding_stage": "",
  "total_raised": "",
  "key_investors": [],
  "is_hiring": "true | false | not_mentioned",
  "specialities": [],
  "data_confidence": "HIGH | MEDIUM | LOW",
  "cross_reference_notes": ""
}`

// CompanyProfile is the cross-referenced profile the company_profile source
// stores.
type CompanyProfile struct {
	VerifiedName           string   `json:"verified_name"`
	FoundedDate            string   `json:"founded_date"`
	HQLocation             string   `json:"hq_location"`
	Headcount              string   `json:"headcount"`
	HeadcountSource        string   `json:"headcount_source"`
	BusinessModel          string   `json:"business_model"`
	IndustryClassification string   `json:"industry_classification"`
	SubIndustry            string   `json:"sub_industry"`
	FundingStage           string   `json:"funding_stage"`
	TotalRaised            string   `json:"total_raised"`
	KeyInvestors           []string `json:"key_investors"`
	IsHiring               string   `json:"is_hiring"`
	Specialities           []string `json:"specialities"`
	DataConfidence         string   `json:"data_confidence"`
	CrossReferenceNotes    string   `json:"cross_reference_notes"`
}

var profileSchema = llm.MustCompileSchema("company_profile", map[string]any{
	"type":     "object",
	"required": []string{"verified_name"},
	"properties": map[string]any{
		"verified_name":           map[string]any{"type": "string", "minLength": 1},
		"founded_date":            nullableString(),
		"hq_location":             nullableString(),
		"headcount":               nullableString(),
		"headcount_source":        nullableString(),
		"business_model":          nullableString(),
		"industry_classification": nullableString(),
		"sub_industry":            nullableString(),
		"funding_stage":           nullableString(),
		"total_raised":            nullableString(),
		"key_investors":           nullableStrings(),
		"is_hiring":               nullableString(),
		"specialities":            nullableStrings(),
		"data_confidence":         nullableString(),
		"cross_reference_notes":   nullableString(),
	},
}).Lenient()

func nullableString() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}

func nullableStrings() map[string]any {
	return map[string]any{"type": []string{"array", "null"}, "items": map[string]any{"type": "string"}}
}

// ProfileSource asks the model to reconcile the deck's company facts with
// the public profile page, when one was submitted.
type ProfileSource struct {
	gen     llm.Generator
	fetcher scrape.Fetcher
}

// NewProfileSource creates the company_profile source. fetcher may be nil.
func NewProfileSource(gen llm.Generator, fetcher scrape.Fetcher) *ProfileSource {
	return &ProfileSource{gen: gen, fetcher: fetcher}
}

// Name implements Source.
func (s *ProfileSource) Name() string { return "company_profile" }

// Lookup implements Source.
func (s *ProfileSource) Lookup(ctx context.Context, b *model.ExtractionBundle) (map[string]any, error) {
	if _, err := companyName(b); err != nil {
		return nil, err
	}

	page := model.NotMentioned
	if s.fetcher != nil && b.ProfileURL != "" {
		// A missing profile page only narrows the cross-check.
		if res, err := s.fetcher.Scrape(ctx, b.ProfileURL); err == nil {
			page = excerpt(res.Page.Markdown, 1500)
		}
	}

	company, _ := json.Marshal(b.Company)
	funding, _ := json.Marshal(b.Funding)
	profile, _, err := llm.GenerateJSON[CompanyProfile](ctx, s.gen, llm.Request{
		Operation: "enrich.company_profile",
		System:    profileSystem,
		Prompt:    fmt.Sprintf(profilePrompt, excerpt(string(company), 1500), excerpt(string(funding), 500), page),
		Variant:   llm.VariantFast,
	}, profileSchema)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: company profile")
	}
	if profile.KeyInvestors == nil {
		profile.KeyInvestors = []string{}
	}
	if profile.Specialities == nil {
		profile.Specialities = []string{}
	}
	return toPayload(profile)
}
