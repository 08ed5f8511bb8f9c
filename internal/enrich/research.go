package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/maroofsyyed/Duesense1/internal/cost"
	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/pkg/perplexity"
)

const researchSystem = "You are a venture capital research analyst. Answer with concrete facts, figures and named sources. Say so plainly when you cannot find something; never speculate."

type researchPayload struct {
	Query     string   `json:"query"`
	Summary   string   `json:"summary"`
	Citations []string `json:"citations"`
}

// ResearchSource asks a web-grounded model one question about the company.
type ResearchSource struct {
	name   string
	client perplexity.Client
	query  func(b *model.ExtractionBundle) (string, error)
}

// Name implements Source.
func (s *ResearchSource) Name() string { return s.name }

// Lookup implements Source.
func (s *ResearchSource) Lookup(ctx context.Context, b *model.ExtractionBundle) (map[string]any, error) {
	query, err := s.query(b)
	if err != nil {
		return nil, err
	}

	if l := cost.FromContext(ctx); l != nil {
		l.AddPerplexityQuery()
	}
	resp, err := s.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: researchSystem},
			{Role: "user", Content: query},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: %s research", s.name)
	}

	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		return nil, eris.Errorf("enrich: %s research returned no text", s.name)
	}
	citations := resp.Citations
	if citations == nil {
		citations = []string{}
	}
	return toPayload(researchPayload{Query: query, Summary: summary, Citations: citations})
}

// NewMarketSource researches market size and growth for the company's
// industry.
func NewMarketSource(client perplexity.Client) *ResearchSource {
	return &ResearchSource{name: "market", client: client, query: func(b *model.ExtractionBundle) (string, error) {
		if b == nil || !model.Known(b.Company.Industry) {
			return "", eris.Wrap(ErrMissingInput, "no industry")
		}
		q := fmt.Sprintf("Market research for the %s industry", b.Company.Industry)
		if model.Known(b.Market.TargetCustomers) {
			q += " serving " + b.Market.TargetCustomers
		}
		return q + ". Report total addressable market, serviceable market, annual growth rate (CAGR) and the three most important trends, each with figures and sources.", nil
	}}
}

// NewCompetitorsSource lists direct competitors.
func NewCompetitorsSource(client perplexity.Client) *ResearchSource {
	return &ResearchSource{name: "competitors", client: client, query: func(b *model.ExtractionBundle) (string, error) {
		name, err := companyName(b)
		if err != nil {
			return "", err
		}
		q := fmt.Sprintf("List the direct competitors of %s", name)
		if model.Known(b.Solution.ProductDescription) {
			q += fmt.Sprintf(", whose product is: %s", b.Solution.ProductDescription)
		}
		return q + ". For each competitor give its name, website, funding raised and how it differs.", nil
	}}
}

// NewFounderProfilesSource researches the founding team's backgrounds.
func NewFounderProfilesSource(client perplexity.Client) *ResearchSource {
	return &ResearchSource{name: "founder_profiles", client: client, query: func(b *model.ExtractionBundle) (string, error) {
		if b == nil || len(b.Founders) == 0 {
			return "", eris.Wrap(ErrMissingInput, "no founders")
		}
		company := "the company"
		if model.Known(b.Company.Name) {
			company = b.Company.Name
		}

		var lines []string
		for _, f := range b.Founders {
			line := f.Name
			if model.Known(f.Role) {
				line += " (" + f.Role + ")"
			}
			if model.Known(f.LinkedIn) {
				line += " " + f.LinkedIn
			}
			lines = append(lines, "- "+line)
		}
		return fmt.Sprintf("Research the founders of %s:\n%s\nFor each founder report prior companies, exits, years of domain experience, education and any notable public work.",
			company, strings.Join(lines, "\n")), nil
	}}
}

// NewSocialSignalsSource researches the company's social and community
// footprint.
func NewSocialSignalsSource(client perplexity.Client) *ResearchSource {
	return &ResearchSource{name: "social_signals", client: client, query: func(b *model.ExtractionBundle) (string, error) {
		name, err := companyName(b)
		if err != nil {
			return "", err
		}
		q := fmt.Sprintf("Social media and community presence of %s", name)
		if d := domain(b); d != "" {
			q += fmt.Sprintf(" (%s)", d)
		}
		return q + ". Report follower counts on X/Twitter, LinkedIn and YouTube, GitHub stars if any, posting frequency and any recent growth, each with the date it was observed.", nil
	}}
}

// NewGlassdoorSource researches employee reviews as a team health signal.
func NewGlassdoorSource(client perplexity.Client) *ResearchSource {
	return &ResearchSource{name: "glassdoor", client: client, query: func(b *model.ExtractionBundle) (string, error) {
		name, err := companyName(b)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Employee reviews of %s on Glassdoor and similar sites. Report the overall rating, number of reviews, CEO approval, recurring praise and recurring complaints. Say plainly if no reviews exist.", name), nil
	}}
}
