package enrich

import (
	"github.com/rotisserie/eris"

	"github.com/maroofsyyed/Duesense1/internal/llm"
	"github.com/maroofsyyed/Duesense1/internal/scrape"
	"github.com/maroofsyyed/Duesense1/pkg/github"
	"github.com/maroofsyyed/Duesense1/pkg/jina"
	"github.com/maroofsyyed/Duesense1/pkg/perplexity"
)

// Deps are the clients concrete sources are built from. Any may be nil; a
// source whose client is nil records an error on every run.
type Deps struct {
	Crawler    Crawler
	Fetcher    scrape.Fetcher
	Jina       jina.Client
	GitHub     github.Client
	Perplexity perplexity.Client
	LLM        llm.Generator
}

// Roster builds sources by name, in the order given.
func Roster(names []string, d Deps) ([]Source, error) {
	sources := make([]Source, 0, len(names))
	for _, name := range names {
		var src Source
		switch name {
		case "website":
			if d.Crawler != nil {
				src = NewWebsiteSource(d.Crawler)
			}
		case "news":
			if d.Jina != nil {
				src = NewNewsSource(d.Jina)
			}
		case "github":
			if d.GitHub != nil {
				src = NewGitHubSource(d.GitHub)
			}
		case "market":
			if d.Perplexity != nil {
				src = NewMarketSource(d.Perplexity)
			}
		case "competitors":
			if d.Perplexity != nil {
				src = NewCompetitorsSource(d.Perplexity)
			}
		case "founder_profiles":
			if d.Perplexity != nil {
				src = NewFounderProfilesSource(d.Perplexity)
			}
		case "website_intelligence":
			if d.Crawler != nil {
				src = NewIntelligenceSource(d.Crawler)
			}
		case "social_signals":
			if d.Perplexity != nil {
				src = NewSocialSignalsSource(d.Perplexity)
			}
		case "glassdoor":
			if d.Perplexity != nil {
				src = NewGlassdoorSource(d.Perplexity)
			}
		case "company_profile":
			if d.LLM != nil {
				src = NewProfileSource(d.LLM, d.Fetcher)
			}
		case "linkedin":
			if d.Fetcher != nil {
				src = NewLinkedInSource(d.Fetcher)
			}
		default:
			return nil, eris.Errorf("enrich: unknown source %q", name)
		}
		if src == nil {
			src = unavailable{name: name, reason: "client not configured"}
		}
		sources = append(sources, src)
	}
	return sources, nil
}
