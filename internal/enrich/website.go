package enrich

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/internal/scrape"
)

// Crawler fetches several paths of one site.
type Crawler interface {
	Crawl(ctx context.Context, baseURL string, paths []string, maxConcurrent int) map[string]*scrape.Result
}

// techSignals maps a lowercase keyword to the technology it indicates.
var techSignals = map[string]string{
	"kubernetes":       "Kubernetes",
	" aws":             "AWS",
	"google cloud":     "Google Cloud",
	"azure":            "Azure",
	"openai":           "OpenAI",
	"large language":   "LLMs",
	"machine learning": "Machine Learning",
	"computer vision":  "Computer Vision",
	"rest api":         "Public API",
	"graphql":          "GraphQL",
	" sdk":             "SDK",
	"soc 2":            "SOC 2",
	"gdpr":             "GDPR",
	"hipaa":            "HIPAA",
	"open source":      "Open Source",
}

type websitePage struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	Chars   int    `json:"chars"`
}

type websitePayload struct {
	URL          string        `json:"url"`
	Title        string        `json:"title"`
	PagesFound   int           `json:"pages_found"`
	PagesTried   int           `json:"pages_tried"`
	TotalChars   int           `json:"total_chars"`
	HasPricing   bool          `json:"has_pricing"`
	HasCareers   bool          `json:"has_careers"`
	HasCustomers bool          `json:"has_customers"`
	HasSecurity  bool          `json:"has_security"`
	Technologies []string      `json:"technologies"`
	Pages        []websitePage `json:"pages"`
}

// WebsiteSource crawls the company site's key pages.
type WebsiteSource struct {
	crawler Crawler
	paths   []string
}

// NewWebsiteSource creates the website source.
func NewWebsiteSource(c Crawler) *WebsiteSource {
	return &WebsiteSource{crawler: c, paths: scrape.CrawlPaths}
}

// Name implements Source.
func (s *WebsiteSource) Name() string { return "website" }

// Lookup implements Source.
func (s *WebsiteSource) Lookup(ctx context.Context, b *model.ExtractionBundle) (map[string]any, error) {
	site, err := websiteURL(b)
	if err != nil {
		return nil, err
	}

	results := s.crawler.Crawl(ctx, site, s.paths, 4)
	if len(results) == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, eris.Errorf("no pages fetched from %s", site)
	}

	p := websitePayload{URL: site, PagesFound: len(results), PagesTried: len(s.paths)}
	var corpus strings.Builder
	for _, path := range s.paths {
		r, ok := results[path]
		if !ok {
			continue
		}
		page := r.Page
		p.Pages = append(p.Pages, websitePage{
			Path:    path,
			Title:   page.Title,
			Excerpt: excerpt(page.Markdown, 1500),
			Chars:   len(page.Markdown),
		})
		p.TotalChars += len(page.Markdown)
		corpus.WriteString(strings.ToLower(page.Markdown))
		corpus.WriteByte('\n')

		switch path {
		case "/":
			p.Title = page.Title
		case "/pricing":
			p.HasPricing = true
		case "/careers":
			p.HasCareers = true
		case "/customers":
			p.HasCustomers = true
		case "/security":
			p.HasSecurity = true
		}
	}

	text := corpus.String()
	p.Technologies = []string{}
	for kw, tech := range techSignals {
		if strings.Contains(text, kw) {
			p.Technologies = append(p.Technologies, tech)
		}
	}
	sort.Strings(p.Technologies)

	return toPayload(p)
}
