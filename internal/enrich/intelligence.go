package enrich

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

// sitePages maps the paths read by the website_intelligence source to the
// diligence category each one informs.
var sitePages = map[string]string{
	"/":             "homepage",
	"/about":        "company_story",
	"/team":         "team",
	"/product":      "product",
	"/features":     "product",
	"/solutions":    "product",
	"/platform":     "product",
	"/docs":         "technical_docs",
	"/api":          "technical_docs",
	"/integrations": "ecosystem",
	"/pricing":      "pricing",
	"/plans":        "pricing",
	"/enterprise":   "enterprise",
	"/customers":    "customer_proof",
	"/case-studies": "customer_proof",
	"/testimonials": "customer_proof",
	"/blog":         "content",
	"/press":        "press",
	"/careers":      "hiring",
	"/jobs":         "hiring",
	"/security":     "trust",
	"/privacy":      "trust",
	"/compliance":   "trust",
	"/partners":     "ecosystem",
}

type techPattern struct {
	category string
	name     string
	re       *regexp.Regexp
}

// techPatterns detect vendors from page text. Patterns are matched case
// insensitively against the lowercased corpus.
var techPatterns = []techPattern{
	{"frontend", "React", regexp.MustCompile(`\breact(dom)?\b`)},
	{"frontend", "Next.js", regexp.MustCompile(`__next|_next/static|next\.js`)},
	{"frontend", "Vue", regexp.MustCompile(`vue\.?js|__vue`)},
	{"frontend", "Angular", regexp.MustCompile(`\bangular\b|ng-version`)},
	{"frontend", "Tailwind", regexp.MustCompile(`tailwind`)},
	{"infrastructure", "Cloudflare", regexp.MustCompile(`cloudflare|cf-ray`)},
	{"infrastructure", "AWS", regexp.MustCompile(`amazonaws|cloudfront|\baws\b`)},
	{"infrastructure", "Vercel", regexp.MustCompile(`vercel`)},
	{"infrastructure", "GCP", regexp.MustCompile(`googleapis|google cloud`)},
	{"analytics", "Google Analytics", regexp.MustCompile(`google-analytics|googletagmanager|\bgtag\b`)},
	{"analytics", "Mixpanel", regexp.MustCompile(`mixpanel`)},
	{"analytics", "Segment", regexp.MustCompile(`segment\.com`)},
	{"analytics", "PostHog", regexp.MustCompile(`posthog`)},
	{"marketing", "HubSpot", regexp.MustCompile(`hubspot|hs-scripts`)},
	{"marketing", "Intercom", regexp.MustCompile(`intercom`)},
	{"marketing", "Zendesk", regexp.MustCompile(`zendesk|zdassets`)},
	{"payments", "Stripe", regexp.MustCompile(`stripe\.(com|js)|powered by stripe`)},
	{"payments", "PayPal", regexp.MustCompile(`paypal`)},
}

var phonePattern = regexp.MustCompile(`\+?\d[\d\-() ]{8,}\d`)

type salesSignals struct {
	ContactForm bool `json:"has_contact_form"`
	DemoCTA     bool `json:"has_demo_cta"`
	TalkToSales bool `json:"has_talk_to_sales"`
	FreeTrial   bool `json:"has_free_trial"`
	Phone       bool `json:"has_phone_number"`
	LiveChat    bool `json:"has_live_chat"`
	Calendly    bool `json:"has_calendly"`
	Newsletter  bool `json:"has_newsletter"`
}

type intelligencePayload struct {
	URL            string              `json:"url"`
	PagesCrawled   int                 `json:"pages_crawled"`
	PagesAttempted int                 `json:"pages_attempted"`
	Paths          []string            `json:"paths"`
	Categories     []string            `json:"categories"`
	TechStack      map[string][]string `json:"tech_stack"`
	Sales          salesSignals        `json:"sales_signals"`
	SalesMotion    string              `json:"sales_motion"`
}

// IntelligenceSource reads a wide set of site pages and derives tech stack,
// sales motion and diligence coverage signals from them without a model.
type IntelligenceSource struct {
	crawler Crawler
	paths   []string
}

// NewIntelligenceSource creates the website_intelligence source.
func NewIntelligenceSource(c Crawler) *IntelligenceSource {
	paths := make([]string, 0, len(sitePages))
	for p := range sitePages {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return &IntelligenceSource{crawler: c, paths: paths}
}

// Name implements Source.
func (s *IntelligenceSource) Name() string { return "website_intelligence" }

// Lookup implements Source.
func (s *IntelligenceSource) Lookup(ctx context.Context, b *model.ExtractionBundle) (map[string]any, error) {
	site, err := websiteURL(b)
	if err != nil {
		return nil, err
	}

	results := s.crawler.Crawl(ctx, site, s.paths, 3)
	if len(results) == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, eris.Errorf("no pages fetched from %s", site)
	}

	p := intelligencePayload{
		URL:            site,
		PagesCrawled:   len(results),
		PagesAttempted: len(s.paths),
		Paths:          []string{},
		Categories:     []string{},
		TechStack:      map[string][]string{},
	}
	categories := map[string]bool{}
	var corpus strings.Builder
	for _, path := range s.paths {
		r, ok := results[path]
		if !ok {
			continue
		}
		p.Paths = append(p.Paths, path)
		categories[sitePages[path]] = true
		corpus.WriteString(strings.ToLower(r.Page.Markdown))
		corpus.WriteByte('\n')
	}
	text := corpus.String()

	for c := range categories {
		p.Categories = append(p.Categories, c)
	}
	sort.Strings(p.Categories)

	for _, cat := range []string{"frontend", "infrastructure", "analytics", "marketing", "payments"} {
		p.TechStack[cat] = []string{}
	}
	for _, t := range techPatterns {
		if t.re.MatchString(text) {
			p.TechStack[t.category] = append(p.TechStack[t.category], t.name)
		}
	}

	p.Sales = detectSales(text)
	p.SalesMotion = salesMotion(text)
	return toPayload(p)
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func detectSales(text string) salesSignals {
	return salesSignals{
		ContactForm: strings.Contains(text, "contact") && containsAny(text, "form", "reach"),
		DemoCTA:     containsAny(text, "request demo", "request a demo", "book demo", "book a demo", "schedule demo", "get a demo"),
		TalkToSales: containsAny(text, "talk to sales", "contact sales", "sales team"),
		FreeTrial:   containsAny(text, "free trial", "start free", "try free", "get started free"),
		Phone:       phonePattern.MatchString(text),
		LiveChat:    containsAny(text, "intercom", "drift", "zendesk", "crisp", "live chat", "chat with us"),
		Calendly:    strings.Contains(text, "calendly"),
		Newsletter:  containsAny(text, "newsletter", "subscribe", "email updates"),
	}
}

// salesMotion classifies the go-to-market from self-serve versus
// sales-assisted phrases.
func salesMotion(text string) string {
	count := func(phrases ...string) int {
		n := 0
		for _, p := range phrases {
			if strings.Contains(text, p) {
				n++
			}
		}
		return n
	}
	plg := count("free trial", "start free", "sign up", "get started", "self-serve")
	sales := count("request demo", "request a demo", "talk to sales", "contact sales", "enterprise", "custom pricing")
	switch {
	case plg > sales:
		return "product_led"
	case sales > plg:
		return "sales_led"
	default:
		return "hybrid"
	}
}
