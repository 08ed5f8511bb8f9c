package enrich

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/internal/scrape"
)

type profilePayload struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Chars   int    `json:"chars"`
	Via     string `json:"via"`
}

// LinkedInSource reads the submitted social profile page.
type LinkedInSource struct {
	fetcher scrape.Fetcher
}

// NewLinkedInSource creates the linkedin source.
func NewLinkedInSource(f scrape.Fetcher) *LinkedInSource {
	return &LinkedInSource{fetcher: f}
}

// Name implements Source.
func (s *LinkedInSource) Name() string { return "linkedin" }

// Lookup implements Source.
func (s *LinkedInSource) Lookup(ctx context.Context, b *model.ExtractionBundle) (map[string]any, error) {
	if b == nil || b.ProfileURL == "" {
		return nil, eris.Wrap(ErrMissingInput, "no profile url")
	}
	res, err := s.fetcher.Scrape(ctx, b.ProfileURL)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: read profile")
	}
	return toPayload(profilePayload{
		URL:     b.ProfileURL,
		Title:   res.Page.Title,
		Content: excerpt(res.Page.Markdown, 4000),
		Chars:   len(res.Page.Markdown),
		Via:     res.Source,
	})
}
