// Package scrape turns URLs into markdown through an ordered chain of
// fetchers: the reader service first, the Firecrawl renderer next and a
// plain HTTP fetch last.
package scrape

import (
	"context"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

// Result holds a scraped page with the fetcher that produced it.
type Result struct {
	Page   model.CrawledPage
	Source string // e.g. "jina", "firecrawl", "local_http"
	Tokens int    // reader tokens billed, when the fetcher reports them
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}

// Fetcher is what callers outside this package depend on.
type Fetcher interface {
	Scrape(ctx context.Context, url string) (*Result, error)
}
