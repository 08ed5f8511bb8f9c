package scrape

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maroofsyyed/Duesense1/internal/cost"
)

// Chain tries scrapers in priority order, returning the first success.
type Chain struct {
	scrapers []Scraper
}

// NewChain creates a Chain. Scrapers are tried in order.
func NewChain(scrapers ...Scraper) *Chain {
	return &Chain{scrapers: scrapers}
}

// Names lists the scrapers in the order they are tried.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.scrapers))
	for _, s := range c.scrapers {
		names = append(names, s.Name())
	}
	return names
}

// Scrape tries each scraper in order for a single URL.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	var lastErr error
	for _, s := range c.scrapers {
		if !s.Supports(targetURL) {
			continue
		}
		result, err := s.Scrape(ctx, targetURL)
		if err == nil && result != nil {
			if result.Page.URL == "" {
				result.Page.URL = targetURL
			}
			if l := cost.FromContext(ctx); l != nil && result.Tokens > 0 {
				l.AddJinaTokens(int64(result.Tokens))
			}
			return result, nil
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "scrape: cancelled")
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, eris.Errorf("scrape: no suitable scraper for url: %s", targetURL)
}

// CrawlPaths are the pages of a company site worth reading for diligence,
// in priority order.
var CrawlPaths = []string{"/", "/about", "/product", "/pricing", "/customers", "/team", "/careers", "/security"}

// Crawl fetches paths under baseURL concurrently (at most maxConcurrent at
// a time) and returns the pages that succeeded keyed by path. Failed pages
// are skipped.
func (c *Chain) Crawl(ctx context.Context, baseURL string, paths []string, maxConcurrent int) map[string]*Result {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Host == "" {
		return map[string]*Result{}
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}

	var (
		mu    sync.Mutex
		pages = make(map[string]*Result, len(paths))
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, p := range paths {
		target := base.JoinPath(p).String()
		if p == "/" {
			target = base.String()
		}
		g.Go(func() error {
			res, err := c.Scrape(gCtx, target)
			if err != nil {
				zap.L().Debug("scrape: crawl page failed", zap.String("url", target), zap.Error(err))
				return nil
			}
			mu.Lock()
			pages[p] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return pages
}
