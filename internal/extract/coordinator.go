// Package extract turns a deal's raw inputs into a normalized
// ExtractionBundle: document strategies, website and profile scraping,
// text normalization and a single structuring call.
package extract

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maroofsyyed/Duesense1/internal/llm"
	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/internal/ocr"
	"github.com/maroofsyyed/Duesense1/internal/scrape"
)

const (
	// MinExtractedChars is the length a document strategy must exceed for
	// its text to be accepted.
	MinExtractedChars = 50

	// MaxExtractedChars caps the merged text sent to structuring.
	MaxExtractedChars = 12000

	defaultStrategyTimeout = 2 * time.Minute
)

// Coordinator runs extraction for one deal at a time. It is safe for
// concurrent use.
type Coordinator struct {
	strategies      []ocr.Strategy
	fetcher         scrape.Fetcher
	gen             llm.Generator
	strategyTimeout time.Duration
	now             func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithStrategyTimeout bounds each document strategy call.
func WithStrategyTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.strategyTimeout = d
		}
	}
}

// WithFetcher sets the fetcher used for website and profile inputs.
func WithFetcher(f scrape.Fetcher) Option {
	return func(c *Coordinator) { c.fetcher = f }
}

// New creates a Coordinator. Strategies are tried in the order given.
func New(gen llm.Generator, strategies []ocr.Strategy, opts ...Option) *Coordinator {
	c := &Coordinator{
		strategies:      strategies,
		gen:             gen,
		strategyTimeout: defaultStrategyTimeout,
		now:             time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// inputText is the usable text one input produced.
type inputText struct {
	kind   model.DocumentKind
	header string
	text   string
}

// documentResult is what the strategy chain produced for the document.
type documentResult struct {
	pages    []model.Page
	strategy string
}

// Extract validates the input set, gathers text from every input and
// structures it. Inputs that fail are logged and left out; only a run with
// no usable text at all is an error.
func (c *Coordinator) Extract(ctx context.Context, in model.InputSet) (*model.ExtractionBundle, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var (
		doc      *documentResult
		website  *inputText
		profile  *inputText
		failures []string
	)
	failed := make([]string, 3)

	var g errgroup.Group
	if in.HasDocument() {
		g.Go(func() error {
			res, err := c.extractDocument(ctx, in.Document)
			if err != nil {
				failed[0] = err.Error()
				return nil
			}
			doc = res
			return nil
		})
	}
	if in.WebsiteURL != "" {
		g.Go(func() error {
			t, err := c.fetch(ctx, in.WebsiteURL)
			if err != nil {
				failed[1] = err.Error()
				return nil
			}
			website = &inputText{kind: model.KindWebsite, header: "--- Website: " + in.WebsiteURL + " ---", text: t}
			return nil
		})
	}
	if in.ProfileURL != "" {
		g.Go(func() error {
			t, err := c.fetch(ctx, in.ProfileURL)
			if err != nil {
				failed[2] = err.Error()
				return nil
			}
			profile = &inputText{kind: model.KindProfile, header: "--- Profile: " + in.ProfileURL + " ---", text: t}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "extract: cancelled")
	}

	for _, f := range failed {
		if f != "" {
			failures = append(failures, f)
		}
	}

	bundle := &model.ExtractionBundle{}
	var sections []string
	var inputs []model.DocumentKind

	if doc != nil {
		label := PageLabel(in.Document.Kind)
		sections = append(sections, renderPages(doc.pages, label))
		inputs = append(inputs, in.Document.Kind)
		bundle.Pages = doc.pages
		bundle.PageLabel = strings.ToLower(label)
		bundle.Strategy = doc.strategy
	}
	for _, t := range []*inputText{website, profile} {
		if t != nil {
			sections = append(sections, t.header+"\n"+t.text)
			inputs = append(inputs, t.kind)
		}
	}
	if in.HasText() {
		if t := Normalize(in.Text); t != "" {
			sections = append(sections, "--- Text ---\n"+t)
			inputs = append(inputs, model.KindText)
		}
	}

	if len(sections) == 0 {
		reason := "no input produced usable text"
		if len(failures) > 0 {
			reason += ": " + strings.Join(failures, "; ")
		}
		return nil, &model.InsufficientInputError{Reason: reason}
	}

	merged := strings.Join(sections, "\n\n")
	chars := len([]rune(merged))
	merged, truncated := truncate(merged, MaxExtractedChars)

	structured, err := structure(ctx, c.gen, merged)
	if err != nil {
		zap.L().Warn("extract: structuring failed, using defaults",
			zap.Int("text_chars", chars),
			zap.Error(err),
		)
		structured = model.NewDefaultBundle()
		structured.Degraded = err.Error()
	} else {
		structured.Degraded = ""
	}

	structured.Pages = bundle.Pages
	structured.PageLabel = bundle.PageLabel
	structured.Strategy = bundle.Strategy
	structured.Inputs = inputs
	structured.TextChars = chars
	structured.Truncated = truncated
	structured.ProfileURL = in.ProfileURL
	structured.CreatedAt = c.now().UTC()
	structured.Normalize()

	if !model.Known(structured.Company.Name) && strings.TrimSpace(in.NameOverride) != "" {
		structured.Company.Name = strings.TrimSpace(in.NameOverride)
	}
	if !model.Known(structured.Company.Website) && in.WebsiteURL != "" {
		structured.Company.Website = in.WebsiteURL
	}

	zap.L().Info("extract: bundle ready",
		zap.String("company", structured.Company.Name),
		zap.String("strategy", structured.Strategy),
		zap.Int("text_chars", chars),
		zap.Bool("truncated", truncated),
		zap.Bool("degraded", structured.Degraded != ""),
	)
	return structured, nil
}

// extractDocument walks the strategy chain and stops at the first strategy
// whose text clears MinExtractedChars.
func (c *Coordinator) extractDocument(ctx context.Context, doc *model.DocumentInput) (*documentResult, error) {
	var tried []string
	for _, s := range c.strategies {
		if !s.Supports(doc.Kind) {
			continue
		}
		tried = append(tried, s.Name())

		start := time.Now()
		sctx, cancel := context.WithTimeout(ctx, c.strategyTimeout)
		pages, err := s.Extract(sctx, doc)
		cancel()

		if err != nil {
			zap.L().Warn("extract: strategy failed",
				zap.String("strategy", s.Name()),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "extract: document cancelled")
			}
			continue
		}

		for i := range pages {
			pages[i].Text = Normalize(pages[i].Text)
		}
		n := ocr.TotalChars(pages)
		if n > MinExtractedChars {
			zap.L().Info("extract: strategy accepted",
				zap.String("strategy", s.Name()),
				zap.Int("pages", len(pages)),
				zap.Int("chars", n),
				zap.Duration("duration", time.Since(start)),
			)
			return &documentResult{pages: pages, strategy: s.Name()}, nil
		}
		zap.L().Info("extract: strategy below threshold",
			zap.String("strategy", s.Name()),
			zap.Int("chars", n),
		)
	}
	if len(tried) == 0 {
		return nil, eris.Errorf("extract: no strategy supports %s documents", doc.Kind)
	}
	return nil, eris.Errorf("extract: document: no strategy produced more than %d chars (tried %s)",
		MinExtractedChars, strings.Join(tried, ", "))
}

// fetch scrapes a URL input into normalized text.
func (c *Coordinator) fetch(ctx context.Context, url string) (string, error) {
	if c.fetcher == nil {
		return "", eris.Errorf("extract: no fetcher configured for %s", url)
	}
	res, err := c.fetcher.Scrape(ctx, url)
	if err != nil {
		zap.L().Warn("extract: fetch failed", zap.String("url", url), zap.Error(err))
		return "", eris.Wrapf(err, "extract: fetch %s", url)
	}
	text := Normalize(res.Page.Markdown)
	if text == "" {
		return "", eris.Errorf("extract: %s returned no text", url)
	}
	return text, nil
}
