// Package synth writes the investment narrative section by section and
// checks every citation marker against the sources the run actually has.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maroofsyyed/Duesense1/internal/llm"
	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/internal/resilience"
)

const (
	defaultAttempts       = 2
	defaultSectionTimeout = 2 * time.Minute
	maxPageChars          = 6000
)

// ErrEmptySection is retried like any other generation failure.
var ErrEmptySection = eris.New("synth: empty section")

// Synthesizer generates NarrativeDocuments.
type Synthesizer struct {
	gen      llm.Generator
	sections []SectionSpec
	attempts int
	timeout  time.Duration
	backoff  resilience.RetryConfig
	now      func() time.Time
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithSections replaces the default section layout.
func WithSections(specs []SectionSpec) Option {
	return func(s *Synthesizer) {
		if len(specs) > 0 {
			s.sections = specs
		}
	}
}

// WithAttempts sets the per-section attempt budget.
func WithAttempts(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithSectionTimeout bounds each attempt.
func WithSectionTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBackoff sets the delay policy between attempts.
func WithBackoff(cfg resilience.RetryConfig) Option {
	return func(s *Synthesizer) { s.backoff = cfg }
}

// New creates a Synthesizer.
func New(gen llm.Generator, opts ...Option) (*Synthesizer, error) {
	s := &Synthesizer{
		gen:      gen,
		sections: DefaultSections,
		attempts: defaultAttempts,
		timeout:  defaultSectionTimeout,
		backoff: resilience.RetryConfig{
			InitialBackoff: time.Second,
			MaxBackoff:     10 * time.Second,
			Multiplier:     2,
			JitterFraction: 0.25,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := validateSections(s.sections); err != nil {
		return nil, eris.Wrap(err, "synth: sections")
	}
	return s, nil
}

// Generate writes every section concurrently. It always returns a document
// with one entry per section, in layout order; failed sections carry the
// placeholder content.
func (s *Synthesizer) Generate(ctx context.Context, bundle *model.ExtractionBundle, enrichment map[string]model.EnrichmentRecord, score *model.ScoreRecord) *model.NarrativeDocument {
	ids := KnownSources(bundle, enrichment)
	known := sourceSet(ids)
	shared := dealContext(bundle, enrichment, score)

	out := make([]model.Section, len(s.sections))
	var g errgroup.Group
	for i, spec := range s.sections {
		g.Go(func() error {
			out[i] = s.section(ctx, spec, shared, ids, known)
			return nil
		})
	}
	_ = g.Wait()

	doc := &model.NarrativeDocument{
		Sections:     out,
		KnownSources: ids,
		GeneratedAt:  s.now().UTC(),
	}

	failed := 0
	for _, sec := range out {
		if sec.Failed {
			failed++
		}
	}
	zap.L().Info("synth: narrative complete",
		zap.Int("sections", len(out)),
		zap.Int("failed", failed),
		zap.Int("unverified_citations", doc.UnverifiedCount()),
	)
	return doc
}

func (s *Synthesizer) section(ctx context.Context, spec SectionSpec, shared string, ids []string, known map[string]bool) model.Section {
	sec := model.Section{
		Key:        spec.Key,
		Title:      spec.Title,
		Citations:  []model.Citation{},
		Unverified: []model.Citation{},
	}
	req := llm.Request{
		Operation: "synth." + spec.Key,
		System:    "You are a senior VC analyst writing one section of an investment memo. Every factual sentence must cite its source.",
		Prompt:    sectionPrompt(spec, shared, ids),
		Variant:   llm.VariantQuality,
	}

	cfg := s.backoff
	cfg.MaxAttempts = s.attempts
	cfg.ShouldRetry = resilience.Always
	cfg.OnRetry = resilience.RetryLogger("synth", spec.Key)

	text, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
		sec.Attempts++
		actx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		resp, err := s.gen.Generate(actx, req)
		if err != nil {
			return "", err
		}
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			return "", ErrEmptySection
		}
		return text, nil
	})
	if err != nil {
		failure := &model.SectionGenerationFailure{Section: spec.Key, Attempts: sec.Attempts, Err: err}
		zap.L().Warn("synth: section failed",
			zap.String("section", spec.Key),
			zap.Int("attempts", sec.Attempts),
			zap.Error(err),
		)
		sec.Content = model.SectionPlaceholder
		sec.Failed = true
		sec.Error = failure.Error()
		return sec
	}

	sec.Content = text
	sec.Citations, sec.Unverified = Validate(text, known)
	if len(sec.Unverified) > 0 {
		bad := make([]string, len(sec.Unverified))
		for i, c := range sec.Unverified {
			bad[i] = c.Source
		}
		zap.L().Warn("synth: unverified citations",
			zap.String("section", spec.Key),
			zap.Strings("sources", bad),
		)
	}
	return sec
}

func sectionPrompt(spec SectionSpec, shared string, ids []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the %q section of the memo.\n%s\n\n", spec.Title, spec.Brief)
	b.WriteString("ALLOWED SOURCE IDS (cite only these, exactly as written):\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "- %s\n", id)
	}
	b.WriteString(`
RULES:
- End every factual sentence with [SOURCE: <id>] using an id from the list above.
- If a fact is absent from the data, write not_mentioned instead of guessing.
- Return only the section body as markdown, without the section title.

`)
	b.WriteString(shared)
	return b.String()
}

// dealContext renders the data every section sees, labelled by source id.
func dealContext(bundle *model.ExtractionBundle, enrichment map[string]model.EnrichmentRecord, score *model.ScoreRecord) string {
	var b strings.Builder

	if bundle != nil {
		facts := *bundle
		facts.Pages = nil
		fmt.Fprintf(&b, "EXTRACTED FACTS:\n%s\n\n", jsonExcerpt(facts, 4000))

		label := bundle.PageLabel
		if label == "" {
			label = "page"
		}
		budget := maxPageChars
		for _, p := range bundle.Pages {
			text := strings.TrimSpace(p.Text)
			if text == "" || budget <= 0 {
				continue
			}
			text = cut(text, budget)
			budget -= len(text)
			fmt.Fprintf(&b, "[%s-%d]\n%s\n\n", label, p.Number, text)
		}
	}

	names := model.SucceededSources(enrichment)
	for _, name := range names {
		fmt.Fprintf(&b, "[%s%s]\n%s\n\n", enrichmentPrefix, name, jsonExcerpt(enrichment[name].Payload, 1500))
	}

	if score != nil {
		fmt.Fprintf(&b, "[%s]\nComposite %.1f/100, %s, confidence %s, recommendation %s.\n",
			SourceScore, score.CompositeScore, score.Tier, score.Confidence, score.Thesis.Recommendation)
		agents := make([]string, 0, len(score.Required))
		for name := range score.Required {
			agents = append(agents, name)
		}
		sort.Strings(agents)
		for _, name := range agents {
			a := score.Required[name]
			fmt.Fprintf(&b, "- %s: %.1f/%g. %s\n", name, a.SubScore, a.Max, cut(a.Reasoning, 200))
		}
		fmt.Fprintf(&b, "Thesis: %s\nTop risks: %s\n", cut(score.Thesis.InvestmentThesis, 500), strings.Join(score.Thesis.TopRisks, "; "))
	}
	return b.String()
}

func jsonExcerpt(v any, limit int) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return cut(string(raw), limit)
}

// cut shortens s to at most n bytes on a rune boundary.
func cut(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
