// Package enrich fans a deal's extraction bundle out to independent
// external sources and collects one record per source.
package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/internal/resilience"
)

const defaultSourceTimeout = 30 * time.Second

var (
	// ErrEmptyPayload is recorded when a source returns neither data nor an
	// error.
	ErrEmptyPayload = eris.New("enrich: source returned no payload")

	// ErrMissingInput marks a lookup skipped because the bundle lacks what
	// the source needs. It does not count against the source's breaker.
	ErrMissingInput = eris.New("enrich: missing input")
)

// Source looks one thing up about a company.
type Source interface {
	Name() string
	Lookup(ctx context.Context, bundle *model.ExtractionBundle) (map[string]any, error)
}

// Orchestrator runs every source concurrently. Sources never share
// cancellation: one source failing or timing out leaves the others running.
type Orchestrator struct {
	sources  []Source
	timeout  time.Duration
	breakers *resilience.ServiceBreakers
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout sets the per-source timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithBreakers shares circuit breakers across orchestrators, e.g. across
// runs in one server process.
func WithBreakers(b *resilience.ServiceBreakers) Option {
	return func(o *Orchestrator) {
		if b != nil {
			o.breakers = b
		}
	}
}

// New creates an Orchestrator. Source names must be unique.
func New(sources []Source, opts ...Option) (*Orchestrator, error) {
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		if seen[s.Name()] {
			return nil, eris.Errorf("enrich: duplicate source %q", s.Name())
		}
		seen[s.Name()] = true
	}

	o := &Orchestrator{
		sources:  sources,
		timeout:  defaultSourceTimeout,
		breakers: resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig()),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Names returns the roster in order.
func (o *Orchestrator) Names() []string {
	names := make([]string, len(o.sources))
	for i, s := range o.sources {
		names[i] = s.Name()
	}
	return names
}

// Run looks up every source and returns exactly one record per source.
// Failures of any kind become error records.
func (o *Orchestrator) Run(ctx context.Context, bundle *model.ExtractionBundle) map[string]model.EnrichmentRecord {
	records := make([]model.EnrichmentRecord, len(o.sources))

	var g errgroup.Group
	for i, src := range o.sources {
		g.Go(func() error {
			records[i] = o.lookup(ctx, src, bundle)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]model.EnrichmentRecord, len(records))
	failed := 0
	for _, r := range records {
		out[r.Source] = r
		if !r.OK() {
			failed++
		}
	}

	zap.L().Info("enrich: fan-out complete",
		zap.Int("sources", len(records)),
		zap.Int("failed", failed),
	)
	return out
}

type outcome struct {
	payload map[string]any
	err     error
}

// lookup runs one source under its own timeout and breaker. The source runs
// on its own goroutine so a source that ignores ctx still cannot hold the
// join past its deadline.
func (o *Orchestrator) lookup(ctx context.Context, src Source, bundle *model.ExtractionBundle) model.EnrichmentRecord {
	name := src.Name()
	start := time.Now()
	rec := model.EnrichmentRecord{Source: name, FetchedAt: start.UTC()}

	sctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: eris.Errorf("enrich: panic: %v", r)}
			}
		}()
		var missing error
		payload, err := resilience.ExecuteVal(sctx, o.breakers.Get(name), func(ctx context.Context) (map[string]any, error) {
			p, err := src.Lookup(ctx, bundle)
			if errors.Is(err, ErrMissingInput) {
				missing = err
				return nil, nil
			}
			return p, err
		})
		if missing != nil {
			err = missing
		}
		done <- outcome{payload: payload, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-sctx.Done():
		res = outcome{err: sctx.Err()}
	}
	rec.DurationMs = time.Since(start).Milliseconds()

	if res.err == nil && res.payload == nil {
		res.err = ErrEmptyPayload
	}
	if res.err == nil {
		rec.Payload = res.payload
		return rec
	}

	failure := &model.SourceFailure{
		Source:  name,
		Timeout: errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil,
		Err:     res.err,
	}
	rec.Error = failure.Error()
	rec.Timeout = failure.Timeout

	zap.L().Warn("enrich: source failed",
		zap.String("source", name),
		zap.Bool("timeout", failure.Timeout),
		zap.Bool("circuit_open", errors.Is(res.err, resilience.ErrCircuitOpen)),
		zap.Int64("duration_ms", rec.DurationMs),
		zap.Error(res.err),
	)
	return rec
}
