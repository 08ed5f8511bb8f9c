package scoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maroofsyyed/Duesense1/internal/llm"
	"github.com/maroofsyyed/Duesense1/internal/model"
)

const defaultAgentTimeout = 90 * time.Second

// Engine runs the scoring agents and assembles a ScoreRecord.
type Engine struct {
	required     []Agent
	supplemental []Agent
	gen          llm.Generator
	timeout      time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithAgentTimeout sets the per-agent timeout.
func WithAgentTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithSupplemental replaces the supplemental roster.
func WithSupplemental(agents ...Agent) Option {
	return func(e *Engine) { e.supplemental = agents }
}

// NewEngine validates the required roster. gen is used for the thesis; a
// nil gen always yields the fallback thesis.
func NewEngine(gen llm.Generator, required []Agent, opts ...Option) (*Engine, error) {
	if err := ValidateRoster(required); err != nil {
		return nil, err
	}
	e := &Engine{
		required:     required,
		supplemental: SupplementalAgents(),
		gen:          gen,
		timeout:      defaultAgentTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewDefaultEngine wires the five rubric agents and the deterministic
// supplemental agents to gen.
func NewDefaultEngine(gen llm.Generator, opts ...Option) (*Engine, error) {
	return NewEngine(gen, RequiredAgents(gen), opts...)
}

// Score runs every agent concurrently. Agent failures become placeholders,
// so a well-formed bundle always yields a record.
func (e *Engine) Score(ctx context.Context, bundle *model.ExtractionBundle, enrichment map[string]model.EnrichmentRecord) (*model.ScoreRecord, error) {
	if bundle == nil {
		return nil, eris.Wrap(model.ErrInvalidInput, "scoring: nil bundle")
	}
	in := Input{Bundle: bundle, Enrichment: enrichment}

	all := append(append([]Agent{}, e.required...), e.supplemental...)
	scores := make([]model.AgentScore, len(all))

	var g errgroup.Group
	for i, a := range all {
		g.Go(func() error {
			scores[i] = e.run(ctx, a, in)
			return nil
		})
	}
	_ = g.Wait()

	rec := &model.ScoreRecord{
		Required:     make(map[string]model.AgentScore, len(e.required)),
		Supplemental: make(map[string]model.AgentScore, len(e.supplemental)),
	}
	var total float64
	confidences := make([]model.Confidence, 0, len(e.required))
	for i, s := range scores {
		if i < len(e.required) {
			rec.Required[s.Agent] = s
			total += s.SubScore
			confidences = append(confidences, s.Confidence)
			continue
		}
		rec.Supplemental[s.Agent] = s
	}

	rec.CompositeScore = clamp(total, 0, RequiredTotal)
	rec.Tier = model.TierFor(rec.CompositeScore)
	rec.Confidence = model.MinConfidence(confidences...)
	rec.RedFlags, rec.GreenFlags = collectFlags(scores)
	rec.Thesis = e.thesis(ctx, bundle, rec)

	zap.L().Info("scoring: complete",
		zap.Float64("composite", rec.CompositeScore),
		zap.String("tier", string(rec.Tier)),
		zap.String("confidence", string(rec.Confidence)),
		zap.String("recommendation", string(rec.Thesis.Recommendation)),
	)
	return rec, nil
}

// run scores one agent under its own timeout. Like enrichment sources, the
// agent runs on its own goroutine so the join never waits past the deadline.
func (e *Engine) run(ctx context.Context, a Agent, in Input) model.AgentScore {
	name, max := a.Name(), a.Max()
	start := time.Now()

	actx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type result struct {
		score *model.AgentScore
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: eris.Errorf("scoring: panic: %v", r)}
			}
		}()
		s, err := a.Score(actx, in)
		done <- result{score: s, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-actx.Done():
		res = result{err: actx.Err()}
	}
	if res.err == nil && res.score == nil {
		res.err = eris.New("scoring: agent returned no score")
	}

	if res.err != nil {
		failure := &model.AgentFailure{Agent: name, Err: res.err}
		zap.L().Warn("scoring: agent failed",
			zap.String("agent", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(failure),
		)
		return placeholder(name, max, failure)
	}

	s := *res.score
	sanitize(&s, name, max)
	return s
}

// collectFlags unions flags in agent-name order, dropping duplicates.
func collectFlags(scores []model.AgentScore) (red, green []string) {
	ordered := append([]model.AgentScore{}, scores...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Agent < ordered[j].Agent })

	red, green = []string{}, []string{}
	seenRed, seenGreen := map[string]bool{}, map[string]bool{}
	for _, s := range ordered {
		for _, f := range s.RedFlags {
			if !seenRed[f] {
				seenRed[f] = true
				red = append(red, f)
			}
		}
		for _, f := range s.GreenFlags {
			if !seenGreen[f] {
				seenGreen[f] = true
				green = append(green, f)
			}
		}
	}
	return red, green
}
