package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/maroofsyyed/Duesense1/internal/cost"
	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/internal/store"
)

// Extractor turns an input set into a structured bundle.
type Extractor interface {
	Extract(ctx context.Context, in model.InputSet) (*model.ExtractionBundle, error)
}

// Enricher fans a bundle out to the enrichment sources.
type Enricher interface {
	Run(ctx context.Context, bundle *model.ExtractionBundle) map[string]model.EnrichmentRecord
}

// Scorer produces the score record for a deal.
type Scorer interface {
	Score(ctx context.Context, bundle *model.ExtractionBundle, enrichment map[string]model.EnrichmentRecord) (*model.ScoreRecord, error)
}

// Narrator writes the investment memo.
type Narrator interface {
	Generate(ctx context.Context, bundle *model.ExtractionBundle, enrichment map[string]model.EnrichmentRecord, score *model.ScoreRecord) *model.NarrativeDocument
}

// Stages bundles the four stage components.
type Stages struct {
	Extractor Extractor
	Enricher  Enricher
	Scorer    Scorer
	Narrator  Narrator
}

// Pipeline sequences a deal through extraction, enrichment, scoring and
// memo generation, committing every stage boundary to the store.
type Pipeline struct {
	store    store.Store
	writer   *store.StageWriter
	stages   Stages
	costCalc *cost.Calculator
	newID    func() string
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCalculator sets the calculator used to price each run's usage.
func WithCalculator(c *cost.Calculator) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.costCalc = c
		}
	}
}

// New creates a Pipeline.
func New(st store.Store, writer *store.StageWriter, stages Stages, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    st,
		writer:   writer,
		stages:   stages,
		costCalc: cost.NewCalculator(cost.DefaultRates()),
		newID:    uuid.NewString,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run is the record of one pass through the stages.
type Run struct {
	DealID     string
	DocumentID string
	History    []model.Stage
	Result     *model.RunResult
	Cost       cost.Summary
	Err        error
}

// Stage returns the last stage the run committed.
func (r *Run) Stage() model.Stage {
	if len(r.History) == 0 {
		return ""
	}
	return r.History[len(r.History)-1]
}

// Submit validates the inputs and creates the deal and its document at
// processing. Nothing is created when the inputs are unusable.
func (p *Pipeline) Submit(ctx context.Context, in model.InputSet) (*model.Deal, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := p.now()
	deal := &model.Deal{
		ID:        p.newID(),
		Name:      in.NameOverride,
		Stage:     model.StageProcessing,
		Website:   in.WebsiteURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	doc := &model.Document{
		ID:        p.newID(),
		DealID:    deal.ID,
		Kind:      in.PrimaryKind(),
		Stage:     model.StageProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.HasDocument() {
		doc.Filename = in.Document.Filename
		doc.SizeBytes = int64(len(in.Document.Data))
	}

	if err := p.store.CreateDeal(ctx, deal, doc); err != nil {
		return nil, eris.Wrap(err, "pipeline: create deal")
	}
	zap.L().Info("pipeline: deal submitted",
		zap.String("deal_id", deal.ID),
		zap.String("document_id", doc.ID),
		zap.String("kind", string(doc.Kind)),
	)
	return deal, nil
}

// SubmitAndRun submits the inputs and runs the deal to a terminal stage.
func (p *Pipeline) SubmitAndRun(ctx context.Context, in model.InputSet) (*Run, error) {
	deal, err := p.Submit(ctx, in)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, deal.ID, in)
}

// Run drives a submitted deal from processing to completed. Each stage's
// artifact is persisted before the next transition is committed. Input
// failures and stage-write conflicts end the run at failed; the returned
// error is the cause. Per-unit failures inside a stage never fail the run.
func (p *Pipeline) Run(ctx context.Context, dealID string, in model.InputSet) (*Run, error) {
	deal, err := p.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load deal %s", dealID)
	}
	doc, err := p.store.GetDocument(ctx, dealID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load document for deal %s", dealID)
	}
	if deal.Stage != model.StageProcessing {
		return nil, eris.Wrapf(model.ErrInvalidTransition, "pipeline: deal %s is %s, not processing", dealID, deal.Stage)
	}

	log := zap.L().With(zap.String("deal_id", dealID))
	log.Info("pipeline: starting run")
	start := time.Now()

	ledger := cost.NewLedger()
	ctx = cost.WithLedger(ctx, ledger)

	r := &runState{
		p:   p,
		log: log,
		run: &Run{DealID: dealID, DocumentID: doc.ID, History: []model.Stage{model.StageProcessing}},
		cur: model.StageProcessing,
	}

	result, err := r.execute(ctx, in)
	r.run.Cost = ledger.Summarize(p.costCalc)
	ledger.Log(p.costCalc, dealID)
	if err != nil {
		r.fail(ctx, err)
		return r.run, err
	}

	if final, err := p.store.GetDeal(ctx, dealID); err == nil {
		result.Deal = *final
	} else {
		result.Deal = *deal
		result.Deal.Stage = model.StageCompleted
	}
	r.run.Result = result
	log.Info("pipeline: run complete",
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Float64("composite_score", result.Score.CompositeScore),
		zap.String("tier", string(result.Score.Tier)),
		zap.Float64("estimated_cost_usd", r.run.Cost.TotalUSD),
	)
	return r.run, nil
}

// runState carries one run's progress through the stages.
type runState struct {
	p   *Pipeline
	log *zap.Logger
	run *Run
	cur model.Stage
	// unsettled is set when the deal record reached cur but the document
	// write did not.
	unsettled bool
}

func (r *runState) execute(ctx context.Context, in model.InputSet) (*model.RunResult, error) {
	res := &model.RunResult{}
	p := r.p

	err := r.stage(ctx, model.StageExtracting, func() error {
		bundle, err := p.stages.Extractor.Extract(ctx, in)
		if err != nil {
			return err
		}
		res.Extraction = bundle
		if err := p.store.SaveArtifact(ctx, r.run.DealID, store.ArtifactExtraction, bundle); err != nil {
			return err
		}
		return p.store.UpdateDealProfile(ctx, r.run.DealID, profileOf(bundle, in))
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, model.StageEnriching, func() error {
		res.Enrichment = p.stages.Enricher.Run(ctx, res.Extraction)
		return p.store.SaveArtifact(ctx, r.run.DealID, store.ArtifactEnrichment, res.Enrichment)
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, model.StageScoring, func() error {
		score, err := p.stages.Scorer.Score(ctx, res.Extraction, res.Enrichment)
		if err != nil {
			return err
		}
		res.Score = score
		return p.store.SaveArtifact(ctx, r.run.DealID, store.ArtifactScore, score)
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, model.StageGeneratingOutput, func() error {
		res.Narrative = p.stages.Narrator.Generate(ctx, res.Extraction, res.Enrichment, res.Score)
		return p.store.SaveArtifact(ctx, r.run.DealID, store.ArtifactNarrative, res.Narrative)
	})
	if err != nil {
		return nil, err
	}

	if err := r.advance(ctx, model.StageCompleted); err != nil {
		return nil, err
	}
	return res, nil
}

// stage commits the transition into to, then runs fn while the deal sits
// in that stage.
func (r *runState) stage(ctx context.Context, to model.Stage, fn func() error) error {
	if err := r.advance(ctx, to); err != nil {
		return err
	}

	start := time.Now()
	err := fn()
	duration := time.Since(start).Milliseconds()
	if err != nil {
		r.log.Error("pipeline: stage failed",
			zap.String("stage", string(to)),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
		return eris.Wrapf(err, "pipeline: %s", to)
	}
	r.log.Info("pipeline: stage complete",
		zap.String("stage", string(to)),
		zap.Int64("duration_ms", duration),
	)
	return nil
}

func (r *runState) advance(ctx context.Context, to model.Stage) error {
	err := r.p.writer.Commit(ctx, r.run.DealID, r.run.DocumentID, r.cur, to, "")
	var conflict *model.StageWriteConflictError
	if err != nil && !errors.As(err, &conflict) {
		return err
	}
	// On a conflict the deal record already moved; only the document lags.
	r.cur = to
	r.unsettled = conflict != nil
	r.run.History = append(r.run.History, to)
	return err
}

// fail records the failed stage. The write is best effort: the run's own
// error is what the caller sees.
func (r *runState) fail(ctx context.Context, cause error) {
	r.run.Err = cause
	if r.cur == model.StageFailed || (r.cur.IsTerminal() && !r.unsettled) {
		return
	}

	reason := failureReason(cause)
	// Use a fresh context so a cancelled run still records its failure.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	var err error
	if r.unsettled {
		err = r.p.writer.Abort(wctx, r.run.DealID, r.run.DocumentID, r.cur, reason)
	} else {
		err = r.p.writer.Commit(wctx, r.run.DealID, r.run.DocumentID, r.cur, model.StageFailed, reason)
	}
	if err != nil {
		r.log.Warn("pipeline: failed to record failure",
			zap.String("stage", string(r.cur)),
			zap.String("reason", reason),
			zap.Error(err),
		)
		var conflict *model.StageWriteConflictError
		if !errors.As(err, &conflict) {
			return
		}
	}
	r.cur = model.StageFailed
	r.run.History = append(r.run.History, model.StageFailed)
	r.log.Error("pipeline: run failed", zap.String("reason", reason))
}

func failureReason(err error) string {
	var insufficient *model.InsufficientInputError
	if errors.As(err, &insufficient) {
		return insufficient.Error()
	}
	var conflict *model.StageWriteConflictError
	if errors.As(err, &conflict) {
		return conflict.Error()
	}
	return err.Error()
}

// profileOf picks the deal's display facts. Extracted values win; the
// caller's name and website fill in when extraction found none.
func profileOf(b *model.ExtractionBundle, in model.InputSet) store.DealProfile {
	return store.DealProfile{
		Name:     known(b.Company.Name, in.NameOverride),
		Website:  known(b.Company.Website, in.WebsiteURL),
		Location: known(b.Company.HQLocation),
		Sector:   known(b.Company.Industry),
	}
}

func known(values ...string) string {
	for _, v := range values {
		if model.Known(v) {
			return v
		}
	}
	return ""
}

// Status reports the deal's current stage and failure reason.
func (p *Pipeline) Status(ctx context.Context, dealID string) (*model.StatusView, error) {
	deal, err := p.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: status %s", dealID)
	}
	view := statusView(deal)
	return &view, nil
}

// List returns recent deals, newest first. An empty stage matches every
// stage; limit <= 0 takes the store default.
func (p *Pipeline) List(ctx context.Context, stage model.Stage, limit int) ([]model.StatusView, error) {
	if stage != "" && !stage.Valid() {
		return nil, eris.Wrapf(model.ErrInvalidInput, "pipeline: unknown stage %q", stage)
	}
	deals, err := p.store.ListDeals(ctx, store.DealFilter{Stage: stage, Limit: limit})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list deals")
	}
	views := make([]model.StatusView, 0, len(deals))
	for i := range deals {
		views = append(views, statusView(&deals[i]))
	}
	return views, nil
}

func statusView(d *model.Deal) model.StatusView {
	return model.StatusView{
		DealID:        d.ID,
		Name:          d.Name,
		Stage:         d.Stage,
		FailureReason: d.FailureReason,
		UpdatedAt:     d.UpdatedAt,
	}
}

// Result returns every artifact of a completed run. It fails with
// model.ErrNotCompleted for a deal in any other stage.
func (p *Pipeline) Result(ctx context.Context, dealID string) (*model.RunResult, error) {
	deal, err := p.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: result %s", dealID)
	}
	if deal.Stage != model.StageCompleted {
		return nil, eris.Wrapf(model.ErrNotCompleted, "pipeline: deal %s is %s", dealID, deal.Stage)
	}

	res := &model.RunResult{Deal: *deal}
	loads := []struct {
		kind store.ArtifactKind
		out  any
	}{
		{store.ArtifactExtraction, &res.Extraction},
		{store.ArtifactEnrichment, &res.Enrichment},
		{store.ArtifactScore, &res.Score},
		{store.ArtifactNarrative, &res.Narrative},
	}
	for _, l := range loads {
		if err := p.store.LoadArtifact(ctx, dealID, l.kind, l.out); err != nil {
			return nil, eris.Wrapf(err, "pipeline: result %s", dealID)
		}
	}
	return res, nil
}
