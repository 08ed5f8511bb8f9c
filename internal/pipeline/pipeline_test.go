package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/internal/resilience"
	"github.com/maroofsyyed/Duesense1/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}
}

type harness struct {
	store     store.Store
	pipeline  *Pipeline
	extractor *mockExtractor
	enricher  *mockEnricher
	scorer    *mockScorer
	narrator  *mockNarrator
}

func newHarness(t *testing.T, st store.Store) *harness {
	t.Helper()
	h := &harness{
		store:     st,
		extractor: &mockExtractor{},
		enricher:  &mockEnricher{},
		scorer:    &mockScorer{},
		narrator:  &mockNarrator{},
	}
	h.pipeline = New(st, store.NewStageWriter(st, fastRetry()), Stages{
		Extractor: h.extractor,
		Enricher:  h.enricher,
		Scorer:    h.scorer,
		Narrator:  h.narrator,
	})
	return h
}

func (h *harness) stageOf(t *testing.T, dealID string) (model.Stage, model.Stage) {
	t.Helper()
	d, err := h.store.GetDeal(context.Background(), dealID)
	require.NoError(t, err)
	doc, err := h.store.GetDocument(context.Background(), dealID)
	require.NoError(t, err)
	return d.Stage, doc.Stage
}

func acmeBundle() *model.ExtractionBundle {
	b := model.NewDefaultBundle()
	b.Company.Name = "Acme Robotics"
	b.Company.HQLocation = "Berlin"
	b.Company.Industry = "Robotics"
	b.Inputs = []model.DocumentKind{model.KindText}
	return b
}

func textInput() model.InputSet {
	return model.InputSet{Text: "Acme Robotics builds warehouse robots. ARR $1.2M growing 20% MoM."}
}

func TestSubmit_CreatesDealAndDocument(t *testing.T) {
	h := newHarness(t, newTestStore(t))
	in := model.InputSet{
		Document:   &model.DocumentInput{Filename: "deck.pdf", Kind: model.KindPDF, Data: []byte("%PDF-1.4 ...")},
		WebsiteURL: "https://acme.ai",
	}

	deal, err := h.pipeline.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.NotEmpty(t, deal.ID)
	assert.Equal(t, model.StageProcessing, deal.Stage)

	doc, err := h.store.GetDocument(context.Background(), deal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KindPDF, doc.Kind)
	assert.Equal(t, "deck.pdf", doc.Filename)
	assert.Equal(t, int64(len(in.Document.Data)), doc.SizeBytes)
	assert.Equal(t, model.StageProcessing, doc.Stage)
	assert.NotEqual(t, deal.ID, doc.ID)
}

func TestSubmit_NoInputsCreatesNothing(t *testing.T) {
	st := newTestStore(t)
	h := newHarness(t, st)

	_, err := h.pipeline.Submit(context.Background(), model.InputSet{NameOverride: "Acme"})

	var insufficient *model.InsufficientInputError
	require.ErrorAs(t, err, &insufficient)
	deals, err := st.ListDeals(context.Background(), store.DealFilter{})
	require.NoError(t, err)
	assert.Empty(t, deals)
}

func TestSubmit_InvalidInput(t *testing.T) {
	h := newHarness(t, newTestStore(t))

	_, err := h.pipeline.Submit(context.Background(), model.InputSet{WebsiteURL: "not a url"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestRun_HappyPath(t *testing.T) {
	h := newHarness(t, newTestStore(t))
	ctx := context.Background()
	in := textInput()
	bundle := acmeBundle()
	enrichment := map[string]model.EnrichmentRecord{
		"news":   {Source: "news", Payload: map[string]any{"articles": float64(2)}},
		"github": {Source: "github", Error: "github: no organization found"},
	}
	score := &model.ScoreRecord{CompositeScore: 67, Tier: model.Tier3, Confidence: model.ConfidenceMedium}
	narrative := &model.NarrativeDocument{Sections: []model.Section{{Key: "executive_summary", Title: "Executive Summary", Content: "ok", Attempts: 1}}}

	deal, err := h.pipeline.Submit(ctx, in)
	require.NoError(t, err)

	// Each stage observes the deal already in its own stage.
	h.extractor.On("Extract", mock.Anything, in).Run(func(mock.Arguments) {
		dealStage, docStage := h.stageOf(t, deal.ID)
		assert.Equal(t, model.StageExtracting, dealStage)
		assert.Equal(t, model.StageExtracting, docStage)
	}).Return(bundle, nil)
	h.enricher.On("Run", mock.Anything, bundle).Run(func(mock.Arguments) {
		dealStage, _ := h.stageOf(t, deal.ID)
		assert.Equal(t, model.StageEnriching, dealStage)
	}).Return(enrichment)
	h.scorer.On("Score", mock.Anything, bundle, enrichment).Run(func(mock.Arguments) {
		dealStage, _ := h.stageOf(t, deal.ID)
		assert.Equal(t, model.StageScoring, dealStage)
	}).Return(score, nil)
	h.narrator.On("Generate", mock.Anything, bundle, enrichment, score).Run(func(mock.Arguments) {
		dealStage, _ := h.stageOf(t, deal.ID)
		assert.Equal(t, model.StageGeneratingOutput, dealStage)
	}).Return(narrative)

	run, err := h.pipeline.Run(ctx, deal.ID, in)
	require.NoError(t, err)

	assert.Equal(t, []model.Stage{
		model.StageProcessing, model.StageExtracting, model.StageEnriching,
		model.StageScoring, model.StageGeneratingOutput, model.StageCompleted,
	}, run.History)
	assert.Equal(t, model.StageCompleted, run.Stage())
	require.NotNil(t, run.Result)
	assert.Equal(t, "Acme Robotics", run.Result.Deal.Name)

	dealStage, docStage := h.stageOf(t, deal.ID)
	assert.Equal(t, model.StageCompleted, dealStage)
	assert.Equal(t, model.StageCompleted, docStage)

	status, err := h.pipeline.Status(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageCompleted, status.Stage)
	assert.Equal(t, "Acme Robotics", status.Name)

	res, err := h.pipeline.Result(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, "Berlin", res.Deal.Location)
	assert.Equal(t, "Robotics", res.Deal.Sector)
	assert.Equal(t, "Acme Robotics", res.Extraction.Company.Name)
	assert.Equal(t, "github: no organization found", res.Enrichment["github"].Error)
	assert.Equal(t, 67.0, res.Score.CompositeScore)
	assert.Equal(t, model.Tier3, res.Score.Tier)
	require.Len(t, res.Narrative.Sections, 1)
	assert.Equal(t, "executive_summary", res.Narrative.Sections[0].Key)

	h.extractor.AssertExpectations(t)
	h.enricher.AssertExpectations(t)
	h.scorer.AssertExpectations(t)
	h.narrator.AssertExpectations(t)
}

func TestRun_NameOverrideOnlyFillsMissingName(t *testing.T) {
	tests := []struct {
		name      string
		extracted string
		want      string
	}{
		{"document names the company", "Acme Robotics", "Acme Robotics"},
		{"document is silent", model.NotMentioned, "Acme GmbH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, newTestStore(t))
			ctx := context.Background()
			in := textInput()
			in.NameOverride = "Acme GmbH"
			bundle := acmeBundle()
			bundle.Company.Name = tt.extracted

			h.extractor.On("Extract", mock.Anything, in).Return(bundle, nil)
			h.enricher.On("Run", mock.Anything, mock.Anything).Return(map[string]model.EnrichmentRecord{})
			h.scorer.On("Score", mock.Anything, mock.Anything, mock.Anything).Return(&model.ScoreRecord{Tier: model.TierPass}, nil)
			h.narrator.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(&model.NarrativeDocument{})

			run, err := h.pipeline.SubmitAndRun(ctx, in)
			require.NoError(t, err)

			status, err := h.pipeline.Status(ctx, run.DealID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, status.Name)
		})
	}
}

func TestRun_InsufficientInputFailsRun(t *testing.T) {
	h := newHarness(t, newTestStore(t))
	ctx := context.Background()
	in := model.InputSet{WebsiteURL: "https://acme.ai"}

	deal, err := h.pipeline.Submit(ctx, in)
	require.NoError(t, err)

	h.extractor.On("Extract", mock.Anything, in).
		Return(nil, &model.InsufficientInputError{Reason: "no input produced usable text"})

	run, err := h.pipeline.Run(ctx, deal.ID, in)

	var insufficient *model.InsufficientInputError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, []model.Stage{model.StageProcessing, model.StageExtracting, model.StageFailed}, run.History)

	status, err := h.pipeline.Status(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageFailed, status.Stage)
	assert.Equal(t, "insufficient input: no input produced usable text", status.FailureReason)

	_, docStage := h.stageOf(t, deal.ID)
	assert.Equal(t, model.StageFailed, docStage)

	h.enricher.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	h.scorer.AssertNotCalled(t, "Score", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_CancelledContextStillRecordsFailure(t *testing.T) {
	h := newHarness(t, newTestStore(t))
	ctx, cancel := context.WithCancel(context.Background())
	in := textInput()

	deal, err := h.pipeline.Submit(ctx, in)
	require.NoError(t, err)

	h.extractor.On("Extract", mock.Anything, in).Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	_, err = h.pipeline.Run(ctx, deal.ID, in)
	assert.ErrorIs(t, err, context.Canceled)

	dealStage, docStage := h.stageOf(t, deal.ID)
	assert.Equal(t, model.StageFailed, dealStage)
	assert.Equal(t, model.StageFailed, docStage)
}

// conflictStore fails every document write into one stage.
type conflictStore struct {
	*store.SQLiteStore
	stage model.Stage
}

func (c *conflictStore) UpdateDocumentStage(ctx context.Context, id string, to model.Stage, reason string) error {
	if to == c.stage {
		return errors.New("database is locked")
	}
	return c.SQLiteStore.UpdateDocumentStage(ctx, id, to, reason)
}

func TestRun_StageWriteConflictFailsRun(t *testing.T) {
	st := &conflictStore{SQLiteStore: newTestStore(t), stage: model.StageEnriching}
	h := newHarness(t, st)
	ctx := context.Background()
	in := textInput()

	deal, err := h.pipeline.Submit(ctx, in)
	require.NoError(t, err)
	h.extractor.On("Extract", mock.Anything, in).Return(acmeBundle(), nil)

	run, err := h.pipeline.Run(ctx, deal.ID, in)

	var conflict *model.StageWriteConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, model.StageEnriching, conflict.Stage)
	assert.Equal(t, []model.Stage{
		model.StageProcessing, model.StageExtracting, model.StageEnriching, model.StageFailed,
	}, run.History)

	status, err := h.pipeline.Status(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageFailed, status.Stage)
	assert.Contains(t, status.FailureReason, "stage write conflict")

	_, docStage := h.stageOf(t, deal.ID)
	assert.Equal(t, model.StageFailed, docStage)
	h.enricher.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestRun_FinalStageWriteConflictFailsRun(t *testing.T) {
	st := &conflictStore{SQLiteStore: newTestStore(t), stage: model.StageCompleted}
	h := newHarness(t, st)
	ctx := context.Background()
	in := textInput()

	deal, err := h.pipeline.Submit(ctx, in)
	require.NoError(t, err)
	bundle := acmeBundle()
	enrichment := map[string]model.EnrichmentRecord{}
	score := &model.ScoreRecord{CompositeScore: 67, Tier: model.Tier3}
	h.extractor.On("Extract", mock.Anything, in).Return(bundle, nil)
	h.enricher.On("Run", mock.Anything, bundle).Return(enrichment)
	h.scorer.On("Score", mock.Anything, bundle, enrichment).Return(score, nil)
	h.narrator.On("Generate", mock.Anything, bundle, enrichment, score).Return(&model.NarrativeDocument{})

	run, err := h.pipeline.Run(ctx, deal.ID, in)

	var conflict *model.StageWriteConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, model.StageCompleted, conflict.Stage)
	assert.Equal(t, model.StageFailed, run.Stage())

	status, err := h.pipeline.Status(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageFailed, status.Stage)
	assert.Contains(t, status.FailureReason, "stage write conflict")

	dealStage, docStage := h.stageOf(t, deal.ID)
	assert.Equal(t, model.StageFailed, dealStage)
	assert.Equal(t, model.StageFailed, docStage)

	_, err = h.pipeline.Result(ctx, deal.ID)
	assert.ErrorIs(t, err, model.ErrNotCompleted)
}

func TestRun_RejectsDealNotAtProcessing(t *testing.T) {
	st := newTestStore(t)
	h := newHarness(t, st)
	ctx := context.Background()

	deal, err := h.pipeline.Submit(ctx, textInput())
	require.NoError(t, err)
	require.NoError(t, st.UpdateDealStage(ctx, deal.ID, model.StageProcessing, model.StageFailed, "x"))

	_, err = h.pipeline.Run(ctx, deal.ID, textInput())
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	h.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestResult_NotCompleted(t *testing.T) {
	h := newHarness(t, newTestStore(t))
	ctx := context.Background()

	deal, err := h.pipeline.Submit(ctx, textInput())
	require.NoError(t, err)

	_, err = h.pipeline.Result(ctx, deal.ID)
	assert.ErrorIs(t, err, model.ErrNotCompleted)

	status, err := h.pipeline.Status(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageProcessing, status.Stage)
}

func TestList_FiltersByStage(t *testing.T) {
	h := newHarness(t, newTestStore(t))
	ctx := context.Background()

	first, err := h.pipeline.Submit(ctx, textInput())
	require.NoError(t, err)
	_, err = h.pipeline.Submit(ctx, textInput())
	require.NoError(t, err)
	require.NoError(t, h.store.UpdateDealStage(ctx, first.ID, model.StageProcessing, model.StageFailed, "no usable text"))

	all, err := h.pipeline.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failed, err := h.pipeline.List(ctx, model.StageFailed, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, first.ID, failed[0].DealID)
	assert.Equal(t, "no usable text", failed[0].FailureReason)

	limited, err := h.pipeline.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = h.pipeline.List(ctx, model.Stage("archived"), 0)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestStatusAndResult_UnknownDeal(t *testing.T) {
	h := newHarness(t, newTestStore(t))

	_, err := h.pipeline.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = h.pipeline.Result(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
