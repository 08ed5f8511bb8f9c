package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/internal/resilience"
)

// flakyStore fails the first docFailures document writes.
type flakyStore struct {
	*SQLiteStore
	docFailures int32
	dealWrites  atomic.Int32
	docWrites   atomic.Int32
}

func (f *flakyStore) UpdateDealStage(ctx context.Context, id string, from, to model.Stage, reason string) error {
	f.dealWrites.Add(1)
	return f.SQLiteStore.UpdateDealStage(ctx, id, from, to, reason)
}

func (f *flakyStore) UpdateDocumentStage(ctx context.Context, id string, to model.Stage, reason string) error {
	if f.docWrites.Add(1) <= f.docFailures {
		return errors.New("database is locked")
	}
	return f.SQLiteStore.UpdateDocumentStage(ctx, id, to, reason)
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}
}

func seeded(t *testing.T, docFailures int32) *flakyStore {
	t.Helper()
	st := &flakyStore{SQLiteStore: newTestSQLiteStore(t), docFailures: docFailures}
	d, doc := newDeal("deal-1", time.Now().UTC())
	require.NoError(t, st.CreateDeal(context.Background(), d, doc))
	return st
}

func stages(t *testing.T, st Store) (model.Stage, model.Stage) {
	t.Helper()
	d, err := st.GetDeal(context.Background(), "deal-1")
	require.NoError(t, err)
	doc, err := st.GetDocument(context.Background(), "deal-1")
	require.NoError(t, err)
	return d.Stage, doc.Stage
}

func TestStageWriter_Commit(t *testing.T) {
	st := seeded(t, 0)
	w := NewStageWriter(st, fastRetry())
	ctx := context.Background()

	prev := model.StageProcessing
	for _, next := range model.StageOrder()[1:] {
		require.NoError(t, w.Commit(ctx, "deal-1", "doc-deal-1", prev, next, ""))
		dealStage, docStage := stages(t, st)
		assert.Equal(t, next, dealStage)
		assert.Equal(t, next, docStage)
		prev = next
	}
}

func TestStageWriter_DocumentRetryDoesNotRedoDealWrite(t *testing.T) {
	st := seeded(t, 2)
	w := NewStageWriter(st, fastRetry())

	require.NoError(t, w.Commit(context.Background(), "deal-1", "doc-deal-1", model.StageProcessing, model.StageExtracting, ""))

	assert.Equal(t, int32(1), st.dealWrites.Load())
	assert.Equal(t, int32(3), st.docWrites.Load())
	dealStage, docStage := stages(t, st)
	assert.Equal(t, model.StageExtracting, dealStage)
	assert.Equal(t, model.StageExtracting, docStage)
}

func TestStageWriter_ConflictWhenRetriesExhausted(t *testing.T) {
	st := seeded(t, 100)
	w := NewStageWriter(st, fastRetry())

	err := w.Commit(context.Background(), "deal-1", "doc-deal-1", model.StageProcessing, model.StageExtracting, "")

	var conflict *model.StageWriteConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "deal-1", conflict.DealID)
	assert.Equal(t, "doc-deal-1", conflict.DocumentID)
	assert.Equal(t, model.StageExtracting, conflict.Stage)
	assert.Equal(t, int32(3), st.docWrites.Load())
	assert.Contains(t, err.Error(), "database is locked")
}

func TestStageWriter_RejectsInvalidTransition(t *testing.T) {
	st := seeded(t, 0)
	w := NewStageWriter(st, fastRetry())
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to model.Stage
	}{
		{"skip a stage", model.StageProcessing, model.StageEnriching},
		{"backwards", model.StageScoring, model.StageEnriching},
		{"out of completed", model.StageCompleted, model.StageFailed},
		{"out of failed", model.StageFailed, model.StageExtracting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Commit(ctx, "deal-1", "doc-deal-1", tt.from, tt.to, "")
			assert.ErrorIs(t, err, model.ErrInvalidTransition)
		})
	}
	assert.Zero(t, st.dealWrites.Load())
}

func TestStageWriter_FailedFromAnyActiveStage(t *testing.T) {
	st := seeded(t, 0)
	w := NewStageWriter(st, fastRetry())
	ctx := context.Background()

	require.NoError(t, w.Commit(ctx, "deal-1", "doc-deal-1", model.StageProcessing, model.StageExtracting, ""))
	require.NoError(t, w.Commit(ctx, "deal-1", "doc-deal-1", model.StageExtracting, model.StageFailed, "insufficient input: no text"))

	d, err := st.GetDeal(ctx, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, model.StageFailed, d.Stage)
	assert.Equal(t, "insufficient input: no text", d.FailureReason)
	doc, err := st.GetDocument(ctx, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, "insufficient input: no text", doc.FailureReason)
}

func TestStageWriter_StaleFromIsNotRetried(t *testing.T) {
	st := seeded(t, 0)
	w := NewStageWriter(st, fastRetry())

	err := w.Commit(context.Background(), "deal-1", "doc-deal-1", model.StageScoring, model.StageGeneratingOutput, "")
	assert.ErrorIs(t, err, ErrStageMismatch)
	assert.Equal(t, int32(1), st.dealWrites.Load())
	assert.Zero(t, st.docWrites.Load())
}

func TestStageWriter_AbortFromConflictedCompleted(t *testing.T) {
	st := seeded(t, 0)
	w := NewStageWriter(st, fastRetry())
	ctx := context.Background()

	// Deal record reached completed; the document never followed.
	require.NoError(t, st.UpdateDealStage(ctx, "deal-1", model.StageProcessing, model.StageCompleted, ""))
	require.ErrorIs(t, w.Commit(ctx, "deal-1", "doc-deal-1", model.StageCompleted, model.StageFailed, "x"), model.ErrInvalidTransition)

	require.NoError(t, w.Abort(ctx, "deal-1", "doc-deal-1", model.StageCompleted, "stage write conflict"))

	dealStage, docStage := stages(t, st)
	assert.Equal(t, model.StageFailed, dealStage)
	assert.Equal(t, model.StageFailed, docStage)
	d, err := st.GetDeal(ctx, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, "stage write conflict", d.FailureReason)
}

func TestStageWriter_AbortRejectsFailed(t *testing.T) {
	st := seeded(t, 0)
	w := NewStageWriter(st, fastRetry())

	err := w.Abort(context.Background(), "deal-1", "doc-deal-1", model.StageFailed, "x")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	assert.Zero(t, st.dealWrites.Load())
}
