package store

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/internal/resilience"
)

// StageWriter commits a stage transition to a deal and its document as one
// logical write.
type StageWriter struct {
	store Store
	retry resilience.RetryConfig
}

// NewStageWriter creates a StageWriter. retry bounds the attempts for each
// of the two record writes.
func NewStageWriter(s Store, retry resilience.RetryConfig) *StageWriter {
	retry.ShouldRetry = retryableWrite
	return &StageWriter{store: s, retry: retry}
}

// retryableWrite rejects errors another attempt cannot fix.
func retryableWrite(err error) bool {
	return !errors.Is(err, model.ErrNotFound) && !errors.Is(err, ErrStageMismatch)
}

// Commit validates from -> to, writes the deal, then the document. A failed
// document write is retried on its own without repeating the deal write; if
// it still fails the records disagree and a *model.StageWriteConflictError
// is returned.
func (w *StageWriter) Commit(ctx context.Context, dealID, docID string, from, to model.Stage, reason string) error {
	if !model.CanTransition(from, to) {
		return eris.Wrapf(model.ErrInvalidTransition, "store: %s -> %s", from, to)
	}
	return w.write(ctx, dealID, docID, from, to, reason)
}

// Abort marks a deal failed from a stage whose commit ended in a
// *model.StageWriteConflictError. The deal record already holds at, so the
// write is allowed even when at is completed: a conflicted stage was never
// committed on both records.
func (w *StageWriter) Abort(ctx context.Context, dealID, docID string, at model.Stage, reason string) error {
	if at == model.StageFailed || !at.Valid() {
		return eris.Wrapf(model.ErrInvalidTransition, "store: abort from %s", at)
	}
	return w.write(ctx, dealID, docID, at, model.StageFailed, reason)
}

func (w *StageWriter) write(ctx context.Context, dealID, docID string, from, to model.Stage, reason string) error {
	start := time.Now()
	dealCfg := w.retry
	dealCfg.OnRetry = resilience.RetryLogger("store", "deal_stage")
	if err := resilience.Do(ctx, dealCfg, func(ctx context.Context) error {
		return w.store.UpdateDealStage(ctx, dealID, from, to, reason)
	}); err != nil {
		return eris.Wrapf(err, "store: commit %s -> %s", from, to)
	}

	docCfg := w.retry
	docCfg.OnRetry = resilience.RetryLogger("store", "document_stage")
	if err := resilience.Do(ctx, docCfg, func(ctx context.Context) error {
		return w.store.UpdateDocumentStage(ctx, docID, to, reason)
	}); err != nil {
		zap.L().Error("store: stage write conflict",
			zap.String("deal_id", dealID),
			zap.String("document_id", docID),
			zap.String("stage", string(to)),
			zap.Error(err),
		)
		return &model.StageWriteConflictError{DealID: dealID, DocumentID: docID, Stage: to, Err: err}
	}

	zap.L().Debug("store: stage committed",
		zap.String("deal_id", dealID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
