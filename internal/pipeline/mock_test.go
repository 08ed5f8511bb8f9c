package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, in model.InputSet) (*model.ExtractionBundle, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExtractionBundle), args.Error(1)
}

// --- Enricher Mock ---

type mockEnricher struct {
	mock.Mock
}

func (m *mockEnricher) Run(ctx context.Context, bundle *model.ExtractionBundle) map[string]model.EnrichmentRecord {
	args := m.Called(ctx, bundle)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(map[string]model.EnrichmentRecord)
}

// --- Scorer Mock ---

type mockScorer struct {
	mock.Mock
}

func (m *mockScorer) Score(ctx context.Context, bundle *model.ExtractionBundle, enrichment map[string]model.EnrichmentRecord) (*model.ScoreRecord, error) {
	args := m.Called(ctx, bundle, enrichment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScoreRecord), args.Error(1)
}

// --- Narrator Mock ---

type mockNarrator struct {
	mock.Mock
}

func (m *mockNarrator) Generate(ctx context.Context, bundle *model.ExtractionBundle, enrichment map[string]model.EnrichmentRecord, score *model.ScoreRecord) *model.NarrativeDocument {
	args := m.Called(ctx, bundle, enrichment, score)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*model.NarrativeDocument)
}
