// Package store persists deals, their input documents and the per-run
// artifacts, and owns the dual-record stage write.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/maroofsyyed/Duesense1/internal/config"
	"github.com/maroofsyyed/Duesense1/internal/db"
	"github.com/maroofsyyed/Duesense1/internal/model"
)

// ArtifactKind names one stored stage output.
type ArtifactKind string

// Artifact kinds. Each deal holds at most one of each; a rerun overwrites.
const (
	ArtifactExtraction ArtifactKind = "extraction"
	ArtifactEnrichment ArtifactKind = "enrichment"
	ArtifactScore      ArtifactKind = "score"
	ArtifactNarrative  ArtifactKind = "narrative"
)

// DealProfile holds the deal columns learned during extraction.
type DealProfile struct {
	Name     string
	Website  string
	Location string
	Sector   string
}

// DealFilter specifies criteria for listing deals.
type DealFilter struct {
	Stage model.Stage
	Limit int
}

// Store defines the persistence interface for the pipeline.
type Store interface {
	// Deals and documents
	CreateDeal(ctx context.Context, deal *model.Deal, doc *model.Document) error
	GetDeal(ctx context.Context, id string) (*model.Deal, error)
	GetDocument(ctx context.Context, dealID string) (*model.Document, error)
	ListDeals(ctx context.Context, filter DealFilter) ([]model.Deal, error)
	UpdateDealProfile(ctx context.Context, id string, p DealProfile) error

	// Stage writes. UpdateDealStage only applies when the deal is at from
	// (or already at to); UpdateDocumentStage is unconditional.
	UpdateDealStage(ctx context.Context, id string, from, to model.Stage, reason string) error
	UpdateDocumentStage(ctx context.Context, id string, to model.Stage, reason string) error

	// Artifacts
	SaveArtifact(ctx context.Context, dealID string, kind ArtifactKind, v any) error
	LoadArtifact(ctx context.Context, dealID string, kind ArtifactKind, out any) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// ErrStageMismatch is returned by UpdateDealStage when the deal is at
// neither from nor to.
var ErrStageMismatch = eris.New("store: deal is not at the expected stage")

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		pool, err := db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, err
		}
		return NewPostgres(pool), nil
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

func notFound(entity, id string) error {
	return eris.Wrapf(model.ErrNotFound, "store: %s %s", entity, id)
}
