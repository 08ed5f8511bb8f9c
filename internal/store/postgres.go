package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/maroofsyyed/Duesense1/internal/db"
	"github.com/maroofsyyed/Duesense1/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS deals (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	stage          TEXT NOT NULL,
	failure_reason TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT '',
	sector         TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
	id             TEXT PRIMARY KEY,
	deal_id        TEXT NOT NULL UNIQUE REFERENCES deals(id),
	kind           TEXT NOT NULL,
	filename       TEXT NOT NULL DEFAULT '',
	size_bytes     BIGINT NOT NULL DEFAULT 0,
	stage          TEXT NOT NULL,
	failure_reason TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS artifacts (
	deal_id    TEXT NOT NULL REFERENCES deals(id),
	kind       TEXT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (deal_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_deals_stage ON deals(stage);
CREATE INDEX IF NOT EXISTS idx_deals_created_at ON deals(created_at DESC);
`

const dealColumns = `id, name, stage, failure_reason, website, location, sector, created_at, updated_at`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateDeal inserts a deal and its document in one transaction.
func (s *PostgresStore) CreateDeal(ctx context.Context, d *model.Deal, doc *model.Document) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin create deal")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO deals (`+dealColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.Name, string(d.Stage), d.FailureReason, d.Website, d.Location, d.Sector, d.CreatedAt, d.UpdatedAt,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert deal %s", d.ID)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO documents (id, deal_id, kind, filename, size_bytes, stage, failure_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, doc.DealID, string(doc.Kind), doc.Filename, doc.SizeBytes, string(doc.Stage), doc.FailureReason, doc.CreatedAt, doc.UpdatedAt,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert document %s", doc.ID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit create deal")
}

// GetDeal returns the deal with the given id.
func (s *PostgresStore) GetDeal(ctx context.Context, id string) (*model.Deal, error) {
	var d model.Deal
	var stage string
	err := s.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &stage, &d.FailureReason, &d.Website, &d.Location, &d.Sector, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("deal", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get deal %s", id)
	}
	d.Stage = model.Stage(stage)
	return &d, nil
}

// GetDocument returns the document coupled to a deal.
func (s *PostgresStore) GetDocument(ctx context.Context, dealID string) (*model.Document, error) {
	var doc model.Document
	var kind, stage string
	err := s.pool.QueryRow(ctx,
		`SELECT id, deal_id, kind, filename, size_bytes, stage, failure_reason, created_at, updated_at
		 FROM documents WHERE deal_id = $1`, dealID,
	).Scan(&doc.ID, &doc.DealID, &kind, &doc.Filename, &doc.SizeBytes, &stage, &doc.FailureReason, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("document for deal", dealID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get document for deal %s", dealID)
	}
	doc.Kind = model.DocumentKind(kind)
	doc.Stage = model.Stage(stage)
	return &doc, nil
}

// ListDeals returns deals newest first.
func (s *PostgresStore) ListDeals(ctx context.Context, filter DealFilter) ([]model.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Stage != "" {
		query += fmt.Sprintf(` AND stage = $%d`, argIdx)
		args = append(args, string(filter.Stage))
		argIdx++
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list deals")
	}
	defer rows.Close()

	var deals []model.Deal
	for rows.Next() {
		var d model.Deal
		var stage string
		if err := rows.Scan(&d.ID, &d.Name, &stage, &d.FailureReason, &d.Website, &d.Location, &d.Sector, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan deal")
		}
		d.Stage = model.Stage(stage)
		deals = append(deals, d)
	}
	return deals, eris.Wrap(rows.Err(), "postgres: list deals iterate")
}

// UpdateDealProfile records the company facts learned during extraction.
func (s *PostgresStore) UpdateDealProfile(ctx context.Context, id string, p DealProfile) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE deals SET name = $1, website = $2, location = $3, sector = $4, updated_at = $5 WHERE id = $6`,
		p.Name, p.Website, p.Location, p.Sector, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update deal profile %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("deal", id)
	}
	return nil
}

// UpdateDealStage moves a deal from one stage to another.
func (s *PostgresStore) UpdateDealStage(ctx context.Context, id string, from, to model.Stage, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE deals SET stage = $1, failure_reason = $2, updated_at = $3 WHERE id = $4 AND stage IN ($5, $6)`,
		string(to), reason, time.Now().UTC(), id, string(from), string(to),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update deal stage %s", id)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetDeal(ctx, id); err != nil {
			return err
		}
		return eris.Wrapf(ErrStageMismatch, "deal %s: want %s", id, from)
	}
	return nil
}

// UpdateDocumentStage sets a document's stage.
func (s *PostgresStore) UpdateDocumentStage(ctx context.Context, id string, to model.Stage, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET stage = $1, failure_reason = $2, updated_at = $3 WHERE id = $4`,
		string(to), reason, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update document stage %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("document", id)
	}
	return nil
}

// SaveArtifact stores v as JSONB, replacing any previous artifact of kind.
func (s *PostgresStore) SaveArtifact(ctx context.Context, dealID string, kind ArtifactKind, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal %s", kind)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO artifacts (deal_id, kind, data, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (deal_id, kind) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		dealID, string(kind), data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save %s for deal %s", kind, dealID)
}

// LoadArtifact decodes the stored artifact of kind into out.
func (s *PostgresStore) LoadArtifact(ctx context.Context, dealID string, kind ArtifactKind, out any) error {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM artifacts WHERE deal_id = $1 AND kind = $2`, dealID, string(kind),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(string(kind)+" for deal", dealID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: load %s for deal %s", kind, dealID)
	}
	return eris.Wrapf(json.Unmarshal(data, out), "postgres: unmarshal %s", kind)
}
