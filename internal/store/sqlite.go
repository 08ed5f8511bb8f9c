package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS deals (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	stage          TEXT NOT NULL,
	failure_reason TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT '',
	sector         TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id             TEXT PRIMARY KEY,
	deal_id        TEXT NOT NULL UNIQUE REFERENCES deals(id),
	kind           TEXT NOT NULL,
	filename       TEXT NOT NULL DEFAULT '',
	size_bytes     INTEGER NOT NULL DEFAULT 0,
	stage          TEXT NOT NULL,
	failure_reason TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS artifacts (
	deal_id    TEXT NOT NULL REFERENCES deals(id),
	kind       TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (deal_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_deals_stage ON deals(stage);
CREATE INDEX IF NOT EXISTS idx_deals_created_at ON deals(created_at);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateDeal inserts a deal and its document in one transaction.
func (s *SQLiteStore) CreateDeal(ctx context.Context, d *model.Deal, doc *model.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin create deal")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO deals (id, name, stage, failure_reason, website, location, sector, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, string(d.Stage), d.FailureReason, d.Website, d.Location, d.Sector, d.CreatedAt, d.UpdatedAt,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert deal %s", d.ID)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, deal_id, kind, filename, size_bytes, stage, failure_reason, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.DealID, string(doc.Kind), doc.Filename, doc.SizeBytes, string(doc.Stage), doc.FailureReason, doc.CreatedAt, doc.UpdatedAt,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert document %s", doc.ID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit create deal")
}

// GetDeal returns the deal with the given id.
func (s *SQLiteStore) GetDeal(ctx context.Context, id string) (*model.Deal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, stage, failure_reason, website, location, sector, created_at, updated_at
		 FROM deals WHERE id = ?`, id)
	d, err := scanDeal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("deal", id)
	}
	return d, eris.Wrapf(err, "sqlite: get deal %s", id)
}

// GetDocument returns the document coupled to a deal.
func (s *SQLiteStore) GetDocument(ctx context.Context, dealID string) (*model.Document, error) {
	var doc model.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, deal_id, kind, filename, size_bytes, stage, failure_reason, created_at, updated_at
		 FROM documents WHERE deal_id = ?`, dealID,
	).Scan(&doc.ID, &doc.DealID, &doc.Kind, &doc.Filename, &doc.SizeBytes, &doc.Stage, &doc.FailureReason, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("document for deal", dealID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document for deal %s", dealID)
	}
	return &doc, nil
}

// ListDeals returns deals newest first.
func (s *SQLiteStore) ListDeals(ctx context.Context, filter DealFilter) ([]model.Deal, error) {
	query := `SELECT id, name, stage, failure_reason, website, location, sector, created_at, updated_at FROM deals WHERE 1=1`
	var args []any
	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(filter.Stage))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list deals")
	}
	defer rows.Close() //nolint:errcheck

	var deals []model.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan deal")
		}
		deals = append(deals, *d)
	}
	return deals, eris.Wrap(rows.Err(), "sqlite: list deals iterate")
}

// UpdateDealProfile records the company facts learned during extraction.
func (s *SQLiteStore) UpdateDealProfile(ctx context.Context, id string, p DealProfile) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deals SET name = ?, website = ?, location = ?, sector = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Website, p.Location, p.Sector, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update deal profile %s", id)
	}
	return checkRowsAffected(res, "deal", id)
}

// UpdateDealStage moves a deal from one stage to another.
func (s *SQLiteStore) UpdateDealStage(ctx context.Context, id string, from, to model.Stage, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deals SET stage = ?, failure_reason = ?, updated_at = ? WHERE id = ? AND stage IN (?, ?)`,
		string(to), reason, time.Now().UTC(), id, string(from), string(to),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update deal stage %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		if _, err := s.GetDeal(ctx, id); err != nil {
			return err
		}
		return eris.Wrapf(ErrStageMismatch, "deal %s: want %s", id, from)
	}
	return nil
}

// UpdateDocumentStage sets a document's stage.
func (s *SQLiteStore) UpdateDocumentStage(ctx context.Context, id string, to model.Stage, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET stage = ?, failure_reason = ?, updated_at = ? WHERE id = ?`,
		string(to), reason, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update document stage %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

// SaveArtifact stores v as JSON, replacing any previous artifact of kind.
func (s *SQLiteStore) SaveArtifact(ctx context.Context, dealID string, kind ArtifactKind, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal %s", kind)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO artifacts (deal_id, kind, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (deal_id, kind) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		dealID, string(kind), string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save %s for deal %s", kind, dealID)
}

// LoadArtifact decodes the stored artifact of kind into out.
func (s *SQLiteStore) LoadArtifact(ctx context.Context, dealID string, kind ArtifactKind, out any) error {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM artifacts WHERE deal_id = ? AND kind = ?`, dealID, string(kind),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(string(kind)+" for deal", dealID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: load %s for deal %s", kind, dealID)
	}
	return eris.Wrapf(json.Unmarshal([]byte(data), out), "sqlite: unmarshal %s", kind)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDeal(row scannable) (*model.Deal, error) {
	var d model.Deal
	if err := row.Scan(&d.ID, &d.Name, &d.Stage, &d.FailureReason, &d.Website, &d.Location, &d.Sector, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}
