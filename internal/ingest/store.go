package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tradewatch/internal/db"
	"github.com/sells-group/tradewatch/internal/model"
)

// FilerRef is a filer with at least one unlinked trade.
type FilerRef struct {
	FilerName string
	Office    string
}

// Store persists source documents, trades and officials.
type Store interface {
	GetDocument(ctx context.Context, source, externalID string) (*model.SourceDocument, error)
	// SaveParsed upserts doc as parsed and replaces its trade set in one
	// transaction. It sets doc.ID and returns the number of trades inserted.
	SaveParsed(ctx context.Context, doc *model.SourceDocument, trades []model.Trade) (int, error)
	// SaveError upserts doc with status error. Existing trades are kept.
	SaveError(ctx context.Context, doc *model.SourceDocument) error
	UnlinkedFilers(ctx context.Context) ([]FilerRef, error)
	UpsertOfficial(ctx context.Context, o *model.Official) (int64, error)
	LinkTrades(ctx context.Context, officialID int64, filerNames []string) (int64, error)
}

// PGStore implements Store on Postgres.
type PGStore struct {
	pool db.Pool
}

// NewPGStore creates a PGStore backed by the given pool.
func NewPGStore(pool db.Pool) *PGStore {
	return &PGStore{pool: pool}
}

var tradeColumns = []string{
	"document_id", "official_id", "asset_name", "ticker", "trade_type",
	"trade_date", "disclosure_date", "amount_min", "amount_max", "raw_line",
}

// GetDocument returns the document for (source, externalID), or nil.
func (s *PGStore) GetDocument(ctx context.Context, source, externalID string) (*model.SourceDocument, error) {
	var (
		d        model.SourceDocument
		year     *int
		hash     *string
		errMsg   *string
		status   string
		filedAt  *time.Time
		estimate bool
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, source, external_id, url, filer_name, office, filing_year, filed_at,
		        filed_at_estimated, content_hash, status, error_message, ingested_at
		 FROM source_documents WHERE source = $1 AND external_id = $2`,
		source, externalID,
	).Scan(&d.ID, &d.Source, &d.ExternalID, &d.URL, &d.FilerName, &d.Office, &year, &filedAt,
		&estimate, &hash, &status, &errMsg, &d.IngestedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: get document %s/%s", source, externalID)
	}
	if year != nil {
		d.FilingYear = *year
	}
	if hash != nil {
		d.ContentHash = *hash
	}
	if errMsg != nil {
		d.ErrorMessage = *errMsg
	}
	d.FiledAt = filedAt
	d.FiledAtEstimated = estimate
	d.Status = model.DocumentStatus(status)
	return &d, nil
}

// SaveParsed implements Store.
func (s *PGStore) SaveParsed(ctx context.Context, doc *model.SourceDocument, trades []model.Trade) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "ingest: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	err = tx.QueryRow(ctx,
		`INSERT INTO source_documents
		   (source, external_id, url, filer_name, office, filing_year, filed_at, filed_at_estimated,
		    content_hash, status, raw_text, error_message, ingested_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'parsed', $10, NULL, now())
		 ON CONFLICT (source, external_id) DO UPDATE SET
		   url = EXCLUDED.url,
		   filer_name = EXCLUDED.filer_name,
		   office = EXCLUDED.office,
		   filing_year = EXCLUDED.filing_year,
		   filed_at = EXCLUDED.filed_at,
		   filed_at_estimated = EXCLUDED.filed_at_estimated,
		   content_hash = EXCLUDED.content_hash,
		   status = 'parsed',
		   raw_text = EXCLUDED.raw_text,
		   error_message = NULL,
		   ingested_at = now()
		 RETURNING id`,
		doc.Source, doc.ExternalID, doc.URL, doc.FilerName, doc.Office, nullInt(doc.FilingYear),
		doc.FiledAt, doc.FiledAtEstimated, nullString(doc.ContentHash), doc.RawText,
	).Scan(&doc.ID)
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: upsert document %s", doc.ExternalID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM trades WHERE document_id = $1`, doc.ID); err != nil {
		return 0, eris.Wrapf(err, "ingest: delete trades for document %d", doc.ID)
	}

	rows := make([][]any, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, []any{
			doc.ID, t.OfficialID, t.AssetName, nullString(t.Ticker), string(t.TradeType),
			t.TradeDate, t.DisclosureDate, db.Numeric(t.AmountMin), db.Numeric(t.AmountMax), t.RawLine,
		})
	}
	n, err := db.CopyFrom(ctx, tx, "trades", tradeColumns, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: insert trades for document %d", doc.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "ingest: commit")
	}
	return int(n), nil
}

// SaveError implements Store. The stored content hash is left alone so a
// later successful parse still sees the last good hash.
func (s *PGStore) SaveError(ctx context.Context, doc *model.SourceDocument) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO source_documents
		   (source, external_id, url, filer_name, office, filing_year, filed_at, filed_at_estimated,
		    content_hash, status, error_message, ingested_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'error', $10, now())
		 ON CONFLICT (source, external_id) DO UPDATE SET
		   status = 'error',
		   error_message = EXCLUDED.error_message,
		   ingested_at = now()`,
		doc.Source, doc.ExternalID, doc.URL, doc.FilerName, doc.Office, nullInt(doc.FilingYear),
		doc.FiledAt, doc.FiledAtEstimated, nullString(doc.ContentHash), doc.ErrorMessage,
	)
	if err != nil {
		return eris.Wrapf(err, "ingest: save error for document %s", doc.ExternalID)
	}
	return nil
}

// UnlinkedFilers returns each distinct (filer, office) pair that still has
// trades without an official.
func (s *PGStore) UnlinkedFilers(ctx context.Context) ([]FilerRef, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT d.filer_name, d.office
		 FROM trades t JOIN source_documents d ON d.id = t.document_id
		 WHERE t.official_id IS NULL AND d.filer_name <> ''
		 ORDER BY d.filer_name, d.office`)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: query unlinked filers")
	}
	defer rows.Close()

	var refs []FilerRef
	for rows.Next() {
		var r FilerRef
		if err := rows.Scan(&r.FilerName, &r.Office); err != nil {
			return nil, eris.Wrap(err, "ingest: scan unlinked filer")
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// UpsertOfficial creates the official if missing and returns its id.
// Jurisdiction is only filled in when previously unknown.
func (s *PGStore) UpsertOfficial(ctx context.Context, o *model.Official) (int64, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO officials (name, chamber, jurisdiction, sub_jurisdiction)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name, chamber) DO UPDATE SET
		   jurisdiction = COALESCE(officials.jurisdiction, EXCLUDED.jurisdiction),
		   sub_jurisdiction = COALESCE(officials.sub_jurisdiction, EXCLUDED.sub_jurisdiction)
		 RETURNING id`,
		o.Name, o.Chamber, nullString(o.Jurisdiction), nullString(o.SubJurisdiction),
	).Scan(&o.ID)
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: upsert official %q", o.Name)
	}
	return o.ID, nil
}

// LinkTrades attaches every unlinked trade filed under one of filerNames to
// the official.
func (s *PGStore) LinkTrades(ctx context.Context, officialID int64, filerNames []string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trades t SET official_id = $1
		 FROM source_documents d
		 WHERE d.id = t.document_id AND t.official_id IS NULL AND d.filer_name = ANY($2)`,
		officialID, filerNames,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: link trades to official %d", officialID)
	}
	return tag.RowsAffected(), nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
