// Package runlog records batch runs (ingestion, reconciliation, price
// refresh, performance recompute) in the sync_log table.
package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tradewatch/internal/db"
)

// Run kinds.
const (
	KindIngest    = "ingest"
	KindReconcile = "reconcile"
	KindPrices    = "prices"
	KindPerf      = "perf"
)

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Entry is one row of sync_log.
type Entry struct {
	ID          int64          `json:"id" yaml:"id"`
	RunID       uuid.UUID      `json:"run_id" yaml:"run_id"`
	Kind        string         `json:"kind" yaml:"kind"`
	Status      string         `json:"status" yaml:"status"`
	StartedAt   time.Time      `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	RowsSynced  int64          `json:"rows_synced" yaml:"rows_synced"`
	Error       string         `json:"error,omitempty" yaml:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Run identifies a started run.
type Run struct {
	ID    int64
	RunID uuid.UUID
}

// Result is passed to Complete.
type Result struct {
	RowsSynced int64
	Metadata   map[string]any
}

// Log provides read/write access to sync_log.
type Log struct {
	pool db.Pool
}

// New creates a Log backed by the given pool.
func New(pool db.Pool) *Log {
	return &Log{pool: pool}
}

// Start records the beginning of a run.
func (l *Log) Start(ctx context.Context, kind string) (Run, error) {
	run := Run{RunID: uuid.New()}
	err := l.pool.QueryRow(ctx,
		`INSERT INTO sync_log (run_id, kind, status, started_at)
		 VALUES ($1, $2, 'running', now()) RETURNING id`,
		run.RunID, kind,
	).Scan(&run.ID)
	if err != nil {
		return Run{}, eris.Wrapf(err, "runlog: start %s", kind)
	}
	return run, nil
}

// Complete marks a run as successfully completed.
func (l *Log) Complete(ctx context.Context, id int64, result Result) error {
	var metaJSON []byte
	if result.Metadata != nil {
		var err error
		metaJSON, err = json.Marshal(result.Metadata)
		if err != nil {
			return eris.Wrap(err, "runlog: marshal metadata")
		}
	}

	_, err := l.pool.Exec(ctx,
		`UPDATE sync_log
		 SET status = 'complete', completed_at = now(), rows_synced = $1, metadata = $2
		 WHERE id = $3`,
		result.RowsSynced, metaJSON, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %d", id)
	}
	return nil
}

// Fail marks a run as failed with an error message.
func (l *Log) Fail(ctx context.Context, id int64, errMsg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE sync_log
		 SET status = 'failed', completed_at = now(), error = $1
		 WHERE id = $2`,
		errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %d", id)
	}
	return nil
}

// LastSuccess returns when the most recent completed run of kind started,
// or nil if there is none.
func (l *Log) LastSuccess(ctx context.Context, kind string) (*time.Time, error) {
	var t time.Time
	err := l.pool.QueryRow(ctx,
		`SELECT started_at FROM sync_log
		 WHERE kind = $1 AND status = 'complete'
		 ORDER BY started_at DESC LIMIT 1`,
		kind,
	).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: last success for %s", kind)
	}
	return &t, nil
}

const selectEntries = `SELECT id, run_id, kind, status, started_at, completed_at, rows_synced, error, metadata
		 FROM sync_log`

// List returns the most recent runs, newest first. An empty kind lists every
// kind; limit <= 0 means 50.
func (l *Log) List(ctx context.Context, kind string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx,
		selectEntries+` WHERE ($1 = '' OR kind = $1) ORDER BY started_at DESC LIMIT $2`,
		kind, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list")
	}
	return scanEntries(rows)
}

// Since returns every run started at or after t, newest first.
func (l *Log) Since(ctx context.Context, t time.Time) ([]Entry, error) {
	rows, err := l.pool.Query(ctx,
		selectEntries+` WHERE started_at >= $1 ORDER BY started_at DESC`,
		t,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: since")
	}
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var errStr *string
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &e.RunID, &e.Kind, &e.Status, &e.StartedAt, &e.CompletedAt, &e.RowsSynced, &errStr, &metaJSON); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		if errStr != nil {
			e.Error = *errStr
		}
		if metaJSON != nil {
			_ = json.Unmarshal(metaJSON, &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
