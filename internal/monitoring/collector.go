// Package monitoring watches batch-run health and posts webhook alerts when
// ingestion or price refresh degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tradewatch/internal/db"
	"github.com/sells-group/tradewatch/internal/model"
	"github.com/sells-group/tradewatch/internal/runlog"
)

// RunCounts tallies runs of one kind by status.
type RunCounts struct {
	Total    int `json:"total" yaml:"total"`
	Complete int `json:"complete" yaml:"complete"`
	Failed   int `json:"failed" yaml:"failed"`
	Running  int `json:"running" yaml:"running"`
}

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Runs by kind within the lookback window.
	Runs map[string]RunCounts `json:"runs" yaml:"runs"`

	// Documents touched within the lookback window.
	DocumentsTotal    int     `json:"documents_total" yaml:"documents_total"`
	DocumentErrors    int     `json:"document_errors" yaml:"document_errors"`
	DocumentErrorRate float64 `json:"document_error_rate" yaml:"document_error_rate"`

	// Per-symbol errors reported by completed price runs, and symbols
	// currently flagged as errored in the fetch log.
	PriceRunErrors    int `json:"price_run_errors" yaml:"price_run_errors"`
	PriceSymbolErrors int `json:"price_symbol_errors" yaml:"price_symbol_errors"`

	LookbackHours int       `json:"lookback_hours" yaml:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at" yaml:"collected_at"`
}

// RunLister abstracts the runlog read needed by the collector.
type RunLister interface {
	Since(ctx context.Context, t time.Time) ([]runlog.Entry, error)
}

// HealthQuerier counts document and price-fetch failures.
type HealthQuerier interface {
	DocumentCounts(ctx context.Context, since time.Time) (total, errored int, err error)
	PriceSymbolErrors(ctx context.Context) (int, error)
}

// Collector gathers metrics from the run log and the data tables.
type Collector struct {
	runs    RunLister
	health  HealthQuerier
	nowFunc func() time.Time
}

// NewCollector creates a new metrics collector. health may be nil.
func NewCollector(runs RunLister, health HealthQuerier) *Collector {
	return &Collector{runs: runs, health: health, nowFunc: time.Now}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.nowFunc().UTC()
	snap := &MetricsSnapshot{
		Runs:          make(map[string]RunCounts),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	entries, err := c.runs.Since(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}
	for _, e := range entries {
		rc := snap.Runs[e.Kind]
		rc.Total++
		switch e.Status {
		case runlog.StatusComplete:
			rc.Complete++
		case runlog.StatusFailed:
			rc.Failed++
		case runlog.StatusRunning:
			rc.Running++
		}
		snap.Runs[e.Kind] = rc

		if e.Kind == runlog.KindPrices && e.Status == runlog.StatusComplete {
			snap.PriceRunErrors += metaInt(e.Metadata, "errors")
		}
	}

	if c.health == nil {
		return snap, nil
	}

	total, errored, err := c.health.DocumentCounts(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count documents")
	}
	snap.DocumentsTotal = total
	snap.DocumentErrors = errored
	if total > 0 {
		snap.DocumentErrorRate = float64(errored) / float64(total)
	}

	snap.PriceSymbolErrors, err = c.health.PriceSymbolErrors(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count price errors")
	}
	return snap, nil
}

// metaInt reads a count from decoded JSON metadata, where numbers are float64.
func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// PGHealth implements HealthQuerier on Postgres.
type PGHealth struct {
	pool db.Pool
}

// NewPGHealth creates a PGHealth backed by the given pool.
func NewPGHealth(pool db.Pool) *PGHealth {
	return &PGHealth{pool: pool}
}

// DocumentCounts returns how many documents were ingested since t and how
// many of those are in error.
func (h *PGHealth) DocumentCounts(ctx context.Context, since time.Time) (int, int, error) {
	var total, errored int
	err := h.pool.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE status = $2)
		 FROM source_documents WHERE ingested_at >= $1`,
		since, string(model.DocumentError),
	).Scan(&total, &errored)
	if err != nil {
		return 0, 0, eris.Wrap(err, "monitoring: document counts")
	}
	return total, errored, nil
}

// PriceSymbolErrors returns how many symbols have an errored fetch log.
func (h *PGHealth) PriceSymbolErrors(ctx context.Context) (int, error) {
	var n int
	err := h.pool.QueryRow(ctx,
		`SELECT count(*) FROM price_fetch_log WHERE status = $1`,
		string(model.FetchError),
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "monitoring: price error count")
	}
	return n, nil
}
