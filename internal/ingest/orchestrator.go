// Package ingest drives disclosure ingestion: discovery over the bulk index
// and the search endpoint, per-document retrieval and parsing, idempotent
// persistence and reconciliation of filers to officials.
package ingest

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tradewatch/internal/disclosure"
	"github.com/sells-group/tradewatch/internal/fetcher"
	"github.com/sells-group/tradewatch/internal/model"
	"github.com/sells-group/tradewatch/internal/runlog"
)

// errorMessageLimit caps the error text stored on a failed document.
const errorMessageLimit = 2000

// RunRecorder records run start and outcome. *runlog.Log satisfies it.
type RunRecorder interface {
	Start(ctx context.Context, kind string) (runlog.Run, error)
	Complete(ctx context.Context, id int64, result runlog.Result) error
	Fail(ctx context.Context, id int64, errMsg string) error
}

// throttleSetter is implemented by retrievers whose throttle can be changed
// per run.
type throttleSetter interface {
	SetThrottle(d time.Duration)
}

// Config holds the orchestrator's fixed settings.
type Config struct {
	Source           string
	KnownStreakLimit int
	LookbackDays     int
	MaxPages         int
}

// Options configures a single run. Zero values fall back to Config.
type Options struct {
	LookbackDays int  // search phase window
	MaxPages     int  // search phase page cap
	ThrottleMs   int  // overrides the retriever throttle when > 0
	Year         int  // filing year; 0 = current year
	Force        bool // re-process documents that are already parsed
}

// Orchestrator runs ingestion.
type Orchestrator struct {
	fetcher fetcher.Retriever
	parsers *disclosure.Registry
	store   Store
	runs    RunRecorder
	cfg     Config
	log     *zap.Logger
	nowFunc func() time.Time
}

// New creates an Orchestrator. runs may be nil.
func New(f fetcher.Retriever, parsers *disclosure.Registry, store Store, runs RunRecorder, cfg Config) *Orchestrator {
	if cfg.Source == "" {
		cfg.Source = model.SourceHouseClerk
	}
	if cfg.KnownStreakLimit <= 0 {
		cfg.KnownStreakLimit = 20
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 14
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	return &Orchestrator{
		fetcher: f,
		parsers: parsers,
		store:   store,
		runs:    runs,
		cfg:     cfg,
		log:     zap.L().With(zap.String("component", "ingest")),
		nowFunc: time.Now,
	}
}

// Run discovers filings, processes each in discovery order and reconciles
// filers to officials. Per-document failures are counted in the returned
// stats; an error is returned only when discovery fails entirely or ctx is
// cancelled.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (model.IngestStats, error) {
	var stats model.IngestStats
	now := o.nowFunc().UTC()
	if opts.Year == 0 {
		opts.Year = now.Year()
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = o.cfg.LookbackDays
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = o.cfg.MaxPages
	}
	if ts, ok := o.fetcher.(throttleSetter); ok && opts.ThrottleMs > 0 {
		ts.SetThrottle(time.Duration(opts.ThrottleMs) * time.Millisecond)
	}

	run := o.startRun(ctx, runlog.KindIngest)
	log := o.log.With(zap.String("run_id", run.RunID.String()), zap.Int("year", opts.Year))
	start := time.Now()

	entries, err := o.Discover(ctx, opts, now)
	if err != nil {
		o.failRun(ctx, run, err)
		return stats, err
	}
	stats.Found = len(entries)
	log.Info("discovery complete", zap.Int("found", stats.Found))

	if err := o.processAll(ctx, entries, opts, &stats); err != nil {
		o.failRun(ctx, run, err)
		return stats, err
	}

	if _, err := o.Reconcile(ctx); err != nil {
		log.Warn("reconciliation failed", zap.Error(err))
	}

	o.completeRun(ctx, run, runlog.Result{
		RowsSynced: int64(stats.Inserted),
		Metadata:   stats.Metadata(),
	})
	log.Info("ingest run complete",
		zap.Int("found", stats.Found),
		zap.Int("new", stats.New),
		zap.Int("downloaded", stats.Downloaded),
		zap.Int("parsed", stats.Parsed),
		zap.Int("inserted", stats.Inserted),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors),
		zap.Duration("elapsed", time.Since(start)),
	)
	return stats, nil
}

// Discover runs both discovery phases and merges them. Entries found only by
// the search phase come first, followed by bulk index entries newest first.
// Either phase may fail alone; if both fail the index error is returned.
func (o *Orchestrator) Discover(ctx context.Context, opts Options, now time.Time) ([]disclosure.FilingEntry, error) {
	indexed, indexErr := o.discoverIndex(ctx, opts.Year)
	if indexErr != nil {
		o.log.Warn("bulk index discovery failed, continuing with search", zap.Error(indexErr))
	}

	cutoff := model.Day(now).AddDate(0, 0, -opts.LookbackDays)
	searched, searchErr := o.discoverSearch(ctx, opts, cutoff)
	if searchErr != nil {
		o.log.Warn("search discovery failed", zap.Error(searchErr))
	}

	if indexErr != nil && searchErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, eris.Wrap(indexErr, "ingest: discovery failed")
	}

	seen := make(map[string]bool, len(indexed))
	for _, e := range indexed {
		seen[e.DocID] = true
	}
	merged := make([]disclosure.FilingEntry, 0, len(indexed)+len(searched))
	for _, e := range searched {
		if seen[e.DocID] {
			continue
		}
		seen[e.DocID] = true
		merged = append(merged, e)
	}
	return append(merged, indexed...), nil
}

func (o *Orchestrator) discoverIndex(ctx context.Context, year int) ([]disclosure.FilingEntry, error) {
	raw, err := o.fetcher.FetchBulkIndex(ctx, year)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: fetch bulk index %d", year)
	}
	doc, err := o.parsers.Parse(ctx, disclosure.KindBulkIndex, raw)
	if err != nil {
		return nil, err
	}
	entries := doc.Entries
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].FilingDate, entries[j].FilingDate
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})
	return entries, nil
}

// discoverSearch walks search pages until an empty page or the page cap.
// Rows with a filing date before cutoff are dropped. Entries collected
// before a failing page are still returned.
func (o *Orchestrator) discoverSearch(ctx context.Context, opts Options, cutoff time.Time) ([]disclosure.FilingEntry, error) {
	var entries []disclosure.FilingEntry
	seen := make(map[string]bool)
	for page := 1; page <= opts.MaxPages; page++ {
		html, err := o.fetcher.FetchSearchPage(ctx, fetcher.SearchParams{Year: opts.Year, Page: page})
		if err != nil {
			return entries, eris.Wrapf(err, "ingest: search page %d", page)
		}
		doc, err := o.parsers.Parse(ctx, disclosure.KindSearchPage, []byte(html))
		if err != nil {
			return entries, err
		}
		if len(doc.Entries) == 0 {
			break
		}
		for _, e := range doc.Entries {
			if e.FilingDate != nil && e.FilingDate.Before(cutoff) {
				continue
			}
			if seen[e.DocID] {
				continue
			}
			seen[e.DocID] = true
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (o *Orchestrator) processAll(ctx context.Context, entries []disclosure.FilingEntry, opts Options, stats *model.IngestStats) error {
	streak := 0
	for i, e := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		known := o.processEntry(ctx, e, opts, stats)
		if !known {
			streak = 0
			continue
		}
		streak++
		if streak >= o.cfg.KnownStreakLimit {
			o.log.Info("known streak reached, stopping early",
				zap.Int("streak", streak),
				zap.Int("remaining", len(entries)-i-1),
			)
			return nil
		}
	}
	return nil
}

// processEntry handles one discovered filing and reports whether it was
// already parsed, which feeds the known streak.
func (o *Orchestrator) processEntry(ctx context.Context, e disclosure.FilingEntry, opts Options, stats *model.IngestStats) bool {
	log := o.log.With(zap.String("doc_id", e.DocID))

	existing, err := o.store.GetDocument(ctx, o.cfg.Source, e.DocID)
	if err != nil {
		log.Warn("lookup failed", zap.Error(err))
		stats.Errors++
		return false
	}
	if existing != nil && existing.Status == model.DocumentParsed && !opts.Force {
		stats.Skipped++
		return true
	}
	if existing == nil {
		stats.New++
	}

	doc := o.newDocument(e)

	raw, hash, err := o.fetcher.FetchDocument(ctx, e.URL)
	if err != nil {
		o.saveError(ctx, log, doc, err, stats)
		return false
	}
	stats.Downloaded++
	doc.ContentHash = hash

	if existing != nil && existing.Status == model.DocumentParsed && existing.ContentHash == hash {
		log.Debug("content unchanged")
		stats.Skipped++
		return false
	}

	parsed, err := o.parsers.Parse(ctx, disclosure.KindDocument, raw)
	if err != nil {
		o.saveError(ctx, log, doc, err, stats)
		return false
	}
	stats.Parsed++
	doc.RawText = parsed.RawText

	n, err := o.store.SaveParsed(ctx, doc, o.toTrades(parsed.Trades, doc))
	if err != nil {
		o.saveError(ctx, log, doc, err, stats)
		return false
	}
	stats.Inserted += n
	log.Debug("document ingested", zap.Int("trades", n))
	return false
}

func (o *Orchestrator) newDocument(e disclosure.FilingEntry) *model.SourceDocument {
	doc := &model.SourceDocument{
		Source:     o.cfg.Source,
		ExternalID: e.DocID,
		URL:        e.URL,
		FilerName:  disclosure.SanitizeField(e.FilerName),
		Office:     disclosure.SanitizeField(e.Office),
		FilingYear: e.FilingYear,
		FiledAt:    e.FilingDate,
	}
	if doc.FiledAt == nil {
		d := model.Day(o.nowFunc())
		doc.FiledAt = &d
		doc.FiledAtEstimated = true
	}
	return doc
}

func (o *Orchestrator) toTrades(parsed []disclosure.ParsedTrade, doc *model.SourceDocument) []model.Trade {
	trades := make([]model.Trade, 0, len(parsed))
	for _, p := range parsed {
		trades = append(trades, model.Trade{
			AssetName:      disclosure.SanitizeField(p.AssetName),
			Ticker:         p.Ticker,
			TradeType:      p.TradeType,
			TradeDate:      p.TradeDate,
			DisclosureDate: doc.FiledAt,
			AmountMin:      p.AmountMin,
			AmountMax:      p.AmountMax,
			RawLine:        disclosure.SanitizeField(p.RawLine),
		})
	}
	return trades
}

func (o *Orchestrator) saveError(ctx context.Context, log *zap.Logger, doc *model.SourceDocument, cause error, stats *model.IngestStats) {
	stats.Errors++
	log.Warn("document failed", zap.Error(cause))

	doc.Status = model.DocumentError
	doc.ErrorMessage = disclosure.Truncate(disclosure.Sanitize(cause.Error()), errorMessageLimit)
	if err := o.store.SaveError(ctx, doc); err != nil {
		log.Error("failed to record document error", zap.Error(err))
	}
}

func (o *Orchestrator) startRun(ctx context.Context, kind string) runlog.Run {
	if o.runs == nil {
		return runlog.Run{}
	}
	run, err := o.runs.Start(ctx, kind)
	if err != nil {
		o.log.Error("failed to record run start", zap.String("kind", kind), zap.Error(err))
		return runlog.Run{}
	}
	return run
}

func (o *Orchestrator) completeRun(ctx context.Context, run runlog.Run, res runlog.Result) {
	if o.runs == nil || run.ID == 0 {
		return
	}
	if err := o.runs.Complete(ctx, run.ID, res); err != nil {
		o.log.Error("failed to record run completion", zap.Error(err))
	}
}

func (o *Orchestrator) failRun(ctx context.Context, run runlog.Run, cause error) {
	if o.runs == nil || run.ID == 0 {
		return
	}
	if err := o.runs.Fail(ctx, run.ID, cause.Error()); err != nil {
		o.log.Error("failed to record run failure", zap.Error(err))
	}
}
