package prices

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tradewatch/internal/model"
	"github.com/sells-group/tradewatch/internal/runlog"
)

// RunRecorder records run start and outcome. *runlog.Log satisfies it.
type RunRecorder interface {
	Start(ctx context.Context, kind string) (runlog.Run, error)
	Complete(ctx context.Context, id int64, result runlog.Result) error
	Fail(ctx context.Context, id int64, errMsg string) error
}

// Config holds refresh settings.
type Config struct {
	Benchmark string
	ChunkSize int
}

// Result is the outcome of refreshing one symbol.
type Result struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Inserted int64  `json:"inserted" yaml:"inserted"`
	Skipped  bool   `json:"skipped" yaml:"skipped"`
	Err      error  `json:"-" yaml:"-"`
}

// Summary is the outcome of RefreshAll.
type Summary struct {
	Symbols   int      `json:"symbols" yaml:"symbols"`
	Refreshed int      `json:"refreshed" yaml:"refreshed"`
	Fresh     int      `json:"fresh" yaml:"fresh"`
	Skipped   int      `json:"skipped" yaml:"skipped"`
	Inserted  int64    `json:"inserted" yaml:"inserted"`
	Errors    int      `json:"errors" yaml:"errors"`
	Failed    []string `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Refresher keeps price_points current for every traded symbol plus the
// benchmark.
type Refresher struct {
	provider Provider
	store    Store
	runs     RunRecorder
	cfg      Config
	log      *zap.Logger
	nowFunc  func() time.Time
}

// NewRefresher creates a Refresher. runs may be nil.
func NewRefresher(provider Provider, store Store, runs RunRecorder, cfg Config) *Refresher {
	if cfg.Benchmark == "" {
		cfg.Benchmark = "SPY"
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 500
	}
	return &Refresher{
		provider: provider,
		store:    store,
		runs:     runs,
		cfg:      cfg,
		log:      zap.L().With(zap.String("component", "prices")),
		nowFunc:  time.Now,
	}
}

// RefreshSymbol fetches bars after the latest stored date (or from start
// when nothing is stored) through today. A start date already past today
// is a no-op reported as Skipped.
func (r *Refresher) RefreshSymbol(ctx context.Context, symbol string, start time.Time) Result {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	res := Result{Symbol: symbol}
	log := r.log.With(zap.String("symbol", symbol))

	prev, err := r.store.FetchLog(ctx, symbol)
	if err != nil {
		res.Err = err
		return res
	}

	now := r.nowFunc().UTC()
	today := model.Day(now)
	from := model.Day(start)
	if prev != nil && prev.LatestDate != nil {
		from = model.Day(*prev.LatestDate).AddDate(0, 0, 1)
	}
	if from.After(today) {
		log.Debug("already current")
		res.Skipped = true
		return res
	}

	entry := model.PriceFetchLog{Symbol: symbol, LastFetchedAt: &now, Status: model.FetchOK}

	bars, err := r.provider.DailyBars(ctx, symbol, from, today)
	if err != nil {
		entry.Status = model.FetchError
		if errors.Is(err, ErrSymbolNotFound) {
			entry.Status = model.FetchNotFound
		}
		entry.Error = err.Error()
		r.saveLog(ctx, log, entry)
		log.Warn("price fetch failed", zap.String("status", string(entry.Status)), zap.Error(err))
		res.Err = err
		return res
	}

	if len(bars) > 0 {
		cr := r.store.UpsertPrices(ctx, bars, r.cfg.ChunkSize)
		res.Inserted = cr.Upserted
		if cr.FailedChunks > 0 {
			res.Err = eris.Errorf("prices: %d of %d chunks failed for %s", cr.FailedChunks, cr.Chunks, symbol)
			entry.Status = model.FetchError
			entry.Error = res.Err.Error()
		} else {
			first, last := dateRange(bars)
			entry.EarliestDate = &first
			entry.LatestDate = &last
		}
	}
	r.saveLog(ctx, log, entry)

	log.Debug("symbol refreshed", zap.Int("bars", len(bars)), zap.Int64("inserted", res.Inserted))
	return res
}

// RefreshAll refreshes the benchmark and every traded symbol whose fetch
// log is stale. Per-symbol failures are counted, never returned; only
// failing to list the symbols or a cancelled ctx returns an error.
func (r *Refresher) RefreshAll(ctx context.Context, maxAgeMinutes int, start time.Time) (Summary, error) {
	var sum Summary
	run := r.startRun(ctx)

	symbols, err := r.Universe(ctx)
	if err != nil {
		r.failRun(ctx, run, err)
		return sum, err
	}
	sum.Symbols = len(symbols)
	maxAge := time.Duration(maxAgeMinutes) * time.Minute

	for _, sym := range symbols {
		if ctx.Err() != nil {
			r.failRun(ctx, run, ctx.Err())
			return sum, ctx.Err()
		}

		prev, err := r.store.FetchLog(ctx, sym)
		if err != nil {
			r.log.Warn("fetch log lookup failed", zap.String("symbol", sym), zap.Error(err))
			sum.Errors++
			sum.Failed = append(sum.Failed, sym)
			continue
		}
		if !IsStale(prev, r.nowFunc(), maxAge) {
			sum.Fresh++
			continue
		}

		res := r.RefreshSymbol(ctx, sym, start)
		switch {
		case res.Err != nil:
			sum.Errors++
			sum.Failed = append(sum.Failed, sym)
		case res.Skipped:
			sum.Skipped++
		default:
			sum.Refreshed++
		}
		sum.Inserted += res.Inserted
	}

	r.completeRun(ctx, run, runlog.Result{
		RowsSynced: sum.Inserted,
		Metadata: map[string]any{
			"symbols":   sum.Symbols,
			"refreshed": sum.Refreshed,
			"fresh":     sum.Fresh,
			"skipped":   sum.Skipped,
			"errors":    sum.Errors,
		},
	})
	r.log.Info("price refresh complete",
		zap.Int("symbols", sum.Symbols),
		zap.Int("refreshed", sum.Refreshed),
		zap.Int("fresh", sum.Fresh),
		zap.Int64("inserted", sum.Inserted),
		zap.Int("errors", sum.Errors),
	)
	return sum, nil
}

// Universe returns the benchmark followed by every traded symbol, deduplicated.
func (r *Refresher) Universe(ctx context.Context) ([]string, error) {
	traded, err := r.store.TradeSymbols(ctx)
	if err != nil {
		return nil, err
	}
	benchmark := strings.ToUpper(r.cfg.Benchmark)
	symbols := []string{benchmark}
	for _, s := range traded {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || slices.Contains(symbols, s) {
			continue
		}
		symbols = append(symbols, s)
	}
	return symbols, nil
}

func (r *Refresher) saveLog(ctx context.Context, log *zap.Logger, entry model.PriceFetchLog) {
	if err := r.store.SaveFetchLog(ctx, entry); err != nil {
		log.Error("failed to save fetch log", zap.Error(err))
	}
}

func dateRange(bars []model.PricePoint) (first, last time.Time) {
	first, last = bars[0].Date, bars[0].Date
	for _, b := range bars[1:] {
		if b.Date.Before(first) {
			first = b.Date
		}
		if b.Date.After(last) {
			last = b.Date
		}
	}
	return first, last
}

func (r *Refresher) startRun(ctx context.Context) runlog.Run {
	if r.runs == nil {
		return runlog.Run{}
	}
	run, err := r.runs.Start(ctx, runlog.KindPrices)
	if err != nil {
		r.log.Error("failed to record run start", zap.Error(err))
		return runlog.Run{}
	}
	return run
}

func (r *Refresher) completeRun(ctx context.Context, run runlog.Run, res runlog.Result) {
	if r.runs == nil || run.ID == 0 {
		return
	}
	if err := r.runs.Complete(ctx, run.ID, res); err != nil {
		r.log.Error("failed to record run completion", zap.Error(err))
	}
}

func (r *Refresher) failRun(ctx context.Context, run runlog.Run, cause error) {
	if r.runs == nil || run.ID == 0 {
		return
	}
	if err := r.runs.Fail(ctx, run.ID, cause.Error()); err != nil {
		r.log.Error("failed to record run failure", zap.Error(err))
	}
}
