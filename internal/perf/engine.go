// Package perf computes how disclosed trades performed afterwards: per-trade
// returns at fixed horizons against a benchmark, and per-official aggregates.
package perf

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/tradewatch/internal/model"
	"github.com/sells-group/tradewatch/internal/runlog"
)

// PriceWindow is how far either side of a target date a price may be taken from.
const PriceWindow = 7 * 24 * time.Hour

// RunRecorder records run start and outcome. *runlog.Log satisfies it.
type RunRecorder interface {
	Start(ctx context.Context, kind string) (runlog.Run, error)
	Complete(ctx context.Context, id int64, result runlog.Result) error
	Fail(ctx context.Context, id int64, errMsg string) error
}

// Config holds engine settings.
type Config struct {
	Benchmark string
}

// ComputeSummary is the outcome of ComputeAll.
type ComputeSummary struct {
	Trades   int `json:"trades" yaml:"trades"`
	Computed int `json:"computed" yaml:"computed"`
	Skipped  int `json:"skipped" yaml:"skipped"`
	Errors   int `json:"errors" yaml:"errors"`
}

// Engine computes trade and official performance from stored prices.
type Engine struct {
	store   Store
	runs    RunRecorder
	cfg     Config
	log     *zap.Logger
	nowFunc func() time.Time
}

// NewEngine creates an Engine. runs may be nil.
func NewEngine(store Store, runs RunRecorder, cfg Config) *Engine {
	if cfg.Benchmark == "" {
		cfg.Benchmark = "SPY"
	}
	cfg.Benchmark = strings.ToUpper(cfg.Benchmark)
	return &Engine{
		store:   store,
		runs:    runs,
		cfg:     cfg,
		log:     zap.L().With(zap.String("component", "perf")),
		nowFunc: time.Now,
	}
}

// Benchmark returns the benchmark symbol.
func (e *Engine) Benchmark() string { return e.cfg.Benchmark }

// ReferenceDate returns the date a trade's performance is measured from and
// whether it was estimated from the disclosure date.
func ReferenceDate(t model.Trade) (time.Time, bool, bool) {
	switch {
	case t.TradeDate != nil:
		return model.Day(*t.TradeDate), false, true
	case t.DisclosureDate != nil:
		return model.Day(*t.DisclosureDate), true, true
	default:
		return time.Time{}, false, false
	}
}

// PercentReturn is the percentage change from ref to target.
func PercentReturn(ref, target float64) float64 {
	return (target - ref) / ref * 100
}

// NearestPrice resolves the bar closest to target: the first bar on or
// after target within PriceWindow, else the last bar on or before it
// within the same window. Returns nil when neither exists.
func (e *Engine) NearestPrice(ctx context.Context, symbol string, target time.Time) (*model.PricePoint, error) {
	target = model.Day(target)
	p, err := e.store.FirstPriceBetween(ctx, symbol, target, target.Add(PriceWindow))
	if err != nil || p != nil {
		return p, err
	}
	return e.store.LastPriceBetween(ctx, symbol, target.Add(-PriceWindow), target)
}

// ComputeTradePerformance computes returns for one trade. It returns nil
// without error when the trade has no ticker, no usable date, or no
// reference price; that is missing data, not a failure.
func (e *Engine) ComputeTradePerformance(ctx context.Context, t model.Trade) (*model.TradePerformance, error) {
	symbol := strings.ToUpper(strings.TrimSpace(t.Ticker))
	if symbol == "" {
		return nil, nil
	}
	refDate, estimated, ok := ReferenceDate(t)
	if !ok {
		return nil, nil
	}

	ref, err := e.NearestPrice(ctx, symbol, refDate)
	if err != nil {
		return nil, err
	}
	if ref == nil || ref.Close <= 0 {
		return nil, nil
	}

	now := e.nowFunc().UTC()
	today := model.Day(now)
	p := &model.TradePerformance{
		TradeID:         t.ID,
		Symbol:          symbol,
		ReferenceDate:   refDate,
		ReferencePrice:  ref.Close,
		IsEstimatedDate: estimated,
		BenchmarkSymbol: e.cfg.Benchmark,
		ComputedAt:      now,
	}

	for _, h := range model.FixedHorizons {
		target := h.Target(refDate)
		if target.After(today) {
			continue
		}
		r, err := e.horizonReturn(ctx, symbol, ref.Close, target)
		if err != nil {
			return nil, err
		}
		p.SetReturn(h, r)
	}

	latest, err := e.store.LatestPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		p.CurrentPrice = ptr(latest.Close)
		p.ReturnToDate = ptr(PercentReturn(ref.Close, latest.Close))
	}

	if err := e.benchmark(ctx, p, refDate, today); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Engine) benchmark(ctx context.Context, p *model.TradePerformance, refDate, today time.Time) error {
	bref, err := e.NearestPrice(ctx, e.cfg.Benchmark, refDate)
	if err != nil {
		return err
	}
	if bref == nil || bref.Close <= 0 {
		return nil
	}
	for _, h := range model.BenchmarkedHorizons {
		target := h.Target(refDate)
		if target.After(today) {
			continue
		}
		r, err := e.horizonReturn(ctx, e.cfg.Benchmark, bref.Close, target)
		if err != nil {
			return err
		}
		p.SetBenchmark(h, r)
	}
	latest, err := e.store.LatestPrice(ctx, e.cfg.Benchmark)
	if err != nil {
		return err
	}
	if latest != nil {
		p.BenchmarkToDate = ptr(PercentReturn(bref.Close, latest.Close))
	}
	return nil
}

func (e *Engine) horizonReturn(ctx context.Context, symbol string, refClose float64, target time.Time) (*float64, error) {
	pt, err := e.NearestPrice(ctx, symbol, target)
	if err != nil || pt == nil {
		return nil, err
	}
	return ptr(PercentReturn(refClose, pt.Close)), nil
}

// TradePerformance returns the stored row for a trade, computing it on the
// fly when none is stored. Returns nil when the trade does not exist or has
// no computable performance.
func (e *Engine) TradePerformance(ctx context.Context, tradeID int64) (*model.TradePerformance, error) {
	p, err := e.store.Performance(ctx, tradeID)
	if err != nil || p != nil {
		return p, err
	}
	t, err := e.store.Trade(ctx, tradeID)
	if err != nil || t == nil {
		return nil, err
	}
	return e.ComputeTradePerformance(ctx, *t)
}

// ComputeAll recomputes and stores performance for every trade with a
// ticker. Per-trade failures are counted, never returned.
func (e *Engine) ComputeAll(ctx context.Context) (ComputeSummary, error) {
	var sum ComputeSummary
	run := e.startRun(ctx)

	trades, err := e.store.TradesWithTicker(ctx)
	if err != nil {
		e.failRun(ctx, run, err)
		return sum, err
	}
	sum.Trades = len(trades)

	for _, t := range trades {
		if ctx.Err() != nil {
			e.failRun(ctx, run, ctx.Err())
			return sum, ctx.Err()
		}
		log := e.log.With(zap.Int64("trade_id", t.ID), zap.String("symbol", t.Ticker))

		p, err := e.ComputeTradePerformance(ctx, t)
		if err != nil {
			log.Warn("performance compute failed", zap.Error(err))
			sum.Errors++
			continue
		}
		if p == nil {
			log.Debug("no reference price")
			sum.Skipped++
			continue
		}
		if err := e.store.SavePerformance(ctx, p); err != nil {
			log.Warn("performance save failed", zap.Error(err))
			sum.Errors++
			continue
		}
		sum.Computed++
	}

	e.completeRun(ctx, run, runlog.Result{
		RowsSynced: int64(sum.Computed),
		Metadata: map[string]any{
			"trades":   sum.Trades,
			"computed": sum.Computed,
			"skipped":  sum.Skipped,
			"errors":   sum.Errors,
		},
	})
	e.log.Info("performance compute complete",
		zap.Int("trades", sum.Trades),
		zap.Int("computed", sum.Computed),
		zap.Int("skipped", sum.Skipped),
		zap.Int("errors", sum.Errors),
	)
	return sum, nil
}

func ptr(f float64) *float64 { return &f }

func (e *Engine) startRun(ctx context.Context) runlog.Run {
	if e.runs == nil {
		return runlog.Run{}
	}
	run, err := e.runs.Start(ctx, runlog.KindPerf)
	if err != nil {
		e.log.Error("failed to record run start", zap.Error(err))
		return runlog.Run{}
	}
	return run
}

func (e *Engine) completeRun(ctx context.Context, run runlog.Run, res runlog.Result) {
	if e.runs == nil || run.ID == 0 {
		return
	}
	if err := e.runs.Complete(ctx, run.ID, res); err != nil {
		e.log.Error("failed to record run completion", zap.Error(err))
	}
}

func (e *Engine) failRun(ctx context.Context, run runlog.Run, cause error) {
	if e.runs == nil || run.ID == 0 {
		return
	}
	if err := e.runs.Fail(ctx, run.ID, cause.Error()); err != nil {
		e.log.Error("failed to record run failure", zap.Error(err))
	}
}
