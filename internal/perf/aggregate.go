package perf

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tradewatch/internal/model"
)

// Evaluated pairs a trade with its computed performance.
type Evaluated struct {
	Trade model.Trade
	Perf  *model.TradePerformance
}

// Weight is the trade's disclosed amount midpoint, or 1 when unknown.
func Weight(t model.Trade) float64 {
	mid, ok := t.AmountMidpoint()
	if !ok || !mid.IsPositive() {
		return 1
	}
	return mid.InexactFloat64()
}

// ComputePoliticianPerformance aggregates performance over an official's
// trades matching f. Trades without computable performance count toward
// TradeCount only. Returns nil when the official does not exist.
func (e *Engine) ComputePoliticianPerformance(ctx context.Context, officialID int64, f TradeFilter) (*model.OfficialStats, error) {
	o, err := e.store.Official(ctx, officialID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, nil
	}

	trades, err := e.store.OfficialTrades(ctx, officialID, f)
	if err != nil {
		return nil, eris.Wrapf(err, "perf: trades for official %d", officialID)
	}

	var evaluated []Evaluated
	for _, t := range trades {
		p, err := e.ComputeTradePerformance(ctx, t)
		if err != nil {
			e.log.Warn("performance compute failed",
				zap.Int64("official_id", officialID), zap.Int64("trade_id", t.ID), zap.Error(err))
			continue
		}
		if p != nil {
			evaluated = append(evaluated, Evaluated{Trade: t, Perf: p})
		}
	}

	stats := Aggregate(officialID, len(trades), evaluated)
	return &stats, nil
}

// Aggregate builds the per-official summary.
//
// Each horizon's average is weighted by Weight. Hit rate counts only buys
// with a return at that horizon, as the share with a strictly positive
// return. Best and worst are chosen by return to date, first wins on ties.
// Alpha is the weighted 1y average minus the plain mean of the benchmark's
// 1y return over the trades that have one.
func Aggregate(officialID int64, tradeCount int, evaluated []Evaluated) model.OfficialStats {
	stats := model.OfficialStats{
		OfficialID:     officialID,
		TradeCount:     tradeCount,
		EvaluatedCount: len(evaluated),
		Horizons:       make([]model.HorizonStats, 0, len(model.AllHorizons)),
	}

	for _, h := range model.AllHorizons {
		hs := model.HorizonStats{Horizon: h}
		var weighted float64
		var buys, hits int
		for _, ev := range evaluated {
			r := ev.Perf.Return(h)
			if r == nil {
				continue
			}
			w := Weight(ev.Trade)
			weighted += w * *r
			hs.WeightTotal += w
			hs.TradeCount++
			if ev.Trade.TradeType == model.TradeBuy {
				buys++
				if *r > 0 {
					hits++
				}
			}
		}
		if hs.TradeCount > 0 {
			hs.AvgReturn = ptr(weighted / hs.WeightTotal)
		}
		hs.BuyCount = buys
		if buys > 0 {
			hs.HitRate = ptr(float64(hits) / float64(buys) * 100)
		}
		stats.Horizons = append(stats.Horizons, hs)
	}

	for _, ev := range evaluated {
		r := ev.Perf.ReturnToDate
		if r == nil {
			continue
		}
		if stats.BestTrade == nil || *r > stats.BestTrade.ReturnToDate {
			stats.BestTrade = highlight(ev, *r)
		}
		if stats.WorstTrade == nil || *r < stats.WorstTrade.ReturnToDate {
			stats.WorstTrade = highlight(ev, *r)
		}
	}

	var benchSum float64
	var benchN int
	for _, ev := range evaluated {
		if b := ev.Perf.Benchmark1Y; b != nil {
			benchSum += *b
			benchN++
		}
	}
	if benchN > 0 {
		stats.BenchmarkAvg1Y = ptr(benchSum / float64(benchN))
		if avg := stats.Horizon(model.Horizon1Y).AvgReturn; avg != nil {
			stats.Alpha1Y = ptr(*avg - *stats.BenchmarkAvg1Y)
		}
	}
	return stats
}

func highlight(ev Evaluated, r float64) *model.TradeHighlight {
	return &model.TradeHighlight{
		TradeID:      ev.Trade.ID,
		Ticker:       ev.Perf.Symbol,
		AssetName:    ev.Trade.AssetName,
		TradeType:    string(ev.Trade.TradeType),
		ReturnToDate: r,
	}
}
