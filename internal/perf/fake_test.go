package perf

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tradewatch/internal/model"
	"github.com/sells-group/tradewatch/internal/runlog"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// memStore is an in-memory Store. Bars are kept sorted per symbol.
type memStore struct {
	bars      map[string][]model.PricePoint
	trades    []model.Trade
	officials map[int64]model.Official
	perfs     map[int64]*model.TradePerformance
	saved     []*model.TradePerformance
	failSym   string
	failSave  bool
}

func newMemStore() *memStore {
	return &memStore{
		bars:      make(map[string][]model.PricePoint),
		officials: make(map[int64]model.Official),
		perfs:     make(map[int64]*model.TradePerformance),
	}
}

func (s *memStore) addBar(symbol string, d time.Time, closePx float64) {
	s.bars[symbol] = append(s.bars[symbol], model.PricePoint{Symbol: symbol, Date: d, Close: closePx})
	sort.Slice(s.bars[symbol], func(i, j int) bool {
		return s.bars[symbol][i].Date.Before(s.bars[symbol][j].Date)
	})
}

func (s *memStore) FirstPriceBetween(_ context.Context, symbol string, from, to time.Time) (*model.PricePoint, error) {
	if symbol == s.failSym {
		return nil, eris.New("perf: connection reset")
	}
	for _, b := range s.bars[symbol] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			return &b, nil
		}
	}
	return nil, nil
}

func (s *memStore) LastPriceBetween(_ context.Context, symbol string, from, to time.Time) (*model.PricePoint, error) {
	bars := s.bars[symbol]
	for i := len(bars) - 1; i >= 0; i-- {
		b := bars[i]
		if !b.Date.Before(from) && !b.Date.After(to) {
			return &b, nil
		}
	}
	return nil, nil
}

func (s *memStore) LatestPrice(_ context.Context, symbol string) (*model.PricePoint, error) {
	bars := s.bars[symbol]
	if len(bars) == 0 {
		return nil, nil
	}
	b := bars[len(bars)-1]
	return &b, nil
}

func (s *memStore) Trade(_ context.Context, id int64) (*model.Trade, error) {
	for _, t := range s.trades {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, nil
}

func (s *memStore) TradesWithTicker(context.Context) ([]model.Trade, error) {
	var out []model.Trade
	for _, t := range s.trades {
		if t.Ticker != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) Official(_ context.Context, id int64) (*model.Official, error) {
	o, ok := s.officials[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s *memStore) OfficialTrades(_ context.Context, officialID int64, f TradeFilter) ([]model.Trade, error) {
	var out []model.Trade
	for _, t := range s.trades {
		if t.OfficialID == nil || *t.OfficialID != officialID {
			continue
		}
		if f.TradeType != "" && t.TradeType != f.TradeType {
			continue
		}
		if f.Ticker != "" && !strings.EqualFold(t.Ticker, f.Ticker) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *memStore) Performance(_ context.Context, tradeID int64) (*model.TradePerformance, error) {
	return s.perfs[tradeID], nil
}

func (s *memStore) SavePerformance(_ context.Context, p *model.TradePerformance) error {
	if s.failSave {
		return eris.New("perf: save failed")
	}
	s.saved = append(s.saved, p)
	s.perfs[p.TradeID] = p
	return nil
}

type memRuns struct {
	started   []string
	completed []runlog.Result
}

func (r *memRuns) Start(_ context.Context, kind string) (runlog.Run, error) {
	r.started = append(r.started, kind)
	return runlog.Run{ID: 1}, nil
}

func (r *memRuns) Complete(_ context.Context, _ int64, res runlog.Result) error {
	r.completed = append(r.completed, res)
	return nil
}

func (r *memRuns) Fail(context.Context, int64, string) error { return nil }
