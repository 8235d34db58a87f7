package model

import "time"

// Horizon is a fixed offset at which a trade's return is measured.
type Horizon string

const (
	Horizon1D     Horizon = "1d"
	Horizon1W     Horizon = "1w"
	Horizon1M     Horizon = "1m"
	Horizon3M     Horizon = "3m"
	Horizon6M     Horizon = "6m"
	Horizon1Y     Horizon = "1y"
	HorizonToDate Horizon = "to_date"
)

// FixedHorizons are the horizons anchored to a target date, in ascending order.
var FixedHorizons = []Horizon{Horizon1D, Horizon1W, Horizon1M, Horizon3M, Horizon6M, Horizon1Y}

// AllHorizons is FixedHorizons plus HorizonToDate.
var AllHorizons = []Horizon{Horizon1D, Horizon1W, Horizon1M, Horizon3M, Horizon6M, Horizon1Y, HorizonToDate}

// BenchmarkedHorizons are the fixed horizons that carry a benchmark return.
var BenchmarkedHorizons = []Horizon{Horizon1M, Horizon3M, Horizon6M, Horizon1Y}

// Target returns the calendar date the horizon lands on from ref. Days and
// weeks are counted in calendar days, the rest in calendar months.
// HorizonToDate has no target and returns ref unchanged.
func (h Horizon) Target(ref time.Time) time.Time {
	switch h {
	case Horizon1D:
		return ref.AddDate(0, 0, 1)
	case Horizon1W:
		return ref.AddDate(0, 0, 7)
	case Horizon1M:
		return ref.AddDate(0, 1, 0)
	case Horizon3M:
		return ref.AddDate(0, 3, 0)
	case Horizon6M:
		return ref.AddDate(0, 6, 0)
	case Horizon1Y:
		return ref.AddDate(1, 0, 0)
	default:
		return ref
	}
}

// TradePerformance holds the computed return metrics for one trade.
// Every horizon field is always present; nil means unavailable or redacted.
type TradePerformance struct {
	TradeID         int64     `json:"trade_id" yaml:"trade_id"`
	Symbol          string    `json:"symbol" yaml:"symbol"`
	ReferenceDate   time.Time `json:"reference_date" yaml:"reference_date"`
	ReferencePrice  float64   `json:"reference_price" yaml:"reference_price"`
	IsEstimatedDate bool      `json:"is_estimated_date" yaml:"is_estimated_date"`

	Return1D     *float64 `json:"return_1d" yaml:"return_1d"`
	Return1W     *float64 `json:"return_1w" yaml:"return_1w"`
	Return1M     *float64 `json:"return_1m" yaml:"return_1m"`
	Return3M     *float64 `json:"return_3m" yaml:"return_3m"`
	Return6M     *float64 `json:"return_6m" yaml:"return_6m"`
	Return1Y     *float64 `json:"return_1y" yaml:"return_1y"`
	ReturnToDate *float64 `json:"return_to_date" yaml:"return_to_date"`

	BenchmarkSymbol string   `json:"benchmark_symbol" yaml:"benchmark_symbol"`
	Benchmark1M     *float64 `json:"benchmark_1m" yaml:"benchmark_1m"`
	Benchmark3M     *float64 `json:"benchmark_3m" yaml:"benchmark_3m"`
	Benchmark6M     *float64 `json:"benchmark_6m" yaml:"benchmark_6m"`
	Benchmark1Y     *float64 `json:"benchmark_1y" yaml:"benchmark_1y"`
	BenchmarkToDate *float64 `json:"benchmark_to_date" yaml:"benchmark_to_date"`

	CurrentPrice *float64  `json:"current_price" yaml:"current_price"`
	ComputedAt   time.Time `json:"computed_at" yaml:"computed_at"`
}

// Return returns the trade return at h.
func (p *TradePerformance) Return(h Horizon) *float64 {
	if f := p.returnField(h); f != nil {
		return *f
	}
	return nil
}

// SetReturn sets the trade return at h. Unknown horizons are ignored.
func (p *TradePerformance) SetReturn(h Horizon, v *float64) {
	if f := p.returnField(h); f != nil {
		*f = v
	}
}

// Benchmark returns the benchmark return at h, nil for unbenchmarked horizons.
func (p *TradePerformance) Benchmark(h Horizon) *float64 {
	if f := p.benchmarkField(h); f != nil {
		return *f
	}
	return nil
}

// SetBenchmark sets the benchmark return at h. Unbenchmarked horizons are ignored.
func (p *TradePerformance) SetBenchmark(h Horizon, v *float64) {
	if f := p.benchmarkField(h); f != nil {
		*f = v
	}
}

func (p *TradePerformance) returnField(h Horizon) **float64 {
	switch h {
	case Horizon1D:
		return &p.Return1D
	case Horizon1W:
		return &p.Return1W
	case Horizon1M:
		return &p.Return1M
	case Horizon3M:
		return &p.Return3M
	case Horizon6M:
		return &p.Return6M
	case Horizon1Y:
		return &p.Return1Y
	case HorizonToDate:
		return &p.ReturnToDate
	default:
		return nil
	}
}

func (p *TradePerformance) benchmarkField(h Horizon) **float64 {
	switch h {
	case Horizon1M:
		return &p.Benchmark1M
	case Horizon3M:
		return &p.Benchmark3M
	case Horizon6M:
		return &p.Benchmark6M
	case Horizon1Y:
		return &p.Benchmark1Y
	case HorizonToDate:
		return &p.BenchmarkToDate
	default:
		return nil
	}
}
