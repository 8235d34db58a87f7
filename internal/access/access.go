// Package access redacts performance data according to the caller's
// subscription tier. Redaction never changes the shape of a value: gated
// fields are set to nil, not removed.
package access

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tradewatch/internal/model"
)

// Level is an access tier.
type Level string

const (
	Guest   Level = "guest"
	Account Level = "account"
	Premium Level = "premium"
)

var allowed = map[Level][]model.Horizon{
	Guest:   {model.Horizon1M},
	Account: {model.Horizon1D, model.Horizon1W, model.Horizon1M, model.Horizon3M},
	Premium: model.AllHorizons,
}

// ParseLevel parses a tier name case-insensitively. Empty input is Guest.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return Guest, nil
	case Guest, Account, Premium:
		return l, nil
	default:
		return Guest, eris.Errorf("access: unknown level %q", s)
	}
}

// AllowedTimeframes returns the horizon allow-list for level.
func AllowedTimeframes(level Level) []model.Horizon {
	return slices.Clone(allowed[level])
}

// CanViewHorizon reports whether the horizon's return is visible at level.
// Return to date is visible at every level.
func CanViewHorizon(level Level, h model.Horizon) bool {
	if h == model.HorizonToDate {
		return true
	}
	return slices.Contains(allowed[level], h)
}

// CanViewBenchmark reports whether benchmark and alpha fields are visible.
func CanViewBenchmark(level Level) bool { return level == Premium }

// CanViewChart reports whether price time series may be shown.
func CanViewChart(level Level) bool { return level == Account || level == Premium }

// CanViewCumulative reports whether the cumulative return curve may be shown.
func CanViewCumulative(level Level) bool { return level == Premium }

// Capabilities is the tier summary returned alongside filtered data.
type Capabilities struct {
	Level          Level           `json:"level" yaml:"level"`
	Timeframes     []model.Horizon `json:"timeframes" yaml:"timeframes"`
	Benchmark      bool            `json:"benchmark" yaml:"benchmark"`
	Chart          bool            `json:"chart" yaml:"chart"`
	CumulativeLine bool            `json:"cumulative" yaml:"cumulative"`
}

// CapabilitiesFor describes what level may see.
func CapabilitiesFor(level Level) Capabilities {
	return Capabilities{
		Level:          level,
		Timeframes:     AllowedTimeframes(level),
		Benchmark:      CanViewBenchmark(level),
		Chart:          CanViewChart(level),
		CumulativeLine: CanViewCumulative(level),
	}
}

// FilterTradePerformance returns a copy of p with gated fields nulled.
func FilterTradePerformance(p model.TradePerformance, level Level) model.TradePerformance {
	for _, h := range model.FixedHorizons {
		if !CanViewHorizon(level, h) {
			p.SetReturn(h, nil)
		}
	}
	if !CanViewBenchmark(level) {
		for _, h := range model.AllHorizons {
			p.SetBenchmark(h, nil)
		}
	}
	return p
}

// FilterOfficialStats returns a copy of s with gated horizons and the
// benchmark comparison nulled. Every horizon entry is kept.
func FilterOfficialStats(s model.OfficialStats, level Level) model.OfficialStats {
	horizons := make([]model.HorizonStats, len(s.Horizons))
	for i, hs := range s.Horizons {
		if !CanViewHorizon(level, hs.Horizon) {
			hs.AvgReturn = nil
			hs.HitRate = nil
		}
		horizons[i] = hs
	}
	s.Horizons = horizons
	if !CanViewBenchmark(level) {
		s.BenchmarkAvg1Y = nil
		s.Alpha1Y = nil
	}
	return s
}
