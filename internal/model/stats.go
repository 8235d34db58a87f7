package model

// HorizonStats aggregates one horizon across an official's evaluated trades.
type HorizonStats struct {
	Horizon     Horizon  `json:"horizon" yaml:"horizon"`
	AvgReturn   *float64 `json:"avg_return" yaml:"avg_return"`
	HitRate     *float64 `json:"hit_rate" yaml:"hit_rate"`
	TradeCount  int      `json:"trade_count" yaml:"trade_count"`
	BuyCount    int      `json:"buy_count" yaml:"buy_count"`
	WeightTotal float64  `json:"-" yaml:"-"`
}

// TradeHighlight identifies a single trade in aggregate output.
type TradeHighlight struct {
	TradeID      int64   `json:"trade_id" yaml:"trade_id"`
	Ticker       string  `json:"ticker" yaml:"ticker"`
	AssetName    string  `json:"asset_name" yaml:"asset_name"`
	TradeType    string  `json:"trade_type" yaml:"trade_type"`
	ReturnToDate float64 `json:"return_to_date" yaml:"return_to_date"`
}

// OfficialStats is the per-official performance aggregate.
// Horizons always holds one entry per AllHorizons element, in that order.
type OfficialStats struct {
	OfficialID     int64           `json:"official_id" yaml:"official_id"`
	TradeCount     int             `json:"trade_count" yaml:"trade_count"`
	EvaluatedCount int             `json:"evaluated_count" yaml:"evaluated_count"`
	Horizons       []HorizonStats  `json:"horizons" yaml:"horizons"`
	BestTrade      *TradeHighlight `json:"best_trade" yaml:"best_trade"`
	WorstTrade     *TradeHighlight `json:"worst_trade" yaml:"worst_trade"`
	BenchmarkAvg1Y *float64        `json:"benchmark_avg_1y" yaml:"benchmark_avg_1y"`
	Alpha1Y        *float64        `json:"alpha_1y" yaml:"alpha_1y"`
}

// Horizon returns the stats entry for h, or nil.
func (s *OfficialStats) Horizon(h Horizon) *HorizonStats {
	for i := range s.Horizons {
		if s.Horizons[i].Horizon == h {
			return &s.Horizons[i]
		}
	}
	return nil
}
