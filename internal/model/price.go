package model

import "time"

// FetchStatus is the outcome of the most recent price fetch for a symbol.
type FetchStatus string

const (
	FetchOK       FetchStatus = "ok"
	FetchError    FetchStatus = "error"
	FetchNotFound FetchStatus = "not_found"
)

// PricePoint is one daily bar. (Symbol, Date) is unique.
type PricePoint struct {
	Symbol   string    `json:"symbol" yaml:"symbol"`
	Date     time.Time `json:"date" yaml:"date"`
	Open     float64   `json:"open" yaml:"open"`
	High     float64   `json:"high" yaml:"high"`
	Low      float64   `json:"low" yaml:"low"`
	Close    float64   `json:"close" yaml:"close"`
	AdjClose float64   `json:"adjusted_close" yaml:"adjusted_close"`
	Volume   int64     `json:"volume" yaml:"volume"`
}

// PriceFetchLog is the per-symbol fetch bookkeeping row.
type PriceFetchLog struct {
	Symbol        string      `json:"symbol" yaml:"symbol"`
	LastFetchedAt *time.Time  `json:"last_fetched_at" yaml:"last_fetched_at"`
	EarliestDate  *time.Time  `json:"earliest_date" yaml:"earliest_date"`
	LatestDate    *time.Time  `json:"latest_date" yaml:"latest_date"`
	Status        FetchStatus `json:"status" yaml:"status"`
	Error         string      `json:"error,omitempty" yaml:"error,omitempty"`
}
