package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceHouseClerk identifies filings retrieved from the House Clerk disclosure portal.
const SourceHouseClerk = "house_clerk"

// ChamberHouse is the chamber recorded on officials reconciled from House filings.
const ChamberHouse = "house"

// DocumentStatus is the processing outcome of a SourceDocument.
type DocumentStatus string

const (
	DocumentParsed DocumentStatus = "parsed"
	DocumentError  DocumentStatus = "error"
)

// TradeType is the normalized direction of a disclosed transaction.
type TradeType string

const (
	TradeBuy      TradeType = "buy"
	TradeSell     TradeType = "sell"
	TradeExchange TradeType = "exchange"
	TradeOther    TradeType = "other"
)

// Valid reports whether t is one of the four known trade types.
func (t TradeType) Valid() bool {
	switch t {
	case TradeBuy, TradeSell, TradeExchange, TradeOther:
		return true
	default:
		return false
	}
}

// SourceDocument is one retrieved filing. (Source, ExternalID) is unique.
type SourceDocument struct {
	ID               int64          `json:"id" yaml:"id"`
	Source           string         `json:"source" yaml:"source"`
	ExternalID       string         `json:"external_id" yaml:"external_id"`
	URL              string         `json:"url" yaml:"url"`
	FilerName        string         `json:"filer_name" yaml:"filer_name"`
	Office           string         `json:"office" yaml:"office"`
	FilingYear       int            `json:"filing_year" yaml:"filing_year"`
	FiledAt          *time.Time     `json:"filed_at" yaml:"filed_at"`
	FiledAtEstimated bool           `json:"filed_at_estimated" yaml:"filed_at_estimated"`
	ContentHash      string         `json:"content_hash" yaml:"content_hash"`
	Status           DocumentStatus `json:"status" yaml:"status"`
	RawText          string         `json:"-" yaml:"-"`
	ErrorMessage     string         `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	IngestedAt       time.Time      `json:"ingested_at" yaml:"ingested_at"`
}

// Trade is one disclosed transaction, owned by exactly one SourceDocument.
type Trade struct {
	ID             int64               `json:"id" yaml:"id"`
	DocumentID     int64               `json:"document_id" yaml:"document_id"`
	OfficialID     *int64              `json:"official_id" yaml:"official_id"`
	AssetName      string              `json:"asset_name" yaml:"asset_name"`
	Ticker         string              `json:"ticker,omitempty" yaml:"ticker,omitempty"`
	TradeType      TradeType           `json:"trade_type" yaml:"trade_type"`
	TradeDate      *time.Time          `json:"trade_date" yaml:"trade_date"`
	DisclosureDate *time.Time          `json:"disclosure_date" yaml:"disclosure_date"`
	AmountMin      decimal.NullDecimal `json:"amount_min" yaml:"amount_min"`
	AmountMax      decimal.NullDecimal `json:"amount_max" yaml:"amount_max"`
	RawLine        string              `json:"raw_line" yaml:"raw_line"`
}

// AmountMidpoint returns the midpoint of the disclosed amount bracket and
// whether it could be computed. An open-ended bracket ("over $50,000,000")
// uses its lower bound.
func (t Trade) AmountMidpoint() (decimal.Decimal, bool) {
	switch {
	case t.AmountMin.Valid && t.AmountMax.Valid:
		return t.AmountMin.Decimal.Add(t.AmountMax.Decimal).Div(decimal.NewFromInt(2)), true
	case t.AmountMin.Valid:
		return t.AmountMin.Decimal, true
	case t.AmountMax.Valid:
		return t.AmountMax.Decimal, true
	default:
		return decimal.Zero, false
	}
}

// Official is the canonical entity for a filer. (Name, Chamber) is unique.
type Official struct {
	ID              int64     `json:"id" yaml:"id"`
	Name            string    `json:"name" yaml:"name"`
	Chamber         string    `json:"chamber" yaml:"chamber"`
	Jurisdiction    string    `json:"jurisdiction" yaml:"jurisdiction"`
	SubJurisdiction string    `json:"sub_jurisdiction" yaml:"sub_jurisdiction"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
}

// IngestStats summarises one ingestion run.
type IngestStats struct {
	Found      int `json:"found" yaml:"found"`
	New        int `json:"new" yaml:"new"`
	Downloaded int `json:"downloaded" yaml:"downloaded"`
	Parsed     int `json:"parsed" yaml:"parsed"`
	Inserted   int `json:"inserted" yaml:"inserted"`
	Skipped    int `json:"skipped" yaml:"skipped"`
	Errors     int `json:"errors" yaml:"errors"`
}

// Metadata flattens the stats for the sync log.
func (s IngestStats) Metadata() map[string]any {
	return map[string]any{
		"found":      s.Found,
		"new":        s.New,
		"downloaded": s.Downloaded,
		"parsed":     s.Parsed,
		"inserted":   s.Inserted,
		"skipped":    s.Skipped,
		"errors":     s.Errors,
	}
}
