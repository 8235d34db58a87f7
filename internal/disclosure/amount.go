package disclosure

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountRange is one bracket of the disclosure amount vocabulary. Max is
// invalid for the open-ended top bracket.
type AmountRange struct {
	Label string
	Min   decimal.Decimal
	Max   decimal.NullDecimal
}

func bracket(label string, lo, hi int64) AmountRange {
	r := AmountRange{Label: label, Min: decimal.NewFromInt(lo)}
	if hi > 0 {
		r.Max = decimal.NewNullDecimal(decimal.NewFromInt(hi))
	}
	return r
}

// AmountRanges is the fixed bracket table printed on periodic transaction
// reports.
var AmountRanges = []AmountRange{
	bracket("$1,001 - $15,000", 1001, 15000),
	bracket("$15,001 - $50,000", 15001, 50000),
	bracket("$50,001 - $100,000", 50001, 100000),
	bracket("$100,001 - $250,000", 100001, 250000),
	bracket("$250,001 - $500,000", 250001, 500000),
	bracket("$500,001 - $1,000,000", 500001, 1000000),
	bracket("$1,000,001 - $5,000,000", 1000001, 5000000),
	bracket("$5,000,001 - $25,000,000", 5000001, 25000000),
	bracket("$25,000,001 - $50,000,000", 25000001, 50000000),
	bracket("Over $50,000,000", 50000000, 0),
	bracket("Spouse/DC Over $1,000,000", 1000000, 0),
}

var (
	rangeRe = regexp.MustCompile(`\$\s?([\d,]+)\s*[-–—]+\s*\$\s?([\d,]+)`)
	overRe  = regexp.MustCompile(`(?i)over\s+\$\s?([\d,]+)`)
)

// MatchAmount finds the first recognised amount bracket in s. It returns the
// bracket and the byte offset where the token starts.
func MatchAmount(s string) (AmountRange, int, bool) {
	for _, loc := range rangeRe.FindAllStringSubmatchIndex(s, -1) {
		lo := digits(s[loc[2]:loc[3]])
		hi := digits(s[loc[4]:loc[5]])
		for _, r := range AmountRanges {
			if r.Max.Valid && r.Min.String() == lo && r.Max.Decimal.String() == hi {
				return r, loc[0], true
			}
		}
	}
	if loc := overRe.FindStringSubmatchIndex(s); loc != nil {
		v := digits(s[loc[2]:loc[3]])
		for _, r := range AmountRanges {
			if !r.Max.Valid && r.Min.String() == v {
				return r, loc[0], true
			}
		}
	}
	return AmountRange{}, -1, false
}

// ParseAmount returns the bounds of the first bracket found in s.
func ParseAmount(s string) (decimal.NullDecimal, decimal.NullDecimal, bool) {
	r, _, ok := MatchAmount(s)
	if !ok {
		return decimal.NullDecimal{}, decimal.NullDecimal{}, false
	}
	return decimal.NewNullDecimal(r.Min), r.Max, true
}

func digits(s string) string {
	return strings.TrimLeft(strings.ReplaceAll(s, ",", ""), "0")
}
