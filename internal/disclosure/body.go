package disclosure

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/tradewatch/internal/model"
	"github.com/sells-group/tradewatch/internal/ocr"
)

// BodyParser extracts trades from the text of a PTR document. Each line that
// carries a known amount bracket anchors one trade; the remaining fields are
// read from the anchor line and its neighbours.
type BodyParser struct {
	Extractor    ocr.Extractor
	RawTextLimit int
}

var (
	tickerRe = regexp.MustCompile(`([\(\[])([A-Z]{1,5})[\)\]]`)
	dateRe   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)

	// Asset-type codes printed in square brackets next to the asset name.
	assetTypeCodes = map[string]bool{
		"ST": true, "OP": true, "MF": true, "EF": true, "GS": true, "CS": true,
		"CT": true, "OT": true, "PS": true, "RP": true, "AB": true, "BA": true,
		"HN": true, "DS": true, "OL": true, "RE": true, "OI": true, "PE": true,
	}

	ownerCodes = map[string]bool{"SP": true, "JT": true, "DC": true}

	boilerplate = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*(filing\s+id|name|status|state/district|filer\s+information)\s*[:#]`),
		regexp.MustCompile(`(?i)periodic\s+transaction\s+report`),
		regexp.MustCompile(`(?i)clerk\s+of\s+the\s+house`),
		regexp.MustCompile(`(?i)^\s*id\s+owner\s+asset`),
		regexp.MustCompile(`(?i)transaction\s+type.*amount|amount.*cap\.?\s*gains`),
		regexp.MustCompile(`(?i)^\s*(filing\s+status|subholding\s+of|description|comments?)\s*:`),
		regexp.MustCompile(`(?i)^\s*\*\s*for\s+the\s+complete\s+list`),
		regexp.MustCompile(`(?i)(i\s+certify|digitally\s+signed|initial\s+public\s+offerings?)`),
		regexp.MustCompile(`(?i)^\s*(asset\s+class\s+details|certification\s+and\s+signature)`),
		regexp.MustCompile(`(?i)^\s*(notification\s+date|date\s+notified)\s*$`),
	}
)

// Parse extracts text from the artifact and scans it for trades.
func (p *BodyParser) Parse(ctx context.Context, raw []byte) (*ParsedDocument, error) {
	if p.Extractor == nil {
		return nil, eris.New("disclosure: body parser has no extractor")
	}
	text, err := p.Extractor.ExtractText(ctx, raw)
	if err != nil {
		return nil, eris.Wrap(err, "disclosure: extract text")
	}
	text = Sanitize(text)

	return &ParsedDocument{
		Trades:  ParseTrades(text),
		RawText: Truncate(text, p.RawTextLimit),
	}, nil
}

// ParseTrades scans document text for amount-bracket anchors and builds one
// candidate trade per anchor.
func ParseTrades(text string) []ParsedTrade {
	lines := contentLines(text)

	var trades []ParsedTrade
	for i, line := range lines {
		next := ""
		if i+1 < len(lines) {
			next = lines[i+1]
		}
		rng, ok := anchorAmount(line, next)
		if !ok {
			continue
		}

		prev := ""
		if i > 0 {
			prev = lines[i-1]
		}
		window := []string{line, prev, next}

		t := ParsedTrade{
			Ticker:    findTicker(window),
			TradeType: findTradeType(window),
			TradeDate: findDate(window),
			AmountMin: decimal.NewNullDecimal(rng.Min),
			AmountMax: rng.Max,
			RawLine:   SanitizeField(line),
		}
		t.AssetName = findAssetName(line, window)
		if t.AssetName == "" {
			t.AssetName = t.Ticker
		}
		trades = append(trades, t)
	}
	return trades
}

// contentLines splits text into trimmed, non-empty lines with boilerplate
// removed.
func contentLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l == "" || isBoilerplate(l) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func isBoilerplate(line string) bool {
	for _, re := range boilerplate {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// anchorAmount matches a bracket on line, or one that starts on line and is
// wrapped onto next by the layout.
func anchorAmount(line, next string) (AmountRange, bool) {
	if r, _, ok := MatchAmount(line); ok {
		return r, true
	}
	if next == "" || !strings.Contains(line, "$") && !strings.Contains(strings.ToLower(line), "over") {
		return AmountRange{}, false
	}
	r, at, ok := MatchAmount(line + " " + next)
	if ok && at < len(line) {
		return r, true
	}
	return AmountRange{}, false
}

func findTicker(window []string) string {
	for _, l := range window {
		for _, m := range tickerRe.FindAllStringSubmatch(l, -1) {
			if m[1] == "[" && assetTypeCodes[m[2]] {
				continue
			}
			return m[2]
		}
	}
	return ""
}

// findTradeType returns the first standalone type token in the window,
// compared case-insensitively. The anchor line is window[0] and is searched
// first; a bare "E" only counts there, since it is too common to trust on
// neighbouring lines.
func findTradeType(window []string) model.TradeType {
	for i, l := range window {
		for _, tok := range strings.Fields(l) {
			switch strings.ToUpper(strings.Trim(tok, ".,:;()[]")) {
			case "P", "PURCHASE":
				return model.TradeBuy
			case "S", "SALE", "SELL":
				return model.TradeSell
			case "EXCHANGE":
				return model.TradeExchange
			case "E":
				if i == 0 {
					return model.TradeExchange
				}
			}
		}
	}
	return model.TradeOther
}

func findDate(window []string) *time.Time {
	for _, l := range window {
		for _, m := range dateRe.FindAllStringSubmatch(l, -1) {
			if d := usDate(m[1], m[2], m[3]); d != nil {
				return d
			}
		}
	}
	return nil
}

func usDate(mm, dd, yyyy string) *time.Time {
	month, _ := strconv.Atoi(mm)
	day, _ := strconv.Atoi(dd)
	year, _ := strconv.Atoi(yyyy)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day {
		return nil
	}
	return &d
}

// findAssetName takes the text before the first "$" on the anchor line when
// it is long enough to hold a name; otherwise the first token longer than
// three characters in the window.
func findAssetName(line string, window []string) string {
	if idx := strings.Index(line, "$"); idx > 10 {
		if name := cleanAssetName(line[:idx]); len(name) > 3 {
			return name
		}
	}
	for _, l := range window {
		for _, tok := range strings.Fields(l) {
			if len(tok) > 3 && !strings.HasPrefix(tok, "$") && !dateRe.MatchString(tok) {
				return SanitizeField(tok)
			}
		}
	}
	return ""
}

// Column values that can trail the asset name on the anchor line.
var trailingColumns = map[string]bool{
	"P": true, "S": true, "E": true, "PURCHASE": true, "SALE": true,
	"SELL": true, "EXCHANGE": true, "(PARTIAL)": true, "OVER": true,
}

func cleanAssetName(s string) string {
	s = dateRe.ReplaceAllString(s, " ")
	fields := strings.Fields(s)
	if len(fields) > 1 && ownerCodes[strings.ToUpper(fields[0])] {
		fields = fields[1:]
	}
	for len(fields) > 1 && trailingColumns[strings.ToUpper(fields[len(fields)-1])] {
		fields = fields[:len(fields)-1]
	}
	return SanitizeField(strings.Join(fields, " "))
}
