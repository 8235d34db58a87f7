// Package disclosure turns raw filing artifacts into structured rows. Three
// artifact kinds are supported, each with its own parser strategy: the
// yearly bulk index (XML), search result pages (HTML) and the PTR document
// body (PDF text).
package disclosure

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/tradewatch/internal/model"
	"github.com/sells-group/tradewatch/internal/ocr"
)

// ArtifactKind tags the shape of a raw artifact.
type ArtifactKind int

const (
	KindBulkIndex ArtifactKind = iota + 1
	KindSearchPage
	KindDocument
)

func (k ArtifactKind) String() string {
	switch k {
	case KindBulkIndex:
		return "bulk_index"
	case KindSearchPage:
		return "search_page"
	case KindDocument:
		return "document"
	default:
		return "unknown"
	}
}

// FilingEntry is one discovered filing, from either the bulk index or a
// search page.
type FilingEntry struct {
	DocID      string
	FilerName  string
	Office     string
	FilingDate *time.Time
	FilingYear int
	URL        string
}

// ParsedTrade is a candidate trade row extracted from a document body.
type ParsedTrade struct {
	AssetName string
	Ticker    string
	TradeType model.TradeType
	TradeDate *time.Time
	AmountMin decimal.NullDecimal
	AmountMax decimal.NullDecimal
	RawLine   string
}

// ParsedDocument is the shared output of every parser. Discovery parsers
// fill Entries; the body parser fills Trades and RawText.
type ParsedDocument struct {
	Entries []FilingEntry
	Trades  []ParsedTrade
	RawText string
}

// Parser converts one raw artifact into a ParsedDocument.
type Parser interface {
	Parse(ctx context.Context, raw []byte) (*ParsedDocument, error)
}

// Options configures the parser set.
type Options struct {
	BaseURL       string
	Extractor     ocr.Extractor
	RawTextLimit  int
	PdfToTextPath string
}

// Registry maps each ArtifactKind to its parser.
type Registry struct {
	index  Parser
	search Parser
	body   Parser
}

// NewRegistry builds the parser set for a source rooted at opts.BaseURL.
func NewRegistry(opts Options) *Registry {
	ext := opts.Extractor
	if ext == nil {
		ext = ocr.NewExtractor(opts.PdfToTextPath)
	}
	return &Registry{
		index:  &IndexParser{BaseURL: opts.BaseURL},
		search: &SearchParser{BaseURL: opts.BaseURL},
		body:   &BodyParser{Extractor: ext, RawTextLimit: opts.RawTextLimit},
	}
}

// For returns the parser registered for kind.
func (r *Registry) For(kind ArtifactKind) (Parser, error) {
	switch kind {
	case KindBulkIndex:
		return r.index, nil
	case KindSearchPage:
		return r.search, nil
	case KindDocument:
		return r.body, nil
	default:
		return nil, eris.Errorf("disclosure: no parser for artifact kind %d", int(kind))
	}
}

// Parse dispatches raw to the parser for kind.
func (r *Registry) Parse(ctx context.Context, kind ArtifactKind, raw []byte) (*ParsedDocument, error) {
	p, err := r.For(kind)
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse(ctx, raw)
	if err != nil {
		return nil, eris.Wrapf(err, "disclosure: parse %s", kind)
	}
	return doc, nil
}
