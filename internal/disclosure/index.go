package disclosure

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tradewatch/internal/fetcher"
)

// PTRFilingType marks periodic transaction reports in the bulk index.
const PTRFilingType = "P"

// indexMember is one <Member> block of the yearly bulk index.
type indexMember struct {
	Prefix     string `xml:"Prefix"`
	Last       string `xml:"Last"`
	First      string `xml:"First"`
	Suffix     string `xml:"Suffix"`
	FilingType string `xml:"FilingType"`
	StateDst   string `xml:"StateDst"`
	Year       string `xml:"Year"`
	FilingDate string `xml:"FilingDate"`
	DocID      string `xml:"DocID"`
}

// IndexParser reads PTR entries out of the bulk index XML.
type IndexParser struct {
	BaseURL string
}

// Parse streams Member elements and keeps periodic transaction reports.
func (p *IndexParser) Parse(ctx context.Context, raw []byte) (*ParsedDocument, error) {
	members, err := fetcher.CollectXML[indexMember](ctx, bytes.NewReader(raw), "Member")
	if err != nil {
		return nil, eris.Wrap(err, "disclosure: bulk index")
	}

	doc := &ParsedDocument{}
	for _, m := range members {
		if !strings.EqualFold(strings.TrimSpace(m.FilingType), PTRFilingType) {
			continue
		}
		docID := strings.TrimSpace(m.DocID)
		if docID == "" {
			continue
		}
		year, _ := strconv.Atoi(strings.TrimSpace(m.Year))
		filed := parseFilingDate(m.FilingDate)
		if year == 0 && filed != nil {
			year = filed.Year()
		}
		doc.Entries = append(doc.Entries, FilingEntry{
			DocID:      docID,
			FilerName:  joinName(m.Last, m.First, m.Prefix, m.Suffix),
			Office:     SanitizeField(m.StateDst),
			FilingDate: filed,
			FilingYear: year,
			URL:        fetcher.DocumentURL(p.BaseURL, year, docID),
		})
	}
	return doc, nil
}

// joinName comma-joins the non-empty name parts in order.
func joinName(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = SanitizeField(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

var filingDateLayouts = []string{"1/2/2006", "01/02/2006", time.DateOnly}

func parseFilingDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range filingDateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return &d
		}
	}
	return nil
}
