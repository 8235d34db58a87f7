package disclosure

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

var (
	ptrMarkerRe = regexp.MustCompile(`(?i)\bPTR\b|periodic\s+transaction`)
	docLinkRe   = regexp.MustCompile(`(\d+)\.pdf\b`)
)

// Search result columns.
const (
	colName = iota
	colOffice
	colYear
	colFilingType
	colFilingDate
)

// SearchParser reads PTR rows out of a search result page.
type SearchParser struct {
	BaseURL string
}

// Parse walks the result table and keeps rows marked as periodic
// transaction reports.
func (p *SearchParser) Parse(_ context.Context, raw []byte) (*ParsedDocument, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "disclosure: search page")
	}

	doc := &ParsedDocument{}
	page.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if !ptrMarkerRe.MatchString(rowText(cells)) {
			return
		}
		link, ok := row.Find("a[href]").Attr("href")
		if !ok {
			return
		}
		m := docLinkRe.FindStringSubmatch(link)
		if m == nil {
			return
		}

		cell := func(i int) string {
			if i >= cells.Length() {
				return ""
			}
			return SanitizeField(cells.Eq(i).Text())
		}

		year, _ := strconv.Atoi(cell(colYear))
		entry := FilingEntry{
			DocID:      m[1],
			FilerName:  cell(colName),
			Office:     cell(colOffice),
			FilingYear: year,
			FilingDate: parseFilingDate(cell(colFilingDate)),
			URL:        p.resolve(link),
		}
		if entry.FilingYear == 0 && entry.FilingDate != nil {
			entry.FilingYear = entry.FilingDate.Year()
		}
		doc.Entries = append(doc.Entries, entry)
	})
	return doc, nil
}

// rowText joins cell texts with spaces. Selection.Text concatenates them
// directly, which fuses adjacent cells into one word.
func rowText(cells *goquery.Selection) string {
	return strings.Join(cells.Map(func(_ int, c *goquery.Selection) string { return c.Text() }), " ")
}

func (p *SearchParser) resolve(href string) string {
	base, err := url.Parse(strings.TrimRight(p.BaseURL, "/") + "/")
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
