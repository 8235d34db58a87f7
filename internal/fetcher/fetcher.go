// Package fetcher retrieves raw disclosure artifacts from the House Clerk:
// PTR documents, the yearly bulk index archive and paginated search results.
package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Retriever fetches raw filing artifacts. Implementations throttle every
// outbound call and retry transient failures; errors are returned as
// *resilience.RetrievalError so callers can isolate them per document.
type Retriever interface {
	// FetchDocument downloads a single artifact and returns its bytes and
	// the sha-256 content hash of those bytes.
	FetchDocument(ctx context.Context, url string) ([]byte, string, error)

	// FetchBulkIndex returns the XML index of all filings for a year.
	FetchBulkIndex(ctx context.Context, year int) ([]byte, error)

	// FetchSearchPage returns the HTML of one page of search results.
	FetchSearchPage(ctx context.Context, params SearchParams) (string, error)
}

// SearchParams selects one page of the filing search.
type SearchParams struct {
	Year     int
	Page     int
	LastName string
	State    string
}

// ContentHash returns the hex-encoded sha-256 of raw artifact bytes.
func ContentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// DocumentURL builds the PTR artifact URL for a document id.
func DocumentURL(baseURL string, year int, docID string) string {
	return fmt.Sprintf("%s/public_disc/ptr-pdfs/%d/%s.pdf", strings.TrimRight(baseURL, "/"), year, docID)
}

// BulkIndexURL builds the yearly bulk index archive URL.
func BulkIndexURL(baseURL string, year int) string {
	return fmt.Sprintf("%s/public_disc/financial-pdfs/%dFD.zip", strings.TrimRight(baseURL, "/"), year)
}
