package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/tradewatch/internal/resilience"
)

const searchPath = "/FinancialDisclosure/ViewMemberSearchResult"

// HTTPOptions configures the HTTP retriever.
type HTTPOptions struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	Throttle   time.Duration
	CacheDir   string
	IndexTTL   time.Duration
}

// HTTPFetcher implements Retriever using net/http with a per-call throttle,
// retry on 429/5xx and an on-disk cache for the bulk index.
type HTTPFetcher struct {
	client  *http.Client
	mu      sync.RWMutex
	opts    HTTPOptions
	limiter *rate.Limiter
	log     *zap.Logger
	nowFunc func() time.Time
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "tradewatch/1.0"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://disclosures-clerk.house.gov"
	}
	if opts.IndexTTL == 0 {
		opts.IndexTTL = 24 * time.Hour
	}
	if opts.CacheDir == "" {
		opts.CacheDir = filepath.Join(os.TempDir(), "tradewatch")
	}

	limit := rate.Inf
	if opts.Throttle > 0 {
		limit = rate.Every(opts.Throttle)
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		MaxConnsPerHost:     4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		log:     zap.L().With(zap.String("component", "fetcher")),
		nowFunc: time.Now,
	}
}

// SetThrottle changes the minimum interval between calls. Zero disables the
// throttle.
func (f *HTTPFetcher) SetThrottle(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opts.Throttle = d
	if d > 0 {
		f.limiter.SetLimit(rate.Every(d))
	} else {
		f.limiter.SetLimit(rate.Inf)
	}
}

func (f *HTTPFetcher) throttle() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.opts.Throttle
}

// BaseURL returns the configured source root.
func (f *HTTPFetcher) BaseURL() string {
	return strings.TrimRight(f.opts.BaseURL, "/")
}

// FetchDocument downloads an artifact and hashes its raw bytes before any
// parsing happens.
func (f *HTTPFetcher) FetchDocument(ctx context.Context, rawURL string) ([]byte, string, error) {
	body, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, "", eris.Wrap(err, "fetcher: fetch document")
	}
	return body, ContentHash(body), nil
}

// FetchSearchPage posts a search form and returns the result page HTML.
func (f *HTTPFetcher) FetchSearchPage(ctx context.Context, params SearchParams) (string, error) {
	form := url.Values{}
	form.Set("FilingYear", strconv.Itoa(params.Year))
	form.Set("LastName", params.LastName)
	form.Set("State", params.State)
	if params.Page > 0 {
		form.Set("Page", strconv.Itoa(params.Page))
	}

	body, err := f.do(ctx, http.MethodPost, f.BaseURL()+searchPath, form)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: search page %d", params.Page)
	}
	return string(body), nil
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	return f.do(ctx, http.MethodGet, rawURL, nil)
}

// do issues one logical request: up to MaxRetries attempts, each preceded by
// the throttle, backing off throttle * 2^(attempt-1) between transient failures.
func (f *HTTPFetcher) do(ctx context.Context, method, rawURL string, form url.Values) ([]byte, error) {
	cfg := resilience.ThrottledRetryConfig(f.throttle(), f.opts.MaxRetries)
	cfg.OnRetry = func(attempt int, err error) {
		f.log.Warn("request failed, retrying",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		var reqBody io.Reader
		if form != nil {
			reqBody = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
		if err != nil {
			return nil, &resilience.RetrievalError{URL: rawURL, Err: err}
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, resilience.NewNetworkError(rawURL, err)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, resilience.NewStatusError(rawURL, resp.StatusCode)
		}

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, resp.Body); err != nil {
			return nil, resilience.NewNetworkError(rawURL, err)
		}
		return buf.Bytes(), nil
	})
}
