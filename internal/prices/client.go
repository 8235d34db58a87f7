// Package prices keeps the daily price series current: it pulls bars from
// the market-data provider, throttled, and upserts them incrementally while
// tracking per-symbol fetch freshness.
package prices

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tradewatch/internal/fetcher"
	"github.com/sells-group/tradewatch/internal/model"
	"github.com/sells-group/tradewatch/internal/resilience"
)

// ErrSymbolNotFound is returned when the provider does not know a symbol.
var ErrSymbolNotFound = eris.New("prices: symbol not found")

// Provider returns daily bars for a symbol over an inclusive date range.
type Provider interface {
	DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.PricePoint, error)
}

// ClientOptions configures the EODHD client.
type ClientOptions struct {
	BaseURL    string
	APIKey     string
	Exchange   string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	Throttle   *Throttle
}

// EODHDClient implements Provider against the EODHD end-of-day API.
type EODHDClient struct {
	http     *http.Client
	opts     ClientOptions
	throttle *Throttle
	breaker  *resilience.CircuitBreaker
	log      *zap.Logger
}

// eodBar is one element of the /eod response array.
type eodBar struct {
	Date          string  `json:"date"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	AdjustedClose float64 `json:"adjusted_close"`
	Volume        float64 `json:"volume"`
}

// NewEODHDClient creates a client. A nil Throttle gets a 200ms default.
func NewEODHDClient(opts ClientOptions) *EODHDClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://eodhd.com/api"
	}
	if opts.Exchange == "" {
		opts.Exchange = "US"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.Backoff == 0 {
		opts.Backoff = time.Second
	}
	if opts.Throttle == nil {
		opts.Throttle = NewThrottle(200 * time.Millisecond)
	}

	log := zap.L().With(zap.String("component", "prices.eodhd"))
	cbCfg := resilience.DefaultCircuitBreakerConfig()
	cbCfg.ShouldTrip = resilience.IsTransient
	cbCfg.OnStateChange = func(from, to resilience.CircuitState) {
		log.Warn("circuit breaker state change", zap.String("from", from.String()), zap.String("to", to.String()))
	}

	return &EODHDClient{
		http:     &http.Client{Timeout: opts.Timeout},
		opts:     opts,
		throttle: opts.Throttle,
		breaker:  resilience.NewCircuitBreaker(cbCfg),
		log:      log,
	}
}

// ProviderSymbol maps a trade ticker onto the provider's symbol format:
// share-class dots become dashes and the exchange suffix is appended.
func ProviderSymbol(symbol, exchange string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s + "." + exchange
}

// DailyBars implements Provider. Bars with an unparseable date or a
// non-positive close are dropped.
func (c *EODHDClient) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.PricePoint, error) {
	q := url.Values{}
	q.Set("api_token", c.opts.APIKey)
	q.Set("fmt", "json")
	q.Set("period", "d")
	q.Set("from", from.Format(time.DateOnly))
	q.Set("to", to.Format(time.DateOnly))
	addr := fmt.Sprintf("%s/eod/%s?%s",
		strings.TrimRight(c.opts.BaseURL, "/"),
		url.PathEscape(ProviderSymbol(symbol, c.opts.Exchange)),
		q.Encode())

	retryCfg := resilience.RetryConfig{
		MaxAttempts:    c.opts.MaxRetries,
		InitialBackoff: c.opts.Backoff,
		MaxBackoff:     10 * c.opts.Backoff,
		Multiplier:     2.0,
		JitterFraction: 0.2,
		OnRetry:        resilience.RetryLogger("eodhd", "eod"),
	}

	bars, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]model.PricePoint, error) {
		return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) ([]model.PricePoint, error) {
			return c.get(ctx, addr, strings.ToUpper(strings.TrimSpace(symbol)))
		})
	})
	if err != nil {
		var re *resilience.RetrievalError
		if errors.As(err, &re) && re.StatusCode == http.StatusNotFound {
			return nil, eris.Wrapf(ErrSymbolNotFound, "prices: %s", symbol)
		}
		return nil, eris.Wrapf(err, "prices: daily bars for %s", symbol)
	}
	return bars, nil
}

func (c *EODHDClient) get(ctx context.Context, addr, symbol string) ([]model.PricePoint, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "throttle wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, &resilience.RetrievalError{URL: redact(addr), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewNetworkError(redact(addr), err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resilience.NewStatusError(redact(addr), resp.StatusCode)
	}

	items, errs := fetcher.DecodeJSONArray[eodBar](ctx, resp.Body)
	var points []model.PricePoint
	for b := range items {
		d, err := time.Parse(time.DateOnly, b.Date)
		if err != nil || b.Close <= 0 {
			continue
		}
		points = append(points, model.PricePoint{
			Symbol:   symbol,
			Date:     d,
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			AdjClose: b.AdjustedClose,
			Volume:   int64(b.Volume),
		})
	}
	if err := <-errs; err != nil {
		return nil, eris.Wrap(err, "decode eod response")
	}
	return points, nil
}

// redact strips the API token from a URL before it is logged or wrapped.
func redact(addr string) string {
	u, err := url.Parse(addr)
	if err != nil {
		return addr
	}
	q := u.Query()
	if q.Has("api_token") {
		q.Set("api_token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
