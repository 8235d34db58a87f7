package prices

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tradewatch/internal/db"
	"github.com/sells-group/tradewatch/internal/model"
)

// Store persists price bars and the per-symbol fetch log.
type Store interface {
	FetchLog(ctx context.Context, symbol string) (*model.PriceFetchLog, error)
	SaveFetchLog(ctx context.Context, l model.PriceFetchLog) error
	UpsertPrices(ctx context.Context, points []model.PricePoint, chunkSize int) db.ChunkResult
	TradeSymbols(ctx context.Context) ([]string, error)
}

// PGStore implements Store on Postgres.
type PGStore struct {
	pool db.Pool
}

// NewPGStore creates a PGStore backed by the given pool.
func NewPGStore(pool db.Pool) *PGStore {
	return &PGStore{pool: pool}
}

var priceUpsert = db.UpsertConfig{
	Table:        "price_points",
	Columns:      []string{"symbol", "date", "open", "high", "low", "close", "adj_close", "volume"},
	ConflictKeys: []string{"symbol", "date"},
}

// FetchLog returns the fetch log row for symbol, or nil.
func (s *PGStore) FetchLog(ctx context.Context, symbol string) (*model.PriceFetchLog, error) {
	var (
		l      model.PriceFetchLog
		status string
		errMsg *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT symbol, last_fetched_at, earliest_date, latest_date, status, error
		 FROM price_fetch_log WHERE symbol = $1`,
		symbol,
	).Scan(&l.Symbol, &l.LastFetchedAt, &l.EarliestDate, &l.LatestDate, &status, &errMsg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "prices: fetch log for %s", symbol)
	}
	l.Status = model.FetchStatus(status)
	if errMsg != nil {
		l.Error = *errMsg
	}
	return &l, nil
}

// SaveFetchLog upserts the fetch log row. The covered date range only ever
// widens: nil dates leave the stored bounds unchanged.
func (s *PGStore) SaveFetchLog(ctx context.Context, l model.PriceFetchLog) error {
	var errMsg *string
	if l.Error != "" {
		errMsg = &l.Error
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_fetch_log (symbol, last_fetched_at, earliest_date, latest_date, status, error)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (symbol) DO UPDATE SET
		   last_fetched_at = EXCLUDED.last_fetched_at,
		   earliest_date = LEAST(price_fetch_log.earliest_date, EXCLUDED.earliest_date),
		   latest_date = GREATEST(price_fetch_log.latest_date, EXCLUDED.latest_date),
		   status = EXCLUDED.status,
		   error = EXCLUDED.error`,
		l.Symbol, l.LastFetchedAt, l.EarliestDate, l.LatestDate, string(l.Status), errMsg,
	)
	if err != nil {
		return eris.Wrapf(err, "prices: save fetch log for %s", l.Symbol)
	}
	return nil
}

// UpsertPrices writes bars in chunks keyed by (symbol, date).
func (s *PGStore) UpsertPrices(ctx context.Context, points []model.PricePoint, chunkSize int) db.ChunkResult {
	rows := make([][]any, 0, len(points))
	for _, p := range points {
		rows = append(rows, []any{
			p.Symbol, p.Date, p.Open, p.High, p.Low, p.Close, p.AdjClose, p.Volume,
		})
	}
	return db.ChunkedUpsert(ctx, s.pool, priceUpsert, rows, chunkSize)
}

// TradeSymbols returns every distinct ticker referenced by a trade.
func (s *PGStore) TradeSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT upper(ticker) FROM trades
		 WHERE ticker IS NOT NULL AND ticker <> ''
		 ORDER BY 1`)
	if err != nil {
		return nil, eris.Wrap(err, "prices: query trade symbols")
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, eris.Wrap(err, "prices: scan trade symbol")
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// IsStale reports whether a symbol is due for refresh: no log row, a
// previous error, no fetch timestamp, or a fetch older than maxAge.
func IsStale(l *model.PriceFetchLog, now time.Time, maxAge time.Duration) bool {
	switch {
	case l == nil:
		return true
	case l.Status == model.FetchError:
		return true
	case l.LastFetchedAt == nil:
		return true
	default:
		return now.Sub(*l.LastFetchedAt) > maxAge
	}
}
