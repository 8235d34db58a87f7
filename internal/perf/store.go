package perf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tradewatch/internal/db"
	"github.com/sells-group/tradewatch/internal/model"
)

// TradeFilter narrows an official's trade list. Zero values match everything.
// From and To bound the trade date, falling back to the disclosure date.
type TradeFilter struct {
	From      *time.Time
	To        *time.Time
	TradeType model.TradeType
	Ticker    string
}

// Store is the persistence surface the engine needs.
type Store interface {
	FirstPriceBetween(ctx context.Context, symbol string, from, to time.Time) (*model.PricePoint, error)
	LastPriceBetween(ctx context.Context, symbol string, from, to time.Time) (*model.PricePoint, error)
	LatestPrice(ctx context.Context, symbol string) (*model.PricePoint, error)

	Trade(ctx context.Context, id int64) (*model.Trade, error)
	TradesWithTicker(ctx context.Context) ([]model.Trade, error)
	Official(ctx context.Context, id int64) (*model.Official, error)
	OfficialTrades(ctx context.Context, officialID int64, f TradeFilter) ([]model.Trade, error)

	Performance(ctx context.Context, tradeID int64) (*model.TradePerformance, error)
	SavePerformance(ctx context.Context, p *model.TradePerformance) error
}

// PGStore implements Store on Postgres.
type PGStore struct {
	pool db.Pool
}

// NewPGStore creates a PGStore backed by the given pool.
func NewPGStore(pool db.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const tradeSelect = `SELECT id, document_id, official_id, asset_name, ticker, trade_type,
	trade_date, disclosure_date, amount_min, amount_max, raw_line FROM trades`

const perfColumns = `trade_id, symbol, reference_date, reference_price, is_estimated_date,
	return_1d, return_1w, return_1m, return_3m, return_6m, return_1y, return_to_date,
	benchmark_symbol, benchmark_1m, benchmark_3m, benchmark_6m, benchmark_1y, benchmark_to_date,
	current_price, computed_at`

// FirstPriceBetween returns the earliest bar in [from, to], or nil.
func (s *PGStore) FirstPriceBetween(ctx context.Context, symbol string, from, to time.Time) (*model.PricePoint, error) {
	return s.onePrice(ctx,
		`SELECT symbol, date, close FROM price_points
		 WHERE symbol = $1 AND date >= $2 AND date <= $3
		 ORDER BY date ASC LIMIT 1`,
		symbol, from, to)
}

// LastPriceBetween returns the latest bar in [from, to], or nil.
func (s *PGStore) LastPriceBetween(ctx context.Context, symbol string, from, to time.Time) (*model.PricePoint, error) {
	return s.onePrice(ctx,
		`SELECT symbol, date, close FROM price_points
		 WHERE symbol = $1 AND date >= $2 AND date <= $3
		 ORDER BY date DESC LIMIT 1`,
		symbol, from, to)
}

// LatestPrice returns the most recent bar for symbol, or nil.
func (s *PGStore) LatestPrice(ctx context.Context, symbol string) (*model.PricePoint, error) {
	return s.onePrice(ctx,
		`SELECT symbol, date, close FROM price_points
		 WHERE symbol = $1 ORDER BY date DESC LIMIT 1`,
		symbol)
}

func (s *PGStore) onePrice(ctx context.Context, sql string, args ...any) (*model.PricePoint, error) {
	var p model.PricePoint
	err := s.pool.QueryRow(ctx, sql, args...).Scan(&p.Symbol, &p.Date, &p.Close)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "perf: price lookup for %v", args[0])
	}
	return &p, nil
}

// Trade returns one trade, or nil.
func (s *PGStore) Trade(ctx context.Context, id int64) (*model.Trade, error) {
	rows, err := s.pool.Query(ctx, tradeSelect+` WHERE id = $1`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "perf: query trade %d", id)
	}
	trades, err := scanTrades(rows)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, nil
	}
	return &trades[0], nil
}

// TradesWithTicker returns every trade that names a ticker, oldest first.
func (s *PGStore) TradesWithTicker(ctx context.Context) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx, tradeSelect+`
		WHERE ticker IS NOT NULL AND ticker <> ''
		ORDER BY COALESCE(trade_date, disclosure_date), id`)
	if err != nil {
		return nil, eris.Wrap(err, "perf: query trades with ticker")
	}
	return scanTrades(rows)
}

// Official returns one official, or nil.
func (s *PGStore) Official(ctx context.Context, id int64) (*model.Official, error) {
	var (
		o          model.Official
		juris, sub *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, chamber, jurisdiction, sub_jurisdiction, created_at
		 FROM officials WHERE id = $1`,
		id,
	).Scan(&o.ID, &o.Name, &o.Chamber, &juris, &sub, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "perf: get official %d", id)
	}
	if juris != nil {
		o.Jurisdiction = *juris
	}
	if sub != nil {
		o.SubJurisdiction = *sub
	}
	return &o, nil
}

// OfficialTrades returns an official's trades matching f, oldest first.
func (s *PGStore) OfficialTrades(ctx context.Context, officialID int64, f TradeFilter) ([]model.Trade, error) {
	where := []string{"official_id = $1"}
	args := []any{officialID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.From != nil {
		add("COALESCE(trade_date, disclosure_date) >= $%d", *f.From)
	}
	if f.To != nil {
		add("COALESCE(trade_date, disclosure_date) <= $%d", *f.To)
	}
	if f.TradeType != "" {
		add("trade_type = $%d", string(f.TradeType))
	}
	if f.Ticker != "" {
		add("upper(ticker) = $%d", strings.ToUpper(f.Ticker))
	}

	rows, err := s.pool.Query(ctx, tradeSelect+
		" WHERE "+strings.Join(where, " AND ")+
		" ORDER BY COALESCE(trade_date, disclosure_date), id", args...)
	if err != nil {
		return nil, eris.Wrapf(err, "perf: query trades for official %d", officialID)
	}
	return scanTrades(rows)
}

func scanTrades(rows pgx.Rows) ([]model.Trade, error) {
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var (
			t              model.Trade
			ticker         *string
			tradeType      string
			amtMin, amtMax pgtype.Numeric
		)
		if err := rows.Scan(&t.ID, &t.DocumentID, &t.OfficialID, &t.AssetName, &ticker, &tradeType,
			&t.TradeDate, &t.DisclosureDate, &amtMin, &amtMax, &t.RawLine); err != nil {
			return nil, eris.Wrap(err, "perf: scan trade")
		}
		if ticker != nil {
			t.Ticker = *ticker
		}
		t.TradeType = model.TradeType(tradeType)
		t.AmountMin = db.Decimal(amtMin)
		t.AmountMax = db.Decimal(amtMax)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "perf: iterate trades")
	}
	return trades, nil
}

// Performance returns the stored performance row for a trade, or nil.
func (s *PGStore) Performance(ctx context.Context, tradeID int64) (*model.TradePerformance, error) {
	var p model.TradePerformance
	err := s.pool.QueryRow(ctx,
		`SELECT `+perfColumns+` FROM trade_performance WHERE trade_id = $1`,
		tradeID,
	).Scan(&p.TradeID, &p.Symbol, &p.ReferenceDate, &p.ReferencePrice, &p.IsEstimatedDate,
		&p.Return1D, &p.Return1W, &p.Return1M, &p.Return3M, &p.Return6M, &p.Return1Y, &p.ReturnToDate,
		&p.BenchmarkSymbol, &p.Benchmark1M, &p.Benchmark3M, &p.Benchmark6M, &p.Benchmark1Y, &p.BenchmarkToDate,
		&p.CurrentPrice, &p.ComputedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "perf: get performance for trade %d", tradeID)
	}
	return &p, nil
}

// SavePerformance upserts the performance row keyed by trade id.
func (s *PGStore) SavePerformance(ctx context.Context, p *model.TradePerformance) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trade_performance (`+perfColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		 ON CONFLICT (trade_id) DO UPDATE SET
		   symbol = EXCLUDED.symbol,
		   reference_date = EXCLUDED.reference_date,
		   reference_price = EXCLUDED.reference_price,
		   is_estimated_date = EXCLUDED.is_estimated_date,
		   return_1d = EXCLUDED.return_1d,
		   return_1w = EXCLUDED.return_1w,
		   return_1m = EXCLUDED.return_1m,
		   return_3m = EXCLUDED.return_3m,
		   return_6m = EXCLUDED.return_6m,
		   return_1y = EXCLUDED.return_1y,
		   return_to_date = EXCLUDED.return_to_date,
		   benchmark_symbol = EXCLUDED.benchmark_symbol,
		   benchmark_1m = EXCLUDED.benchmark_1m,
		   benchmark_3m = EXCLUDED.benchmark_3m,
		   benchmark_6m = EXCLUDED.benchmark_6m,
		   benchmark_1y = EXCLUDED.benchmark_1y,
		   benchmark_to_date = EXCLUDED.benchmark_to_date,
		   current_price = EXCLUDED.current_price,
		   computed_at = EXCLUDED.computed_at`,
		p.TradeID, p.Symbol, p.ReferenceDate, p.ReferencePrice, p.IsEstimatedDate,
		p.Return1D, p.Return1W, p.Return1M, p.Return3M, p.Return6M, p.Return1Y, p.ReturnToDate,
		p.BenchmarkSymbol, p.Benchmark1M, p.Benchmark3M, p.Benchmark6M, p.Benchmark1Y, p.BenchmarkToDate,
		p.CurrentPrice, p.ComputedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "perf: save performance for trade %d", p.TradeID)
	}
	return nil
}
