package prices

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tradewatch/internal/model"
)

func TestFetchLog_Found(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	fetched := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	earliest := day(2020, 1, 2)
	latest := day(2024, 6, 7)
	mock.ExpectQuery("SELECT symbol, last_fetched_at").
		WithArgs("AAPL").
		WillReturnRows(pgxmock.NewRows([]string{"symbol", "last_fetched_at", "earliest_date", "latest_date", "status", "error"}).
			AddRow("AAPL", &fetched, &earliest, &latest, "ok", (*string)(nil)))

	l, err := NewPGStore(mock).FetchLog(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, model.FetchOK, l.Status)
	assert.Equal(t, latest, *l.LatestDate)
	assert.Empty(t, l.Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchLog_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT symbol, last_fetched_at").
		WithArgs("NOPE").
		WillReturnError(pgx.ErrNoRows)

	l, err := NewPGStore(mock).FetchLog(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, l)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveFetchLog(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	fetched := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	msg := "prices: symbol not found"
	mock.ExpectExec("INSERT INTO price_fetch_log").
		WithArgs("ZZZZ", &fetched, (*time.Time)(nil), (*time.Time)(nil), "not_found", &msg).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewPGStore(mock).SaveFetchLog(context.Background(), model.PriceFetchLog{
		Symbol: "ZZZZ", LastFetchedAt: &fetched, Status: model.FetchNotFound, Error: msg,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPrices(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_price_points"}, priceUpsert.Columns).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	res := NewPGStore(mock).UpsertPrices(context.Background(), bars("AAPL", day(2024, 6, 3), day(2024, 6, 4)), 500)
	assert.Equal(t, int64(2), res.Upserted)
	assert.Equal(t, 1, res.Chunks)
	assert.Zero(t, res.FailedChunks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPrices_FailedChunkCounted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	res := NewPGStore(mock).UpsertPrices(context.Background(), bars("AAPL", day(2024, 6, 3)), 500)
	assert.Zero(t, res.Upserted)
	assert.Equal(t, 1, res.FailedChunks)
	assert.Equal(t, 1, res.FailedRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeSymbols(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT DISTINCT upper\\(ticker\\)").
		WillReturnRows(pgxmock.NewRows([]string{"upper"}).AddRow("AAPL").AddRow("MSFT"))

	syms, err := NewPGStore(mock).TradeSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, syms)
	assert.NoError(t, mock.ExpectationsWereMet())
}
