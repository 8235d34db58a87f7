package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tradewatch/internal/model"
)

func documentColumns() []string {
	return []string{"id", "source", "external_id", "url", "filer_name", "office", "filing_year", "filed_at",
		"filed_at_estimated", "content_hash", "status", "error_message", "ingested_at"}
}

// saveDocumentArgs matches the ten columns written by the document upsert.
func saveDocumentArgs() []any {
	args := make([]any, 10)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestGetDocument_Found(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	year := 2024
	filed := time.Date(2024, 3, 21, 0, 0, 0, 0, time.UTC)
	hash := "abc123"
	ingested := time.Date(2024, 3, 22, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, source, external_id").
		WithArgs(model.SourceHouseClerk, "20024542").
		WillReturnRows(pgxmock.NewRows(documentColumns()).AddRow(
			int64(9), model.SourceHouseClerk, "20024542", "https://x/20024542.pdf", "Doe, Jane", "CA12",
			&year, &filed, false, &hash, "parsed", (*string)(nil), ingested,
		))

	doc, err := NewPGStore(mock).GetDocument(context.Background(), model.SourceHouseClerk, "20024542")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, int64(9), doc.ID)
	assert.Equal(t, 2024, doc.FilingYear)
	assert.Equal(t, "abc123", doc.ContentHash)
	assert.Equal(t, model.DocumentParsed, doc.Status)
	assert.Empty(t, doc.ErrorMessage)
	assert.Equal(t, filed, *doc.FiledAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocument_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, source, external_id").
		WithArgs(model.SourceHouseClerk, "missing").
		WillReturnError(pgx.ErrNoRows)

	doc, err := NewPGStore(mock).GetDocument(context.Background(), model.SourceHouseClerk, "missing")
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveParsed_ReplacesTrades(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	traded := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	doc := &model.SourceDocument{
		Source: model.SourceHouseClerk, ExternalID: "20024542", FilerName: "Doe, Jane",
		Office: "CA12", FilingYear: 2024, ContentHash: "abc", RawText: "text",
	}
	trades := []model.Trade{
		{
			AssetName: "Apple Inc.", Ticker: "AAPL", TradeType: model.TradeBuy, TradeDate: &traded,
			AmountMin: decimal.NewNullDecimal(decimal.NewFromInt(15001)),
			AmountMax: decimal.NewNullDecimal(decimal.NewFromInt(50000)),
		},
		{AssetName: "Vanguard Fund", TradeType: model.TradeExchange},
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO source_documents").
		WithArgs(saveDocumentArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("DELETE FROM trades").
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"trades"}, tradeColumns).WillReturnResult(2)
	mock.ExpectCommit()

	n, err := NewPGStore(mock).SaveParsed(context.Background(), doc, trades)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(7), doc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveParsed_CopyFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO source_documents").
		WithArgs(saveDocumentArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("DELETE FROM trades").WithArgs(int64(7)).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"trades"}, tradeColumns).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	doc := &model.SourceDocument{Source: model.SourceHouseClerk, ExternalID: "1"}
	_, err = NewPGStore(mock).SaveParsed(context.Background(), doc, []model.Trade{{TradeType: model.TradeBuy}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert trades")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveParsed_NoTrades(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO source_documents").
		WithArgs(saveDocumentArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec("DELETE FROM trades").WithArgs(int64(3)).WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	doc := &model.SourceDocument{Source: model.SourceHouseClerk, ExternalID: "1"}
	n, err := NewPGStore(mock).SaveParsed(context.Background(), doc, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO source_documents").
		WithArgs(model.SourceHouseClerk, "1", "https://x/1.pdf", "Doe, Jane", "CA12", pgxmock.AnyArg(),
			pgxmock.AnyArg(), false, pgxmock.AnyArg(), "retrieval: status 404").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewPGStore(mock).SaveError(context.Background(), &model.SourceDocument{
		Source: model.SourceHouseClerk, ExternalID: "1", URL: "https://x/1.pdf",
		FilerName: "Doe, Jane", Office: "CA12", ErrorMessage: "retrieval: status 404",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlinkedFilers(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT DISTINCT d.filer_name").
		WillReturnRows(pgxmock.NewRows([]string{"filer_name", "office"}).
			AddRow("Doe, Jane", "CA12").
			AddRow("Roe, Richard", "TX07"))

	refs, err := NewPGStore(mock).UnlinkedFilers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []FilerRef{{"Doe, Jane", "CA12"}, {"Roe, Richard", "TX07"}}, refs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertOfficial(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	juris, sub := "CA", "12"
	mock.ExpectQuery("INSERT INTO officials").
		WithArgs("Doe, Jane", model.ChamberHouse, &juris, &sub).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))

	o := &model.Official{Name: "Doe, Jane", Chamber: model.ChamberHouse, Jurisdiction: "CA", SubJurisdiction: "12"}
	id, err := NewPGStore(mock).UpsertOfficial(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	assert.Equal(t, int64(5), o.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkTrades(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	names := []string{"Doe, Hon.. Jane", "Doe, Jane"}
	mock.ExpectExec("UPDATE trades t SET official_id").
		WithArgs(int64(5), names).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := NewPGStore(mock).LinkTrades(context.Background(), 5, names)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
