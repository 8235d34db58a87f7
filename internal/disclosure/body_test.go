package disclosure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tradewatch/internal/model"
)

const samplePTR = `Clerk of the House of Representatives • Legislative Resource Center
PERIODIC TRANSACTION REPORT
Filing ID #20024542
Name: Hon. Jane Doe
Status: Member
State/District: CA12
ID Owner Asset Transaction Date Notification Amount Cap.
Type Date Gains >
$200?
SP Apple Inc. (AAPL) [ST] P 03/14/2024 03/20/2024 $15,001 - $50,000
F S : New
Microsoft Corporation (MSFT) [ST] S (partial) 02/01/2024 02/05/2024 $1,001 -
$15,000
JT Vanguard Total Bond Fund [MF] Exchange 01/10/2024 01/12/2024 Over $50,000,000
* For the complete list of asset type abbreviations, please visit https://fd.house.gov/reference/asset-type-codes.aspx.
I CERTIFY that the statements I have made on the attached Periodic Transaction Report are true.
Digitally Signed: Hon. Jane Doe , 03/21/2024
`

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseTrades_SamplePTR(t *testing.T) {
	trades := ParseTrades(samplePTR)
	require.Len(t, trades, 3)

	apple := trades[0]
	assert.Equal(t, "AAPL", apple.Ticker)
	assert.Equal(t, model.TradeBuy, apple.TradeType)
	require.NotNil(t, apple.TradeDate)
	assert.Equal(t, day(2024, 3, 14), *apple.TradeDate)
	assert.Equal(t, "15001", apple.AmountMin.Decimal.String())
	assert.Equal(t, "50000", apple.AmountMax.Decimal.String())
	assert.Equal(t, "Apple Inc. (AAPL) [ST]", apple.AssetName)

	msft := trades[1]
	assert.Equal(t, "MSFT", msft.Ticker)
	assert.Equal(t, model.TradeSell, msft.TradeType)
	assert.Equal(t, day(2024, 2, 1), *msft.TradeDate)
	assert.Equal(t, "1001", msft.AmountMin.Decimal.String())
	assert.Equal(t, "15000", msft.AmountMax.Decimal.String())
	assert.Equal(t, "Microsoft Corporation (MSFT) [ST]", msft.AssetName)

	fund := trades[2]
	assert.Empty(t, fund.Ticker, "asset-type code in brackets is not a ticker")
	assert.Equal(t, model.TradeExchange, fund.TradeType)
	assert.Equal(t, "50000000", fund.AmountMin.Decimal.String())
	assert.False(t, fund.AmountMax.Valid)
	assert.Equal(t, "Vanguard Total Bond Fund [MF]", fund.AssetName)
}

func TestParseTrades_ContextWindow(t *testing.T) {
	trades := ParseTrades("Apple Inc (AAPL)\nP 03/14/2024 $1,001 - $15,000\n")
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, model.TradeBuy, tr.TradeType)
	require.NotNil(t, tr.TradeDate)
	assert.Equal(t, "2024-03-14", tr.TradeDate.Format(time.DateOnly))
	assert.Equal(t, "AAPL", tr.Ticker)
	assert.Equal(t, "Apple", tr.AssetName)
}

func TestParseTrades_TradeTypeTokens(t *testing.T) {
	tests := []struct {
		token string
		want  model.TradeType
	}{
		{"P", model.TradeBuy},
		{"purchase", model.TradeBuy},
		{"S", model.TradeSell},
		{"Sale", model.TradeSell},
		{"SELL", model.TradeSell},
		{"exchange", model.TradeExchange},
		{"E", model.TradeExchange},
		{"gift", model.TradeOther},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			trades := ParseTrades("Macy's Inc. (M) [ST] " + tt.token + " 05/01/2024 $1,001 - $15,000")
			require.Len(t, trades, 1)
			assert.Equal(t, tt.want, trades[0].TradeType)
		})
	}
}

func TestParseTrades_ExchangeCodeOnAnchorLine(t *testing.T) {
	text := "Filer notes S\n" +
		"Alphabet Inc. - Class A (GOOGL) [ST] E 01/02/2024 Over $50,000,000\n" +
		"S\n"

	trades := ParseTrades(text)
	require.Len(t, trades, 1)
	assert.Equal(t, "GOOGL", trades[0].Ticker)
	assert.Equal(t, model.TradeExchange, trades[0].TradeType)
}

func TestParseTrades_BareECodeOnNeighbourIgnored(t *testing.T) {
	text := "E\nMacy's Inc. (M) [ST] 05/01/2024 $1,001 - $15,000"

	trades := ParseTrades(text)
	require.Len(t, trades, 1)
	assert.Equal(t, model.TradeOther, trades[0].TradeType)
}

func TestParseTrades_InvalidDateIgnored(t *testing.T) {
	trades := ParseTrades("Tesla Inc (TSLA) P 13/45/2024 $1,001 - $15,000")
	require.Len(t, trades, 1)
	assert.Nil(t, trades[0].TradeDate)
}

func TestParseTrades_NoAnchors(t *testing.T) {
	assert.Empty(t, ParseTrades("Name: Hon. Jane Doe\nnothing to see here\n$12 - $40"))
}

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) ExtractText(context.Context, []byte) (string, error) {
	return s.text, s.err
}

func TestBodyParser_SanitizesAndTruncates(t *testing.T) {
	p := &BodyParser{
		Extractor:    stubExtractor{text: "Nvidia Corp (NVDA) P 01/02/2024 $1,001 - $15,000\x00\n" + "trailer text"},
		RawTextLimit: 20,
	}
	doc, err := p.Parse(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	require.Len(t, doc.Trades, 1)
	assert.Equal(t, "NVDA", doc.Trades[0].Ticker)
	assert.NotContains(t, doc.Trades[0].RawLine, "\x00")
	assert.Len(t, doc.RawText, 20)
}

func TestBodyParser_ExtractError(t *testing.T) {
	p := &BodyParser{Extractor: stubExtractor{err: errors.New("pdftotext: broken xref")}}
	_, err := p.Parse(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken xref")
}
