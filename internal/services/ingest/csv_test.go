package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/taxlots/internal/domain"
)

const exportCSV = `date,pair,side,amount,price,fee,feeCoin
2024-02-01 10:00:00,BTCUSDT,BUY,0.5,"42,000.50",0.0005,BTC
2024-01-15T08:30:00Z,ethusdt,buy,2,2500,1.2,USDT

2024-03-01 12:00:00,BTCUSDT,SELL,0.25,61000,3.1,USDT
not-a-date,BTCUSDT,SELL,1,1,0,USDT
2024-03-02,BTCUSDT,TRANSFER,1,1,0,USDT
2024-03-03,BTCUSDT,SELL,-1,1,0,USDT
2024-03-04,SOLUSDT,SELL,abc,1,0,USDT
2024-03-05,SOLUSDT,SELL,3,150,,
`

func TestReadCSV(t *testing.T) {
	results, err := ReadCSV(strings.NewReader(exportCSV))
	require.NoError(t, err)
	require.Len(t, results, 8)

	first := results[0]
	require.True(t, first.Valid())
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, domain.SideBuy, first.Transaction.Side)
	assert.True(t, decimal.RequireFromString("42000.50").Equal(first.Transaction.Price))
	assert.Equal(t, "BTC", first.Transaction.FeeAsset)
	assert.Equal(t, time.Date(2024, time.February, 1, 10, 0, 0, 0, time.UTC), first.Transaction.Date)

	assert.Equal(t, "ETHUSDT", results[1].Transaction.Pair)
	assert.Equal(t, 5, results[2].Line)

	rejected := Rejected(results)
	require.Len(t, rejected, 4)
	fields := make([]string, 0, len(rejected))
	for _, r := range rejected {
		var vErr *domain.ValidationError
		require.ErrorAs(t, r.Err, &vErr, "line %d", r.Line)
		fields = append(fields, vErr.Field)
	}
	assert.Equal(t, []string{"date", "side", "amount", "amount"}, fields)

	last := results[7]
	require.True(t, last.Valid())
	assert.True(t, last.Transaction.Fee.IsZero())
	assert.Empty(t, last.Transaction.FeeAsset)
}

func TestReadCSV_CommaSeparators(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
		valid  bool
	}{
		{name: "thousands with fraction", amount: `"1,234.5"`, want: "1234.5", valid: true},
		{name: "millions", amount: `"12,345,678"`, want: "12345678", valid: true},
		{name: "decimal comma", amount: `"0,5"`},
		{name: "short group", amount: `"1,23"`},
		{name: "long leading group", amount: `"1234,567"`},
		{name: "comma in fraction", amount: `"1.234,5"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := "date,pair,side,amount,price,fee\n2024-01-02,BTCUSDT,BUY," + tt.amount + ",10000,0\n"
			results, err := ReadCSV(strings.NewReader(data))
			require.NoError(t, err)
			require.Len(t, results, 1)

			if !tt.valid {
				var vErr *domain.ValidationError
				require.ErrorAs(t, results[0].Err, &vErr)
				assert.Equal(t, "amount", vErr.Field)
				assert.Len(t, Rejected(results), 1)
				return
			}
			require.True(t, results[0].Valid())
			assert.True(t, decimal.RequireFromString(tt.want).Equal(results[0].Transaction.Amount))
		})
	}
}

func TestValid_SortsByDate(t *testing.T) {
	results, err := ReadCSV(strings.NewReader(exportCSV))
	require.NoError(t, err)

	txs := Valid(results)

	require.Len(t, txs, 4)
	assert.Equal(t, "ETHUSDT", txs[0].Pair)
	assert.Equal(t, "BTCUSDT", txs[1].Pair)
	assert.Equal(t, domain.SideSell, txs[2].Side)
	assert.Equal(t, "SOLUSDT", txs[3].Pair)
	for i := 1; i < len(txs); i++ {
		assert.False(t, txs[i].Date.Before(txs[i-1].Date))
	}
}

func TestReadCSV_HeaderAliases(t *testing.T) {
	input := "\ufeffDate(UTC),Market,Type,Executed,Price,Commission,Commission Asset\n" +
		"2024-05-01 00:00:00,ADAUSDT,SELL,100,0.45,0.1,USDT\n"

	results, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Valid())
	assert.Equal(t, "ADAUSDT", results[0].Transaction.Pair)
	assert.Equal(t, "USDT", results[0].Transaction.FeeAsset)
	assert.True(t, decimal.RequireFromString("0.1").Equal(results[0].Transaction.Fee))
}

func TestReadCSV_MissingColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("date,pair,side,amount\n2024-01-01,BTCUSDT,BUY,1\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "price")

	_, err = ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMissingColumn)
}
