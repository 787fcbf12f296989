package taxengine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/taxlots/internal/domain"
	"github.com/vadiminshakov/taxlots/internal/services/resolver"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var year2024 = domain.CalendarYear(2024, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(n int) time.Time {
	return time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
}

func tx(date time.Time, pair string, side domain.Side, amount, price, fee string) domain.Transaction {
	return domain.Transaction{
		Date:     date,
		Pair:     pair,
		Side:     side,
		Amount:   dec(amount),
		Price:    dec(price),
		Fee:      dec(fee),
		FeeAsset: "USDT",
	}
}

func newEngine(opts ...Option) *Engine {
	return New(resolver.Default(), zap.NewNop(), opts...)
}

func calculate(t *testing.T, e *Engine, txs []domain.Transaction, rate string) *domain.TaxSummary {
	t.Helper()
	s, err := e.Calculate(txs, year2024, dec(rate))
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func TestEngine_BuyOnlyHasNoGainsOrLosses(t *testing.T) {
	txs := []domain.Transaction{
		tx(day(1), "BTCUSDT", domain.SideBuy, "1", "10000", "10"),
		tx(day(2), "BTCUSDT", domain.SideBuy, "0.5", "12000", "6"),
		tx(day(3), "BTCUSDT", domain.SideBuy, "2", "9000", "18"),
	}

	s := calculate(t, newEngine(), txs, "0.2")

	assert.True(t, s.TotalCapitalGains.IsZero())
	assert.True(t, s.TotalCapitalLosses.IsZero())
	assert.True(t, s.TaxOwed.IsZero())
	assert.True(t, dec("34").Equal(s.TotalFees))
	require.Len(t, s.Events, 3)
	for _, e := range s.Events {
		assert.Equal(t, domain.SideBuy, e.Type)
		assert.False(t, e.CostBasis.Valid)
		assert.False(t, e.GainLoss.Valid)
	}
}

func TestEngine_SellScenarios(t *testing.T) {
	tests := []struct {
		name      string
		txs       []domain.Transaction
		wantBasis string
		wantGain  string
		wantLots  int
	}{
		{
			name: "oldest lot first",
			txs: []domain.Transaction{
				tx(day(1), "BTCUSDT", domain.SideBuy, "1", "10000", "0"),
				tx(day(2), "BTCUSDT", domain.SideBuy, "1", "20000", "0"),
				tx(day(3), "BTCUSDT", domain.SideSell, "1", "30000", "0"),
			},
			wantBasis: "10000",
			wantGain:  "20000",
			wantLots:  1,
		},
		{
			name: "partial lot",
			txs: []domain.Transaction{
				tx(day(1), "BTCUSDT", domain.SideBuy, "2", "10000", "0"),
				tx(day(2), "BTCUSDT", domain.SideSell, "1", "15000", "0"),
			},
			wantBasis: "10000",
			wantGain:  "5000",
			wantLots:  1,
		},
		{
			name: "spans lot boundary",
			txs: []domain.Transaction{
				tx(day(1), "BTCUSDT", domain.SideBuy, "1", "10000", "0"),
				tx(day(2), "BTCUSDT", domain.SideBuy, "1", "20000", "0"),
				tx(day(3), "BTCUSDT", domain.SideSell, "1.5", "25000", "0"),
			},
			// 1 * 10000 + 0.5 * 20000, proceeds 37500
			wantBasis: "20000",
			wantGain:  "17500",
			wantLots:  2,
		},
		{
			name: "loss",
			txs: []domain.Transaction{
				tx(day(1), "ETHUSDT", domain.SideBuy, "2", "3000", "0"),
				tx(day(2), "ETHUSDT", domain.SideSell, "2", "2500", "0"),
			},
			wantBasis: "6000",
			wantGain:  "-1000",
			wantLots:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := calculate(t, newEngine(), tt.txs, "0.2")

			require.Len(t, s.Events, len(tt.txs))
			last := s.Events[len(s.Events)-1]
			require.Equal(t, domain.SideSell, last.Type)
			require.True(t, last.CostBasis.Valid)
			require.True(t, last.GainLoss.Valid)
			assert.True(t, dec(tt.wantBasis).Equal(last.CostBasis.Decimal), "basis %s", last.CostBasis.Decimal)
			assert.True(t, dec(tt.wantGain).Equal(last.GainLoss.Decimal), "gain %s", last.GainLoss.Decimal)
			assert.False(t, last.NeedsReview())
			assert.Len(t, last.Matches, tt.wantLots)

			matched := decimal.Zero
			for _, m := range last.Matches {
				matched = matched.Add(m.Amount)
			}
			assert.True(t, last.Amount.Equal(matched), "matched %s of %s", matched, last.Amount)
		})
	}
}

func TestEngine_InsufficientHoldingsFlagged(t *testing.T) {
	txs := []domain.Transaction{
		tx(day(1), "SOLUSDT", domain.SideSell, "1", "150", "0.1"),
	}

	s := calculate(t, newEngine(), txs, "0.2")

	require.Len(t, s.Events, 1)
	e := s.Events[0]
	assert.True(t, e.CostBasis.Decimal.IsZero())
	assert.True(t, dec("150").Equal(e.GainLoss.Decimal))
	assert.True(t, dec("1").Equal(e.Shortfall))
	assert.Equal(t, domain.EventFlagInsufficientHoldings, e.Flag)
	assert.Len(t, s.Flagged(), 1)
	assert.Empty(t, s.Rejected)
	assert.True(t, dec("30").Equal(s.TaxOwed))
}

func TestEngine_PartialShortfall(t *testing.T) {
	txs := []domain.Transaction{
		tx(day(1), "ETHUSDT", domain.SideBuy, "1", "2000", "0"),
		tx(day(2), "ETHUSDT", domain.SideSell, "3", "3000", "0"),
	}

	s := calculate(t, newEngine(), txs, "0.2")

	sellEvent := s.Events[1]
	assert.True(t, dec("2000").Equal(sellEvent.CostBasis.Decimal))
	assert.True(t, dec("7000").Equal(sellEvent.GainLoss.Decimal))
	assert.True(t, dec("2").Equal(sellEvent.Shortfall))
	assert.True(t, sellEvent.NeedsReview())
}

func TestEngine_LossYearOwesNothing(t *testing.T) {
	txs := []domain.Transaction{
		tx(day(1), "BTCUSDT", domain.SideBuy, "1", "40000", "0"),
		tx(day(2), "ETHUSDT", domain.SideBuy, "1", "2000", "0"),
		tx(day(3), "BTCUSDT", domain.SideSell, "1", "30000", "0"),
		tx(day(4), "ETHUSDT", domain.SideSell, "1", "2500", "0"),
	}

	s := calculate(t, newEngine(), txs, "0.2")

	assert.True(t, dec("500").Equal(s.TotalCapitalGains))
	assert.True(t, dec("10000").Equal(s.TotalCapitalLosses))
	assert.True(t, s.NetCapitalGains().IsNegative())
	assert.True(t, s.TaxOwed.IsZero())
}

func TestEngine_PreservesInputOrderAcrossAssets(t *testing.T) {
	pairs := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "ADAUSDT", "XRP_USDT", "DOGEUSDT"}
	var txs []domain.Transaction
	for i := 0; i < 120; i++ {
		pair := pairs[i%len(pairs)]
		side := domain.SideBuy
		if (i/len(pairs))%3 == 2 {
			side = domain.SideSell
		}
		txs = append(txs, tx(day(1).Add(time.Duration(i)*time.Minute), pair, side, "1", decimal.NewFromInt(int64(100+i)).String(), "0"))
	}

	s := calculate(t, newEngine(WithParallelism(4)), txs, "0.2")

	require.Len(t, s.Events, len(txs))
	for i, e := range s.Events {
		assert.Equal(t, txs[i].Date, e.Date)
		assert.Equal(t, txs[i].Pair, e.Pair)
		assert.Equal(t, txs[i].Side, e.Type)
	}
	assert.Equal(t, "XRP", s.Events[4].Asset)
	assert.Equal(t, "DOGE", s.Events[5].Asset)
}

func TestEngine_IdempotentOutput(t *testing.T) {
	txs := []domain.Transaction{
		tx(day(1), "BTCUSDT", domain.SideBuy, "1", "10000", "1"),
		tx(day(2), "ETHUSDT", domain.SideBuy, "3", "2000", "0.5"),
		tx(day(3), "BTCUSDT", domain.SideBuy, "1", "20000", "1"),
		tx(day(4), "BTCUSDT", domain.SideSell, "1.5", "25000", "2"),
		tx(day(5), "ETHUSDT", domain.SideSell, "4", "1500", "0.5"),
	}
	e := newEngine()

	first := calculate(t, e, txs, "0.2")
	second := calculate(t, e, txs, "0.2")

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	// lots left by the first run must not leak into the second
	assert.True(t, dec("20000").Equal(second.Events[3].CostBasis.Decimal))
}

func TestEngine_NetEqualsGainsMinusLosses(t *testing.T) {
	txs := []domain.Transaction{
		tx(day(1), "BTCUSDT", domain.SideBuy, "2", "10000", "0"),
		tx(day(2), "BTCUSDT", domain.SideSell, "0.7", "12000", "0"),
		tx(day(3), "BTCUSDT", domain.SideSell, "0.9", "8000", "0"),
		tx(day(4), "LINKUSDT", domain.SideSell, "10", "15", "0"),
		tx(day(5), "BTCUSDT", domain.SideSell, "0.4", "10000", "0"),
	}

	for _, rate := range []string{"0", "0.15", "0.2", "0.55"} {
		s := calculate(t, newEngine(), txs, rate)
		assert.True(t, s.NetCapitalGains().Equal(s.TotalCapitalGains.Sub(s.TotalCapitalLosses)))
		assert.False(t, s.TaxOwed.IsNegative())
	}
}

func TestEngine_RejectsInvalidTransactions(t *testing.T) {
	txs := []domain.Transaction{
		tx(day(1), "BTCUSDT", domain.SideBuy, "1", "10000", "0"),
		tx(day(2), "BTCUSDT", domain.SideBuy, "0", "10000", "0"),
		tx(day(3), "BTCUSDT", domain.SideBuy, "1", "-5", "0"),
		tx(day(4), "", domain.SideBuy, "1", "5", "0"),
		tx(day(5), "BTCUSDT", domain.SideUnknown, "1", "5", "0"),
		tx(day(6), "BTCUSDT", domain.SideSell, "1", "15000", "0"),
		tx(day(2), "BTCUSDT", domain.SideBuy, "1", "1", "0"),
	}

	s := calculate(t, newEngine(), txs, "0.2")

	require.Len(t, s.Events, 2)
	assert.True(t, dec("5000").Equal(s.Events[1].GainLoss.Decimal))
	require.Len(t, s.Rejected, 5)
	indexes := make([]int, 0, len(s.Rejected))
	for _, r := range s.Rejected {
		indexes = append(indexes, r.Index)
		assert.NotEmpty(t, r.Reason)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 6}, indexes)
	assert.Contains(t, s.Rejected[4].Reason, "chronological")
}

func TestEngine_ConfigurationErrors(t *testing.T) {
	e := newEngine()
	txs := []domain.Transaction{tx(day(1), "BTCUSDT", domain.SideBuy, "1", "1", "0")}

	_, err := e.Calculate(txs, year2024, dec("-0.1"))
	require.Error(t, err)
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, domain.ErrNegativeTaxRate)

	inverted := domain.Period{Start: year2024.End, End: year2024.Start}
	_, err = e.Calculate(txs, inverted, dec("0.2"))
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
	assert.ErrorAs(t, err, &cfgErr)
}

func TestEngine_FiltersToPeriod(t *testing.T) {
	before := time.Date(2023, time.December, 15, 0, 0, 0, 0, time.UTC)
	after := time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx(before, "BTCUSDT", domain.SideBuy, "1", "10000", "3"),
		tx(day(10), "BTCUSDT", domain.SideSell, "1", "30000", "2"),
		tx(after, "BTCUSDT", domain.SideSell, "1", "50000", "1"),
	}

	t.Run("period only", func(t *testing.T) {
		s := calculate(t, newEngine(), txs, "0.2")

		require.Len(t, s.Events, 1)
		assert.True(t, s.Events[0].NeedsReview())
		assert.True(t, dec("30000").Equal(s.TotalCapitalGains))
		assert.True(t, dec("2").Equal(s.TotalFees))
		assert.Equal(t, year2024, s.Period)
	})

	t.Run("opening history seeds lots", func(t *testing.T) {
		s := calculate(t, newEngine(WithOpeningHistory(true)), txs, "0.2")

		require.Len(t, s.Events, 1)
		assert.False(t, s.Events[0].NeedsReview())
		assert.True(t, dec("10000").Equal(s.Events[0].CostBasis.Decimal))
		assert.True(t, dec("20000").Equal(s.TotalCapitalGains))
		assert.True(t, dec("2").Equal(s.TotalFees))
		assert.True(t, dec("4000").Equal(s.TaxOwed))
	})
}

func TestEngine_OpeningShortfallLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e := New(resolver.Default(), zap.New(core), WithOpeningHistory(true))

	before := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx(before, "BTCUSDT", domain.SideSell, "1", "20000", "0"),
		tx(day(1), "BTCUSDT", domain.SideBuy, "0.01", "17", "0"),
		tx(day(2), "BTCUSDT", domain.SideSell, "0.01", "30", "0"),
	}

	s := calculate(t, e, txs, "0.2")

	require.Len(t, s.Events, 2)
	assert.Empty(t, s.Rejected)
	assert.False(t, s.Events[1].NeedsReview())
	assert.True(t, dec("0.17").Equal(s.Events[1].CostBasis.Decimal))
	assert.True(t, dec("0.13").Equal(s.Events[1].GainLoss.Decimal))

	warnings := logs.FilterMessage("sell exceeds recorded holdings, shortfall has zero cost basis").All()
	require.Len(t, warnings, 1)
	fields := warnings[0].ContextMap()
	assert.Equal(t, true, fields["opening"])
	assert.Equal(t, "1", fields["shortfall"])
	assert.Equal(t, int64(0), fields["index"])
}

func TestEngine_FeesCountedOnBothSides(t *testing.T) {
	txs := []domain.Transaction{
		tx(day(1), "BTCUSDT", domain.SideBuy, "1", "10000", "7.5"),
		tx(day(2), "BTCUSDT", domain.SideSell, "1", "10000", "2.5"),
	}

	s := calculate(t, newEngine(), txs, "0.2")

	assert.True(t, dec("10").Equal(s.TotalFees))
	assert.True(t, s.NetCapitalGains().IsZero())
}

func TestEngine_ConcurrentCalculations(t *testing.T) {
	e := newEngine()
	txs := []domain.Transaction{
		tx(day(1), "BTCUSDT", domain.SideBuy, "1", "10000", "0"),
		tx(day(2), "BTCUSDT", domain.SideSell, "1", "30000", "0"),
	}

	results := make(chan *domain.TaxSummary, 8)
	for i := 0; i < cap(results); i++ {
		go func() {
			s, err := e.Calculate(txs, year2024, dec("0.2"))
			if err != nil {
				results <- nil
				return
			}
			results <- s
		}()
	}

	for i := 0; i < cap(results); i++ {
		s := <-results
		require.NotNil(t, s)
		assert.True(t, dec("20000").Equal(s.TotalCapitalGains))
		assert.False(t, s.Events[1].NeedsReview())
	}
}
