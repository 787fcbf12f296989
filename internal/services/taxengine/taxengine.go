// Package taxengine computes realized gains and losses of a trade batch with
// FIFO cost-basis matching.
package taxengine

import (
	"runtime"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/taxlots/internal/domain"
	"github.com/vadiminshakov/taxlots/internal/services/holdings"
	"github.com/vadiminshakov/taxlots/internal/services/resolver"
	"github.com/vadiminshakov/taxlots/internal/services/summary"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Option configures an Engine.
type Option func(*Engine)

// WithOpeningHistory lets transactions dated before the period start seed the
// holdings. They produce no events and their fees are not counted.
func WithOpeningHistory(enabled bool) Option {
	return func(e *Engine) {
		e.openingHistory = enabled
	}
}

// WithParallelism sets the maximum number of assets processed concurrently.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// Engine turns ordered transactions into a TaxSummary. It keeps no state
// between calculations and is safe for concurrent use.
type Engine struct {
	resolver       *resolver.Resolver
	logger         *zap.Logger
	openingHistory bool
	parallelism    int
}

// New creates an Engine. A nil resolver falls back to resolver.Default().
func New(r *resolver.Resolver, logger *zap.Logger, opts ...Option) *Engine {
	if r == nil {
		r = resolver.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		resolver:    r,
		logger:      logger,
		parallelism: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// job is one transaction routed to its asset ledger.
type job struct {
	index   int
	asset   string
	tx      domain.Transaction
	opening bool
}

// outcome is what happened to the transaction at the same input position.
type outcome struct {
	event  *domain.TaxEvent
	reject error
}

// Calculate processes txs, which must be in chronological order, for the
// given period and tax rate. Only configuration problems fail the whole
// calculation; malformed transactions are skipped and reported in
// TaxSummary.Rejected.
func (e *Engine) Calculate(txs []domain.Transaction, period domain.Period, taxRate decimal.Decimal) (*domain.TaxSummary, error) {
	if taxRate.IsNegative() {
		return nil, domain.NewConfigurationError(domain.ErrNegativeTaxRate, "tax rate "+taxRate.String())
	}
	if err := period.Validate(); err != nil {
		return nil, domain.NewConfigurationError(err, "period")
	}

	outcomes := make([]outcome, len(txs))
	jobs := e.plan(txs, period, outcomes)

	// fresh per calculation, lots never leak between calls
	index := holdings.NewIndex()

	// workers never fail, the group only bounds concurrency
	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for asset, assetJobs := range jobs {
		ledger := index.Ledger(asset)
		g.Go(func() error {
			for _, j := range assetJobs {
				outcomes[j.index] = e.apply(ledger, j)
			}
			return nil
		})
	}
	_ = g.Wait()

	events := make([]domain.TaxEvent, 0, len(txs))
	var rejected []domain.Rejection
	for i, o := range outcomes {
		switch {
		case o.reject != nil:
			rejected = append(rejected, domain.Rejection{
				Index:       i,
				Transaction: txs[i],
				Reason:      o.reject.Error(),
			})
		case o.event != nil:
			events = append(events, *o.event)
		}
	}

	s := summary.Build(events, taxRate)
	s.Period = period
	s.Rejected = rejected

	e.logger.Info("tax summary calculated",
		zap.String("period", period.String()),
		zap.Int("transactions", len(txs)),
		zap.Int("events", len(s.Events)),
		zap.Int("rejected", len(s.Rejected)),
		zap.Int("flagged", len(s.Flagged())),
		zap.String("net_capital_gains", s.NetCapitalGains().String()),
		zap.String("tax_owed", s.TaxOwed.String()))

	return &s, nil
}

// plan validates and filters the batch and groups the remaining transactions
// by asset, keeping input order inside each group.
func (e *Engine) plan(txs []domain.Transaction, period domain.Period, outcomes []outcome) map[string][]job {
	jobs := make(map[string][]job)
	var last time.Time

	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			e.reject(outcomes, i, tx, err)
			continue
		}
		if tx.Date.Before(last) {
			e.reject(outcomes, i, tx, &domain.ValidationError{
				Field:  "date",
				Reason: "transaction is out of chronological order",
			})
			continue
		}
		last = tx.Date

		opening := false
		switch {
		case tx.Date.After(period.End):
			e.logger.Debug("transaction after period skipped", zap.Int("index", i), zap.String("pair", tx.Pair))
			continue
		case tx.Date.Before(period.Start):
			if !e.openingHistory {
				e.logger.Debug("transaction before period skipped", zap.Int("index", i), zap.String("pair", tx.Pair))
				continue
			}
			opening = true
		}

		asset := e.resolver.Resolve(tx.Pair)
		jobs[asset] = append(jobs[asset], job{index: i, asset: asset, tx: tx, opening: opening})
	}

	return jobs
}

func (e *Engine) reject(outcomes []outcome, i int, tx domain.Transaction, err error) {
	e.logger.Warn("transaction skipped",
		zap.Int("index", i),
		zap.String("pair", tx.Pair),
		zap.Time("date", tx.Date),
		zap.Error(err))
	outcomes[i] = outcome{reject: err}
}

// apply runs one transaction against its asset ledger. Only the ledger of
// j.asset is touched, so different assets can be applied concurrently.
func (e *Engine) apply(ledger *holdings.Ledger, j job) outcome {
	tx := j.tx

	switch tx.Side {
	case domain.SideBuy:
		if err := ledger.Add(tx.Amount, tx.Price, tx.Date); err != nil {
			e.logger.Warn("buy skipped", zap.Int("index", j.index), zap.String("asset", j.asset), zap.Error(err))
			return outcome{reject: err}
		}
		if j.opening {
			return outcome{}
		}
		return outcome{event: &domain.TaxEvent{
			Date:      tx.Date,
			Pair:      tx.Pair,
			Asset:     j.asset,
			Type:      domain.SideBuy,
			Amount:    tx.Amount,
			Price:     tx.Price,
			Fee:       tx.Fee,
			FeeAsset:  tx.FeeAsset,
			Shortfall: decimal.Zero,
		}}

	case domain.SideSell:
		c := ledger.Consume(tx.Amount)
		if c.Insufficient() {
			e.logger.Warn("sell exceeds recorded holdings, shortfall has zero cost basis",
				zap.Int("index", j.index),
				zap.String("asset", j.asset),
				zap.Bool("opening", j.opening),
				zap.String("amount", tx.Amount.String()),
				zap.String("shortfall", c.Shortfall.String()))
		}
		if j.opening {
			return outcome{}
		}

		gainLoss := tx.Proceeds().Sub(c.CostBasis)
		event := &domain.TaxEvent{
			Date:      tx.Date,
			Pair:      tx.Pair,
			Asset:     j.asset,
			Type:      domain.SideSell,
			Amount:    tx.Amount,
			Price:     tx.Price,
			Fee:       tx.Fee,
			FeeAsset:  tx.FeeAsset,
			CostBasis: decimal.NewNullDecimal(c.CostBasis),
			GainLoss:  decimal.NewNullDecimal(gainLoss),
			Matches:   c.Breakdown,
			Shortfall: c.Shortfall,
		}
		if c.Insufficient() {
			event.Flag = domain.EventFlagInsufficientHoldings
		}
		return outcome{event: event}
	}

	// unreachable after validation
	return outcome{reject: &domain.ValidationError{Field: "side", Reason: "unknown side"}}
}
