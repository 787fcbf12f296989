package internal

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/taxlots/config"
	"github.com/vadiminshakov/taxlots/internal/domain"
	"github.com/vadiminshakov/taxlots/internal/services/ingest"
	"github.com/vadiminshakov/taxlots/internal/services/resolver"
	"github.com/vadiminshakov/taxlots/internal/services/taxengine"
	"github.com/vadiminshakov/taxlots/internal/storage/summaries"
	"go.uber.org/zap"
)

// SummaryStore persists computed summaries.
type SummaryStore interface {
	Save(portfolio string, summary domain.TaxSummary) (summaries.Record, error)
}

// Result is the output of one TaxCalculation run.
type Result struct {
	Portfolio string
	Summary   *domain.TaxSummary
	// IngestRejected rows of the input that never reached the engine.
	IngestRejected []ingest.Result
	// RecordID id of the persisted summary, empty without a store.
	RecordID string
}

// TaxCalculation represents one configured calculation: load trades, run the
// engine, persist the summary.
type TaxCalculation struct {
	Config config.Config
	engine *taxengine.Engine
	store  SummaryStore
	logger *zap.Logger
}

// NewTaxCalculation creates a calculation for conf. store may be nil.
func NewTaxCalculation(conf config.Config, store SummaryStore, logger *zap.Logger) *TaxCalculation {
	if logger == nil {
		logger = zap.NewNop()
	}

	prefixes := conf.BasePrefixes
	if len(prefixes) == 0 {
		prefixes = resolver.DefaultBasePrefixes
	}
	suffixes := conf.QuoteSuffixes
	if len(suffixes) == 0 {
		suffixes = resolver.DefaultQuoteSuffixes
	}

	calcLogger := logger.With(zap.String("portfolio", conf.Portfolio))
	engine := taxengine.New(
		resolver.New(prefixes, suffixes),
		calcLogger,
		taxengine.WithOpeningHistory(conf.OpeningHistory),
	)

	return &TaxCalculation{
		Config: conf,
		engine: engine,
		store:  store,
		logger: calcLogger,
	}
}

// Run loads the configured input file and calculates the summary.
func (c *TaxCalculation) Run(ctx context.Context) (*Result, error) {
	f, err := os.Open(c.Config.Input)
	if err != nil {
		return nil, errors.Wrap(err, "open trades input")
	}
	defer f.Close()

	return c.RunReader(ctx, f)
}

// RunReader calculates the summary from a CSV trade export. Loading finishes
// before the engine starts; a cancelled ctx stops the run before anything is
// persisted.
func (c *TaxCalculation) RunReader(ctx context.Context, r io.Reader) (*Result, error) {
	results, err := ingest.ReadCSV(r)
	if err != nil {
		return nil, errors.Wrap(err, "read trades")
	}

	rejected := ingest.Rejected(results)
	for _, row := range rejected {
		c.logger.Warn("trade row rejected", zap.Int("line", row.Line), zap.Error(row.Err))
	}
	txs := ingest.Valid(results)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	period := domain.Period{Start: c.Config.Start, End: c.Config.End}
	s, err := c.engine.Calculate(txs, period, c.Config.TaxRate)
	if err != nil {
		return nil, errors.Wrap(err, "calculate taxes")
	}

	res := &Result{
		Portfolio:      c.Config.Portfolio,
		Summary:        s,
		IngestRejected: rejected,
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.store != nil {
		record, err := c.store.Save(c.Config.Portfolio, *s)
		if err != nil {
			return nil, errors.Wrap(err, "save summary")
		}
		res.RecordID = record.ID
		c.logger.Info("summary saved", zap.String("id", record.ID))
	}

	return res, nil
}
