// Command taxlots calculates realized capital gains of crypto trades with
// FIFO cost-basis matching and prints a tax summary per configured portfolio.
// It can be configured via YAML configuration files or command-line arguments.
//
// Usage:
//
//	taxlots --config taxlots.yaml
//	taxlots --input trades.csv --year 2024 --taxrate 0.2
//	taxlots --input trades.csv --start 2024-04-01 --end 2025-03-31 --taxrate 0.15 --wal ./wal/summaries
package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/taxlots/config"
	"github.com/vadiminshakov/taxlots/internal"
	"github.com/vadiminshakov/taxlots/internal/render"
	"github.com/vadiminshakov/taxlots/internal/storage/summaries"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configs, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := run(configs, logger); err != nil {
		logger.Error("taxlots failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(configs []config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stores := make(map[string]*summaries.WALStore)
	defer func() {
		for _, s := range stores {
			if err := s.Close(); err != nil {
				logger.Error("failed to close summary store", zap.Error(err))
			}
		}
	}()

	calculations := make([]*internal.TaxCalculation, 0, len(configs))
	for _, conf := range configs {
		var store internal.SummaryStore
		if conf.WALDir != "" {
			s, ok := stores[conf.WALDir]
			if !ok {
				var err error
				s, err = summaries.NewWALStore(conf.WALDir)
				if err != nil {
					return errors.Wrapf(err, "open summary store %s", conf.WALDir)
				}
				stores[conf.WALDir] = s
			}
			store = s
		}
		calculations = append(calculations, internal.NewTaxCalculation(conf, store, logger))
	}

	// portfolios own disjoint state, run them side by side
	results := make([]*internal.Result, len(calculations))
	g, gctx := errgroup.WithContext(ctx)
	for i, calc := range calculations {
		g.Go(func() error {
			res, err := calc.Run(gctx)
			if err != nil {
				logger.Error("tax calculation failed", zap.String("portfolio", calc.Config.Portfolio), zap.Error(err))
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, res := range results {
		if err := render.Summary(os.Stdout, res.Portfolio, res.Summary); err != nil {
			return errors.Wrap(err, "print summary")
		}
	}
	return nil
}
