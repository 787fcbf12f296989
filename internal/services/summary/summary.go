// Package summary folds tax events into period totals.
package summary

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/taxlots/internal/domain"
)

// Build aggregates events into a TaxSummary. The events slice is owned by
// the returned summary.
func Build(events []domain.TaxEvent, taxRate decimal.Decimal) domain.TaxSummary {
	s := domain.TaxSummary{
		TaxRate:            taxRate,
		TotalCapitalGains:  decimal.Zero,
		TotalCapitalLosses: decimal.Zero,
		TotalFees:          decimal.Zero,
		TaxOwed:            decimal.Zero,
		Events:             events,
	}
	if s.Events == nil {
		s.Events = []domain.TaxEvent{}
	}

	for _, e := range events {
		s.TotalFees = s.TotalFees.Add(e.Fee)

		if !e.GainLoss.Valid {
			continue
		}
		switch {
		case e.GainLoss.Decimal.IsPositive():
			s.TotalCapitalGains = s.TotalCapitalGains.Add(e.GainLoss.Decimal)
		case e.GainLoss.Decimal.IsNegative():
			s.TotalCapitalLosses = s.TotalCapitalLosses.Add(e.GainLoss.Decimal.Abs())
		}
	}

	s.TaxOwed = TaxOwed(s.NetCapitalGains(), taxRate)

	return s
}

// TaxOwed returns max(0, net * rate).
func TaxOwed(net, rate decimal.Decimal) decimal.Decimal {
	owed := net.Mul(rate)
	if owed.IsNegative() {
		return decimal.Zero
	}
	return owed
}

// AssetTotals per-asset breakdown of a summary.
type AssetTotals struct {
	Asset           string
	Bought          decimal.Decimal
	Sold            decimal.Decimal
	Proceeds        decimal.Decimal
	CostBasis       decimal.Decimal
	RealizedGain    decimal.Decimal
	Fees            decimal.Decimal
	FlaggedDisposal int
}

// ByAsset groups events per asset, sorted by asset symbol.
func ByAsset(events []domain.TaxEvent) []AssetTotals {
	index := make(map[string]*AssetTotals)
	for _, e := range events {
		t, ok := index[e.Asset]
		if !ok {
			t = &AssetTotals{
				Asset:        e.Asset,
				Bought:       decimal.Zero,
				Sold:         decimal.Zero,
				Proceeds:     decimal.Zero,
				CostBasis:    decimal.Zero,
				RealizedGain: decimal.Zero,
				Fees:         decimal.Zero,
			}
			index[e.Asset] = t
		}

		t.Fees = t.Fees.Add(e.Fee)
		switch e.Type {
		case domain.SideBuy:
			t.Bought = t.Bought.Add(e.Amount)
		case domain.SideSell:
			t.Sold = t.Sold.Add(e.Amount)
			t.Proceeds = t.Proceeds.Add(e.Proceeds())
			t.CostBasis = t.CostBasis.Add(e.CostBasis.Decimal)
			t.RealizedGain = t.RealizedGain.Add(e.GainLoss.Decimal)
			if e.NeedsReview() {
				t.FlaggedDisposal++
			}
		}
	}

	out := make([]AssetTotals, 0, len(index))
	for _, t := range index {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}
