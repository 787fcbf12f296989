package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventFlag marks tax events that need manual review.
type EventFlag string

const (
	// EventFlagNone regular event.
	EventFlagNone EventFlag = ""
	// EventFlagInsufficientHoldings the sell exceeded recorded holdings, the
	// shortfall was given a zero cost basis.
	EventFlagInsufficientHoldings EventFlag = "insufficient_holdings"
)

// TaxEvent is the tax-relevant outcome of one transaction.
type TaxEvent struct {
	Date     time.Time       `json:"date"`
	Pair     string          `json:"pair"`
	Asset    string          `json:"asset"`
	Type     Side            `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
	Price    decimal.Decimal `json:"price"`
	Fee      decimal.Decimal `json:"fee"`
	FeeAsset string          `json:"fee_asset,omitempty"`
	// CostBasis and GainLoss are only valid for sells.
	CostBasis decimal.NullDecimal `json:"cost_basis"`
	GainLoss  decimal.NullDecimal `json:"gain_loss"`
	// Matches lists the lots consumed by a sell, oldest first.
	Matches []LotMatch `json:"matches,omitempty"`
	// Shortfall is the sold amount that no lot covered.
	Shortfall decimal.Decimal `json:"shortfall"`
	Flag      EventFlag       `json:"flag,omitempty"`
}

// NeedsReview reports whether the event was produced under a degraded policy.
func (e TaxEvent) NeedsReview() bool {
	return e.Flag != EventFlagNone
}

// Proceeds returns amount * price.
func (e TaxEvent) Proceeds() decimal.Decimal {
	return e.Amount.Mul(e.Price)
}
