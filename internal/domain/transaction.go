package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one executed trade as delivered by ingestion.
type Transaction struct {
	Date     time.Time       `json:"date"`
	Pair     string          `json:"pair"`
	Side     Side            `json:"side"`
	Amount   decimal.Decimal `json:"amount"`
	Price    decimal.Decimal `json:"price"`
	Fee      decimal.Decimal `json:"fee"`
	FeeAsset string          `json:"fee_asset,omitempty"`
}

// Validate checks the structural invariants the engine relies on.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Pair) == "" {
		return newValidationError("pair", "must not be empty")
	}
	if !t.Side.IsValid() {
		return newValidationError("side", "unknown side %d", int(t.Side))
	}
	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return newValidationError("amount", "must be positive, got %s", t.Amount.String())
	}
	if t.Price.IsNegative() {
		return newValidationError("price", "must not be negative, got %s", t.Price.String())
	}
	if t.Fee.IsNegative() {
		return newValidationError("fee", "must not be negative, got %s", t.Fee.String())
	}
	return nil
}

// Proceeds returns amount * price in the quote currency.
func (t Transaction) Proceeds() decimal.Decimal {
	return t.Amount.Mul(t.Price)
}

// String returns a human-readable string representation.
func (t Transaction) String() string {
	return fmt.Sprintf("%s %s %s amount: %s price: %s",
		t.Date.Format(time.RFC3339), t.Pair, t.Side.String(), t.Amount.String(), t.Price.String())
}

// Rejection records a transaction skipped by the engine together with the reason.
type Rejection struct {
	// Index position of the transaction in the input batch.
	Index       int         `json:"index"`
	Transaction Transaction `json:"transaction"`
	Reason      string      `json:"reason"`
}
