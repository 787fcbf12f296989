package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot is a quantity of an asset acquired at one price and date that is still
// available to offset future disposals.
type Lot struct {
	Amount     decimal.Decimal `json:"amount"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	AcquiredAt time.Time       `json:"acquired_at"`
}

// Cost returns the acquisition value of the remaining amount.
func (l Lot) Cost() decimal.Decimal {
	return l.Amount.Mul(l.UnitPrice)
}

// LotMatch is the slice of a lot consumed by one disposal.
type LotMatch struct {
	Amount     decimal.Decimal `json:"amount"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	AcquiredAt time.Time       `json:"acquired_at"`
}

// CostBasis returns amount * unit price.
func (m LotMatch) CostBasis() decimal.Decimal {
	return m.Amount.Mul(m.UnitPrice)
}
