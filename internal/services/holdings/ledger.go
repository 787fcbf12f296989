package holdings

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/taxlots/internal/domain"
)

// compactThreshold minimum number of dead head slots before the backing
// slice is compacted.
const compactThreshold = 32

// Ledger is the FIFO queue of lots of one asset. Lots are kept in
// non-decreasing acquisition order; the ledger never re-sorts.
type Ledger struct {
	lots []domain.Lot
	head int
}

// Len returns the number of open lots.
func (l *Ledger) Len() int {
	return len(l.lots) - l.head
}

// Add appends a lot to the tail.
func (l *Ledger) Add(amount, price decimal.Decimal, date time.Time) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrNonPositiveAmount
	}
	if n := len(l.lots); n > l.head && date.Before(l.lots[n-1].AcquiredAt) {
		return ErrLotOutOfOrder
	}

	l.lots = append(l.lots, domain.Lot{
		Amount:     amount,
		UnitPrice:  price,
		AcquiredAt: date,
	})
	return nil
}

// Consume takes amount from the head of the queue. A head lot that is fully
// covered is removed, otherwise it is reduced and consumption stops. Whatever
// the queue cannot cover is returned as shortfall.
func (l *Ledger) Consume(amount decimal.Decimal) Consumption {
	res := Consumption{
		CostBasis: decimal.Zero,
		Shortfall: decimal.Zero,
	}
	remaining := amount

	for remaining.IsPositive() && l.head < len(l.lots) {
		oldest := &l.lots[l.head]
		match := domain.LotMatch{
			Amount:     remaining,
			UnitPrice:  oldest.UnitPrice,
			AcquiredAt: oldest.AcquiredAt,
		}

		if oldest.Amount.LessThanOrEqual(remaining) {
			match.Amount = oldest.Amount
			l.lots[l.head] = domain.Lot{}
			l.head++
		} else {
			oldest.Amount = oldest.Amount.Sub(remaining)
		}

		taken := match.Amount
		res.Breakdown = append(res.Breakdown, match)
		res.CostBasis = res.CostBasis.Add(match.CostBasis())
		remaining = remaining.Sub(taken)
	}

	if remaining.IsPositive() {
		res.Shortfall = remaining
	}
	l.compact()

	return res
}

// Total returns the sum of open lot amounts.
func (l *Ledger) Total() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots[l.head:] {
		total = total.Add(lot.Amount)
	}
	return total
}

// Lots returns a copy of the open lots, oldest first.
func (l *Ledger) Lots() []domain.Lot {
	out := make([]domain.Lot, l.Len())
	copy(out, l.lots[l.head:])
	return out
}

func (l *Ledger) compact() {
	if l.head == len(l.lots) {
		l.lots = l.lots[:0]
		l.head = 0
		return
	}
	if l.head >= compactThreshold && l.head*2 >= len(l.lots) {
		n := copy(l.lots, l.lots[l.head:])
		clear(l.lots[n:])
		l.lots = l.lots[:n]
		l.head = 0
	}
}
