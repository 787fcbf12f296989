// Package holdings keeps the per-asset FIFO inventory of acquisition lots.
package holdings

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/taxlots/internal/domain"
)

var (
	// ErrNonPositiveAmount is returned when a lot with amount <= 0 is added.
	ErrNonPositiveAmount = errors.New("lot amount must be positive")
	// ErrLotOutOfOrder is returned when a lot is older than the newest lot of its ledger.
	ErrLotOutOfOrder = errors.New("lot acquired before the newest lot in the ledger")
)

// Consumption is the result of matching a disposal against a ledger.
type Consumption struct {
	// CostBasis sum of consumed amount * unit price over all touched lots.
	CostBasis decimal.Decimal
	// Breakdown consumed slices, oldest first.
	Breakdown []domain.LotMatch
	// Shortfall amount no lot could cover. It carries zero cost basis.
	Shortfall decimal.Decimal
}

// Insufficient reports whether the ledger ran out of lots.
func (c Consumption) Insufficient() bool {
	return c.Shortfall.IsPositive()
}

// Index maps assets to their FIFO ledgers. An Index belongs to exactly one
// calculation. Ledger creation is safe for concurrent use; operations on a
// single ledger are not and must stay with one goroutine.
type Index struct {
	mu      sync.Mutex
	ledgers map[string]*Ledger
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{ledgers: make(map[string]*Ledger)}
}

// Ledger returns the ledger of asset, creating it on first use.
func (x *Index) Ledger(asset string) *Ledger {
	x.mu.Lock()
	defer x.mu.Unlock()

	l, ok := x.ledgers[asset]
	if !ok {
		l = &Ledger{}
		x.ledgers[asset] = l
	}
	return l
}

// AddLot appends a lot to the tail of the asset's ledger.
func (x *Index) AddLot(asset string, amount, price decimal.Decimal, date time.Time) error {
	return errors.Wrapf(x.Ledger(asset).Add(amount, price, date), "add %s lot", asset)
}

// Consume removes amount from the head of the asset's ledger.
func (x *Index) Consume(asset string, amount decimal.Decimal) Consumption {
	return x.Ledger(asset).Consume(amount)
}

// Holding returns the amount currently held for asset.
func (x *Index) Holding(asset string) decimal.Decimal {
	x.mu.Lock()
	l, ok := x.ledgers[asset]
	x.mu.Unlock()
	if !ok {
		return decimal.Zero
	}
	return l.Total()
}

// Lots returns a copy of the open lots of asset, oldest first.
func (x *Index) Lots(asset string) []domain.Lot {
	x.mu.Lock()
	l, ok := x.ledgers[asset]
	x.mu.Unlock()
	if !ok {
		return nil
	}
	return l.Lots()
}

// Assets returns the assets that currently hold at least one lot, sorted.
func (x *Index) Assets() []string {
	x.mu.Lock()
	defer x.mu.Unlock()

	assets := make([]string, 0, len(x.ledgers))
	for asset, l := range x.ledgers {
		if l.Len() > 0 {
			assets = append(assets, asset)
		}
	}
	sort.Strings(assets)
	return assets
}
