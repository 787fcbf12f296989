package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// TaxSummary is the aggregate of one calculation. It is never mutated after
// it has been returned to a caller.
type TaxSummary struct {
	Period             Period          `json:"period"`
	TaxRate            decimal.Decimal `json:"tax_rate"`
	TotalCapitalGains  decimal.Decimal `json:"total_capital_gains"`
	TotalCapitalLosses decimal.Decimal `json:"total_capital_losses"`
	TotalFees          decimal.Decimal `json:"total_fees"`
	TaxOwed            decimal.Decimal `json:"tax_owed"`
	Events             []TaxEvent      `json:"events"`
	Rejected           []Rejection     `json:"rejected,omitempty"`
}

// NetCapitalGains returns gains minus losses.
func (s TaxSummary) NetCapitalGains() decimal.Decimal {
	return s.TotalCapitalGains.Sub(s.TotalCapitalLosses)
}

// Flagged returns the events that need manual review.
func (s TaxSummary) Flagged() []TaxEvent {
	var flagged []TaxEvent
	for _, e := range s.Events {
		if e.NeedsReview() {
			flagged = append(flagged, e)
		}
	}
	return flagged
}

type taxSummaryJSON TaxSummary

// MarshalJSON adds the derived net capital gains to the encoded summary.
func (s TaxSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		taxSummaryJSON
		NetCapitalGains decimal.Decimal `json:"net_capital_gains"`
	}{
		taxSummaryJSON:  taxSummaryJSON(s),
		NetCapitalGains: s.NetCapitalGains(),
	})
}

// UnmarshalJSON ignores the derived net capital gains field.
func (s *TaxSummary) UnmarshalJSON(data []byte) error {
	var raw taxSummaryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = TaxSummary(raw)
	return nil
}
