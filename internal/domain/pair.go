// Package domain defines the records exchanged between ingestion, the tax engine and reporting.
package domain

import "fmt"

// Pair cryptocurrency trading pair split into its assets.
type Pair struct {
	// From base asset symbol.
	From string
	// To quote asset symbol, empty when it could not be determined.
	To string
}

// String returns the string representation.
func (p Pair) String() string {
	if p.To == "" {
		return p.From
	}
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}
