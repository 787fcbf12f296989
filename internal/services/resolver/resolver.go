// Package resolver maps trading pair identifiers to their base asset symbol.
package resolver

import (
	"strings"

	"github.com/vadiminshakov/taxlots/internal/domain"
)

var (
	// DefaultBasePrefixes known base assets, matched in order.
	DefaultBasePrefixes = []string{"BTC", "ETH", "ADA", "SOL", "MATIC", "DOT", "LINK", "UNI"}
	// DefaultQuoteSuffixes known quote currencies, stripped in order when no prefix matches.
	DefaultQuoteSuffixes = []string{"USDT", "BUSD", "USDC", "FDUSD", "TUSD", "DAI", "BTC", "ETH", "BNB", "USD", "EUR", "JPY"}
)

const pairSeparators = "_/-:"

// Resolver resolves base assets from pair strings. It is immutable and safe
// for concurrent use.
type Resolver struct {
	basePrefixes  []string
	quoteSuffixes []string
}

// New creates a Resolver from ordered lists of base prefixes and quote suffixes.
// Empty entries are ignored, symbols are upper-cased.
func New(basePrefixes, quoteSuffixes []string) *Resolver {
	return &Resolver{
		basePrefixes:  normalizeAll(basePrefixes),
		quoteSuffixes: normalizeAll(quoteSuffixes),
	}
}

// Default creates a Resolver with the built-in symbol lists.
func Default() *Resolver {
	return New(DefaultBasePrefixes, DefaultQuoteSuffixes)
}

// Resolve returns the base asset of pair. Unknown pairs degrade to a best
// effort symbol instead of failing.
func (r *Resolver) Resolve(pair string) string {
	return r.Split(pair).From
}

// Split splits pair into base and quote asset. The quote is empty when it
// cannot be determined.
func (r *Resolver) Split(pair string) domain.Pair {
	p := normalize(pair)
	if p == "" {
		return domain.Pair{}
	}

	// BTC_USDT, BTC/USDT, BTC-USDT
	if idx := strings.IndexAny(p, pairSeparators); idx > 0 {
		return domain.Pair{From: p[:idx], To: strings.Trim(p[idx+1:], pairSeparators)}
	}

	for _, base := range r.basePrefixes {
		if strings.HasPrefix(p, base) {
			return domain.Pair{From: base, To: p[len(base):]}
		}
	}

	for _, quote := range r.quoteSuffixes {
		if len(p) > len(quote) && strings.HasSuffix(p, quote) {
			return domain.Pair{From: p[:len(p)-len(quote)], To: quote}
		}
	}

	return domain.Pair{From: p}
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func normalizeAll(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = normalize(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
