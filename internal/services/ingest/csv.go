// Package ingest turns exported trade history into validated transactions.
package ingest

import (
	"encoding/csv"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/taxlots/internal/domain"
)

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("missing required column")

// column aliases, first entry is the canonical name
var columnAliases = map[string][]string{
	"date":      {"date", "time", "datetime", "date(utc)", "timestamp"},
	"pair":      {"pair", "symbol", "market"},
	"side":      {"side", "type"},
	"amount":    {"amount", "executed", "qty", "quantity"},
	"price":     {"price"},
	"fee":       {"fee", "commission"},
	"fee_asset": {"fee_asset", "feecoin", "fee_coin", "fee coin", "commission asset"},
}

var requiredColumns = []string{"date", "pair", "side", "amount", "price"}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.DateTime,
	"2006-01-02 15:04:05 MST",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"1/2/2006 15:04",
	time.DateOnly,
}

// Result is the outcome of one CSV row: either a valid transaction or the
// reason it was rejected.
type Result struct {
	// Line 1-based line number in the source, header included.
	Line        int
	Transaction *domain.Transaction
	Err         error
}

// Valid reports whether the row produced a transaction.
func (r Result) Valid() bool {
	return r.Err == nil && r.Transaction != nil
}

// ReadCSV parses a trade export. Rows that fail to parse or validate are
// returned as rejected results; only unreadable input or a header without the
// required columns fails the whole read.
func ReadCSV(r io.Reader) ([]Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.Wrap(ErrMissingColumn, "empty input")
		}
		return nil, errors.Wrap(err, "read csv header")
	}

	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var results []Result
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				results = append(results, Result{Line: parseErr.StartLine, Err: errors.Wrap(err, "malformed row")})
				continue
			}
			return nil, errors.Wrap(err, "read csv")
		}
		line, _ := reader.FieldPos(0)
		if isBlank(row) {
			continue
		}

		tx, err := parseRow(row, columns)
		if err != nil {
			results = append(results, Result{Line: line, Err: err})
			continue
		}
		results = append(results, Result{Line: line, Transaction: &tx})
	}

	return results, nil
}

// Valid extracts the valid transactions, stably sorted by date.
func Valid(results []Result) []domain.Transaction {
	txs := make([]domain.Transaction, 0, len(results))
	for _, r := range results {
		if r.Valid() {
			txs = append(txs, *r.Transaction)
		}
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.Before(txs[j].Date)
	})
	return txs
}

// Rejected returns the rejected results.
func Rejected(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

func mapColumns(header []string) (map[string]int, error) {
	position := make(map[string]int, len(header))
	for i, h := range header {
		position[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	columns := make(map[string]int, len(columnAliases))
	for name, aliases := range columnAliases {
		for _, alias := range aliases {
			if i, ok := position[alias]; ok {
				columns[name] = i
				break
			}
		}
	}

	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, errors.Wrapf(ErrMissingColumn, "%q", name)
		}
	}
	return columns, nil
}

func parseRow(row []string, columns map[string]int) (domain.Transaction, error) {
	field := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	date, err := parseTime(field("date"))
	if err != nil {
		return domain.Transaction{}, &domain.ValidationError{Field: "date", Reason: err.Error()}
	}
	side, err := domain.ParseSide(field("side"))
	if err != nil {
		return domain.Transaction{}, &domain.ValidationError{Field: "side", Reason: err.Error()}
	}

	amount, err := parseDecimal("amount", field("amount"), true)
	if err != nil {
		return domain.Transaction{}, err
	}
	price, err := parseDecimal("price", field("price"), true)
	if err != nil {
		return domain.Transaction{}, err
	}
	fee, err := parseDecimal("fee", field("fee"), false)
	if err != nil {
		return domain.Transaction{}, err
	}

	tx := domain.Transaction{
		Date:     date,
		Pair:     strings.ToUpper(field("pair")),
		Side:     side,
		Amount:   amount,
		Price:    price,
		Fee:      fee,
		FeeAsset: strings.ToUpper(field("fee_asset")),
	}
	if err := tx.Validate(); err != nil {
		return domain.Transaction{}, err
	}
	return tx, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("unable to parse time %q", s)
}

// parseDecimal accepts thousands separators; a missing optional value is zero.
func parseDecimal(name, s string, required bool) (decimal.Decimal, error) {
	if strings.Contains(s, ",") {
		plain, ok := stripThousands(s)
		if !ok {
			return decimal.Zero, &domain.ValidationError{Field: name, Reason: "ambiguous separator in " + s}
		}
		s = plain
	}
	if s == "" {
		if required {
			return decimal.Zero, &domain.ValidationError{Field: name, Reason: "missing value"}
		}
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &domain.ValidationError{Field: name, Reason: "not a number: " + s}
	}
	return d, nil
}

// stripThousands removes commas from s when they group the integer part by
// three digits, as in 1,234,567.89. Decimal commas like 0,5 are refused.
func stripThousands(s string) (string, bool) {
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac && strings.Contains(frac, ",") {
		return "", false
	}

	sign := ""
	if strings.HasPrefix(intPart, "-") || strings.HasPrefix(intPart, "+") {
		sign, intPart = intPart[:1], intPart[1:]
	}

	groups := strings.Split(intPart, ",")
	for i, g := range groups {
		if !isDigits(g) {
			return "", false
		}
		if i == 0 && len(g) > 3 {
			return "", false
		}
		if i > 0 && len(g) != 3 {
			return "", false
		}
	}

	out := sign + strings.Join(groups, "")
	if hasFrac {
		out += "." + frac
	}
	return out, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
