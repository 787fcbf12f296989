// Package render prints tax summaries for the terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/vadiminshakov/taxlots/internal/domain"
	"github.com/vadiminshakov/taxlots/internal/services/summary"
)

var (
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#D9534F", Dark: "#FF6F61"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(0, 2).
			Bold(true).
			MarginBottom(1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().Width(24)
	warnStyle  = lipgloss.NewStyle().Foreground(warning)
)

// moneyPlaces decimal places used for quote currency amounts.
const moneyPlaces = 2

// Summary writes a human-readable report of s to w. A non-empty portfolio
// is shown in the header.
func Summary(w io.Writer, portfolio string, s *domain.TaxSummary) error {
	var b strings.Builder

	title := "Tax summary " + s.Period.String()
	if portfolio != "" {
		title = "Tax summary " + portfolio + " " + s.Period.String()
	}
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")

	rows := [][2]string{
		{"Capital gains", s.TotalCapitalGains.StringFixed(moneyPlaces)},
		{"Capital losses", s.TotalCapitalLosses.StringFixed(moneyPlaces)},
		{"Net capital gains", s.NetCapitalGains().StringFixed(moneyPlaces)},
		{"Fees", s.TotalFees.StringFixed(moneyPlaces)},
		{"Tax rate", s.TaxRate.Shift(2).String() + "%"},
		{"Tax owed", s.TaxOwed.StringFixed(moneyPlaces)},
	}
	for _, row := range rows {
		b.WriteString(labelStyle.Render(row[0]) + row[1] + "\n")
	}

	byAsset := summary.ByAsset(s.Events)
	if len(byAsset) > 0 {
		b.WriteString(sectionStyle.Render("By asset") + "\n")
		for _, a := range byAsset {
			line := fmt.Sprintf("%-8s bought %s sold %s proceeds %s basis %s realized %s",
				a.Asset, a.Bought.String(), a.Sold.String(),
				a.Proceeds.StringFixed(moneyPlaces), a.CostBasis.StringFixed(moneyPlaces),
				a.RealizedGain.StringFixed(moneyPlaces))
			if a.FlaggedDisposal > 0 {
				line += warnStyle.Render(fmt.Sprintf(" (%d flagged)", a.FlaggedDisposal))
			}
			b.WriteString(line + "\n")
		}
	}

	if flagged := s.Flagged(); len(flagged) > 0 {
		b.WriteString(sectionStyle.Render("Needs review") + "\n")
		for _, e := range flagged {
			b.WriteString(warnStyle.Render(fmt.Sprintf("%s %s sold %s, %s not covered by recorded buys",
				e.Date.Format(time.DateTime), e.Pair, e.Amount.String(), e.Shortfall.String())) + "\n")
		}
	}

	if len(s.Rejected) > 0 {
		b.WriteString(sectionStyle.Render("Skipped transactions") + "\n")
		for _, r := range s.Rejected {
			b.WriteString(warnStyle.Render(fmt.Sprintf("#%d %s: %s", r.Index, r.Transaction.Pair, r.Reason)) + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
