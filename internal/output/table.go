package output

import (
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/portfoliotools/coinbuyer/internal/buyer"
	"github.com/portfoliotools/coinbuyer/internal/cryptorank"
	"github.com/portfoliotools/coinbuyer/internal/store"
)

// TableFormatter renders results as an ASCII table. Color turns on ANSI
// outcome labels.
type TableFormatter struct {
	Color bool
}

func (f *TableFormatter) FormatCoins(coins []cryptorank.Coin) (string, error) {
	t := newTable()
	t.AppendHeader(table.Row{"Rank", "Symbol", "Name", "Price (USD)", "Market Cap", "Traded"})

	traded := 0
	for _, c := range coins {
		if c.IsTraded {
			traded++
		}
		t.AppendRow(table.Row{
			c.Rank,
			c.Symbol,
			c.Name,
			c.USDPrice().String(),
			c.MarketCap.StringFixed(0),
			tradedLabel(c.IsTraded),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "total", len(coins)})
	t.AppendFooter(table.Row{"", "", "", "", "traded", traded})

	return t.Render(), nil
}

func (f *TableFormatter) FormatSummary(summary *buyer.Summary) (string, error) {
	if summary == nil {
		return "", nil
	}

	t := newTable()
	t.AppendHeader(table.Row{"Symbol", "Name", "Price (USD)", "Quantity", "Outcome", "Notes"})

	for _, a := range summary.Attempts {
		quantity := "-"
		if !a.BaseQuantity.IsZero() {
			quantity = a.BaseQuantity.StringFixed(8)
		}
		t.AppendRow(table.Row{
			a.Symbol,
			a.Name,
			a.PriceUSD.String(),
			quantity,
			f.outcomeLabel(string(a.Outcome)),
			a.Reason,
		})
	}

	t.AppendFooter(table.Row{"", "", "", "", "", summaryLine(summary)})
	return t.Render(), nil
}

func (f *TableFormatter) FormatPurchases(purchases []store.Purchase) (string, error) {
	t := newTable()
	t.AppendHeader(table.Row{"When", "Portfolio", "Coin", "Spent", "Quantity", "Status", "Outcome"})

	for _, p := range purchases {
		t.AppendRow(table.Row{
			p.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			p.PortfolioID,
			p.CoinKey,
			p.QuoteQuantity.String() + " " + p.QuoteKey,
			p.BaseQuantity.StringFixed(8),
			statusCell(p.StatusCode),
			f.outcomeLabel(string(p.Outcome)),
		})
	}

	return t.Render(), nil
}

// newTable returns a rounded table whose footer keeps its original case.
func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	return t
}

func (f *TableFormatter) outcomeLabel(outcome string) string {
	if !f.Color {
		return outcome
	}
	switch outcome {
	case string(buyer.OutcomeBought):
		return color.GreenString(outcome)
	case string(buyer.OutcomeFailed), string(buyer.OutcomeError):
		return color.RedString(outcome)
	case string(buyer.OutcomeSkipped):
		return color.YellowString(outcome)
	default:
		return color.CyanString(outcome)
	}
}
