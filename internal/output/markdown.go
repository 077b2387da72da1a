package output

import (
	"fmt"
	"strings"

	"github.com/portfoliotools/coinbuyer/internal/buyer"
	"github.com/portfoliotools/coinbuyer/internal/cryptorank"
	"github.com/portfoliotools/coinbuyer/internal/store"
)

// MarkdownFormatter renders results as markdown tables.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) FormatCoins(coins []cryptorank.Coin) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Rank | Symbol | Name | Price (USD) | Traded |\n")
	sb.WriteString("|------|--------|------|-------------|--------|\n")
	for _, c := range coins {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			c.Rank,
			escapeMarkdownCell(c.Symbol),
			escapeMarkdownCell(c.Name),
			c.USDPrice().String(),
			tradedLabel(c.IsTraded),
		))
	}
	return sb.String(), nil
}

func (f *MarkdownFormatter) FormatSummary(summary *buyer.Summary) (string, error) {
	if summary == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Portfolio %d\n\n", summary.PortfolioID))
	sb.WriteString("| Symbol | Name | Quantity | Outcome | Notes |\n")
	sb.WriteString("|--------|------|----------|---------|-------|\n")
	for _, a := range summary.Attempts {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			escapeMarkdownCell(a.Symbol),
			escapeMarkdownCell(a.Name),
			a.BaseQuantity.String(),
			string(a.Outcome),
			escapeMarkdownCell(a.Reason),
		))
	}
	sb.WriteString(fmt.Sprintf("\n**Summary**: %s\n", summaryLine(summary)))
	return sb.String(), nil
}

func (f *MarkdownFormatter) FormatPurchases(purchases []store.Purchase) (string, error) {
	var sb strings.Builder
	sb.WriteString("| When | Portfolio | Coin | Quantity | Status | Outcome |\n")
	sb.WriteString("|------|-----------|------|----------|--------|---------|\n")
	for _, p := range purchases {
		sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s |\n",
			p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			p.PortfolioID,
			escapeMarkdownCell(p.CoinKey),
			p.BaseQuantity.String(),
			statusCell(p.StatusCode),
			string(p.Outcome),
		))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
