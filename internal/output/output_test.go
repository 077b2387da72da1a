package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/portfoliotools/coinbuyer/internal/buyer"
	"github.com/portfoliotools/coinbuyer/internal/cryptorank"
	"github.com/portfoliotools/coinbuyer/internal/store"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("yml")
	require.NoError(t, err)
	require.Equal(t, FormatYAML, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func sampleSummary() *buyer.Summary {
	return &buyer.Summary{
		PortfolioID: 42,
		Found:       3,
		Bought:      1,
		Failed:      1,
		Skipped:     1,
		Attempts: []buyer.Attempt{
			{Key: "bitcoin", Symbol: "BTC", Name: "Bitcoin", PriceUSD: decimal.NewFromInt(50000), BaseQuantity: decimal.RequireFromString("0.0002"), Outcome: buyer.OutcomeBought, StatusCode: 201},
			{Key: "ethereum", Symbol: "ETH", Name: "Ethereum", PriceUSD: decimal.NewFromInt(2500), BaseQuantity: decimal.RequireFromString("0.004"), Outcome: buyer.OutcomeFailed, StatusCode: 400, Reason: "bad | request"},
			{Key: "dust", Symbol: "DST", Name: "Dust", Outcome: buyer.OutcomeSkipped, Reason: "has less mcap than min"},
		},
	}
}

func samplePurchases() []store.Purchase {
	return []store.Purchase{
		{
			ID:            "p-1",
			PortfolioID:   42,
			CoinKey:       "bitcoin",
			QuoteKey:      "tether",
			QuoteQuantity: decimal.NewFromInt(10),
			BaseQuantity:  decimal.RequireFromString("0.0002"),
			StatusCode:    201,
			Outcome:       store.OutcomeBought,
			CreatedAt:     time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	}
}

func sampleCoins() []cryptorank.Coin {
	return []cryptorank.Coin{
		{Key: "bitcoin", Symbol: "BTC", Name: "Bitcoin", Rank: 1, IsTraded: true,
			MarketCap: decimal.NewFromInt(1_000_000_000),
			Price:     map[string]decimal.Decimal{"USD": decimal.NewFromInt(50000)}},
		{Key: "dust", Symbol: "DST", Name: "Dust", Rank: 900},
	}
}

func TestTableFormatter(t *testing.T) {
	f := NewFormatter(FormatTable)

	rendered, err := f.FormatSummary(sampleSummary())
	require.NoError(t, err)
	require.Contains(t, rendered, "SYMBOL")
	require.Contains(t, rendered, "Bitcoin")
	require.Contains(t, rendered, "0.00020000")
	require.Contains(t, rendered, "3 found, 1 bought, 1 failed, 1 skipped")
	require.NotContains(t, rendered, "\x1b[")

	rendered, err = f.FormatCoins(sampleCoins())
	require.NoError(t, err)
	require.Contains(t, rendered, "BTC")
	require.Contains(t, rendered, "50000")
	require.Contains(t, rendered, "no")
	require.Contains(t, rendered, "total")
	require.Contains(t, rendered, "traded")
	require.NotContains(t, rendered, "TOTAL")

	rendered, err = f.FormatPurchases(samplePurchases())
	require.NoError(t, err)
	require.Contains(t, rendered, "10 tether")
	require.Contains(t, rendered, "201")

	rendered, err = f.FormatSummary(nil)
	require.NoError(t, err)
	require.Empty(t, rendered)
}

func TestTableFormatterDryRunFooter(t *testing.T) {
	summary := &buyer.Summary{Found: 2, Planned: 2, DryRun: true}
	rendered, err := (&TableFormatter{}).FormatSummary(summary)
	require.NoError(t, err)
	require.Contains(t, rendered, "2 planned (dry run)")
}

func TestJSONFormatter(t *testing.T) {
	f := NewFormatter(FormatJSON)

	rendered, err := f.FormatSummary(sampleSummary())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Equal(t, float64(42), decoded["portfolio_id"])
	require.Contains(t, rendered, "\"outcome\": \"bought\"")

	rendered, err = f.FormatPurchases(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", rendered)
}

func TestYAMLFormatter(t *testing.T) {
	rendered, err := NewFormatter(FormatYAML).FormatPurchases(samplePurchases())
	require.NoError(t, err)
	require.Contains(t, rendered, "coin_key: bitcoin")

	var decoded []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(rendered), &decoded))
	require.Len(t, decoded, 1)
	require.Equal(t, "bought", decoded[0]["outcome"])
}

func TestMarkdownFormatter(t *testing.T) {
	rendered, err := NewFormatter(FormatMarkdown).FormatSummary(sampleSummary())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rendered, "## Portfolio 42"))
	require.Contains(t, rendered, "bad \\| request")
	require.Contains(t, rendered, "**Summary**")
}
