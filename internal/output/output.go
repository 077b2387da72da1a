package output

import (
	"fmt"
	"strings"

	"github.com/portfoliotools/coinbuyer/internal/buyer"
	"github.com/portfoliotools/coinbuyer/internal/cryptorank"
	"github.com/portfoliotools/coinbuyer/internal/store"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// Formatter renders command results.
type Formatter interface {
	FormatCoins(coins []cryptorank.Coin) (string, error)
	FormatSummary(summary *buyer.Summary) (string, error)
	FormatPurchases(purchases []store.Purchase) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

func summaryLine(s *buyer.Summary) string {
	line := fmt.Sprintf("%d found, %d bought, %d failed, %d skipped", s.Found, s.Bought, s.Failed, s.Skipped)
	if s.DryRun {
		line += fmt.Sprintf(", %d planned (dry run)", s.Planned)
	}
	return line
}

func tradedLabel(traded bool) string {
	if traded {
		return "yes"
	}
	return "no"
}

func statusCell(code int) string {
	if code == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", code)
}
