package output

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/portfoliotools/coinbuyer/internal/buyer"
	"github.com/portfoliotools/coinbuyer/internal/cryptorank"
	"github.com/portfoliotools/coinbuyer/internal/store"
)

// YAMLFormatter renders results as YAML documents.
type YAMLFormatter struct{}

func (f *YAMLFormatter) FormatCoins(coins []cryptorank.Coin) (string, error) {
	if coins == nil {
		coins = []cryptorank.Coin{}
	}
	return marshalYAML(coins)
}

func (f *YAMLFormatter) FormatSummary(summary *buyer.Summary) (string, error) {
	if summary == nil {
		return "", nil
	}
	return marshalYAML(summary)
}

func (f *YAMLFormatter) FormatPurchases(purchases []store.Purchase) (string, error) {
	if purchases == nil {
		purchases = []store.Purchase{}
	}
	return marshalYAML(purchases)
}

func marshalYAML(value any) (string, error) {
	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
