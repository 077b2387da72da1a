package output

import (
	"encoding/json"

	"github.com/portfoliotools/coinbuyer/internal/buyer"
	"github.com/portfoliotools/coinbuyer/internal/cryptorank"
	"github.com/portfoliotools/coinbuyer/internal/store"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) FormatCoins(coins []cryptorank.Coin) (string, error) {
	if coins == nil {
		coins = []cryptorank.Coin{}
	}
	return f.marshal(coins)
}

func (f *JSONFormatter) FormatSummary(summary *buyer.Summary) (string, error) {
	if summary == nil {
		return "", nil
	}
	return f.marshal(summary)
}

func (f *JSONFormatter) FormatPurchases(purchases []store.Purchase) (string, error) {
	if purchases == nil {
		purchases = []store.Purchase{}
	}
	return f.marshal(purchases)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
