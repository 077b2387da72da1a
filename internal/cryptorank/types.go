package cryptorank

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types accepted by the manual portfolio endpoint.
const (
	TransactionBuy  = "BUY"
	TransactionSell = "SELL"
)

// USD is the price key used for quantity math.
const USD = "USD"

// Coin is one entry of the coins listing.
type Coin struct {
	ID        int64                      `json:"id"`
	Key       string                     `json:"key"`
	Symbol    string                     `json:"symbol"`
	Name      string                     `json:"name"`
	Rank      int                        `json:"rank"`
	MarketCap decimal.Decimal            `json:"marketCap"`
	Price     map[string]decimal.Decimal `json:"price"`
	IsTraded  bool                       `json:"isTraded"`
}

// PriceIn returns the coin price in the given currency and whether it is known.
func (c Coin) PriceIn(currency string) (decimal.Decimal, bool) {
	price, ok := c.Price[strings.ToUpper(currency)]
	return price, ok
}

// USDPrice returns the USD price, zero when unknown.
func (c Coin) USDPrice() decimal.Decimal {
	price, _ := c.PriceIn(USD)
	return price
}

// CoinsQuery filters the coins listing.
type CoinsQuery struct {
	Locale    string
	LifeCycle string
}

// TransactionRequest describes one manual portfolio transaction.
type TransactionRequest struct {
	PortfolioID      int64
	Type             string
	BaseCurrencyKey  string
	BaseQuantity     decimal.Decimal
	QuoteCurrencyKey string
	QuoteQuantity    decimal.Decimal
	USDValue         decimal.Decimal
	FeeValue         decimal.Decimal
	FeeType          string
	AlterHoldings    bool
	// Date defaults to the time of the call when zero.
	Date time.Time
}

type transactionBody struct {
	AlterHoldings    bool        `json:"alterHoldings"`
	Date             int64       `json:"date"`
	QuoteCurrencyKey string      `json:"quoteCurrencyKey"`
	FeeType          string      `json:"feeType"`
	BaseCurrencyKey  string      `json:"baseCurrencyKey"`
	PortfolioID      int64       `json:"portfolioId"`
	Type             string      `json:"type"`
	BaseQuantity     json.Number `json:"baseQuantity"`
	QuoteQuantity    json.Number `json:"quoteQuantity"`
	FeeValue         json.Number `json:"feeValue"`
	USDValue         json.Number `json:"usdValue"`
}

func (r TransactionRequest) body(now time.Time) transactionBody {
	date := r.Date
	if date.IsZero() {
		date = now
	}
	txType := strings.ToUpper(strings.TrimSpace(r.Type))
	if txType == "" {
		txType = TransactionBuy
	}
	return transactionBody{
		AlterHoldings:    r.AlterHoldings,
		Date:             date.UnixMilli(),
		QuoteCurrencyKey: r.QuoteCurrencyKey,
		FeeType:          r.FeeType,
		BaseCurrencyKey:  r.BaseCurrencyKey,
		PortfolioID:      r.PortfolioID,
		Type:             txType,
		BaseQuantity:     number(r.BaseQuantity),
		QuoteQuantity:    number(r.QuoteQuantity),
		FeeValue:         number(r.FeeValue),
		USDValue:         number(r.USDValue),
	}
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// APIError is the error body returned by the vendor.
type APIError struct {
	StatusCode int      `json:"statusCode"`
	Messages   Messages `json:"message"`
	Reason     string   `json:"error"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.Join(e.Messages, "; ")
	switch {
	case msg != "" && e.Reason != "":
		return e.Reason + ": " + msg
	case msg != "":
		return msg
	case e.Reason != "":
		return e.Reason
	default:
		return "cryptorank error"
	}
}

// Messages accepts either a single string or a list of strings.
type Messages []string

// UnmarshalJSON decodes a string or an array of strings.
func (m *Messages) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = nil
		return nil
	}
	if data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*m = Messages{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*m = many
	return nil
}
