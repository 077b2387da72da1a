package cryptorank

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfoliotools/coinbuyer/internal/apiclient"
)

const coinsFixture = `{
  "data": [
    {"id": 1, "key": "bitcoin", "symbol": "BTC", "name": "Bitcoin", "rank": 1,
     "marketCap": 1200000000000, "price": {"USD": 61000.5, "BTC": 1}, "isTraded": true},
    {"id": 2, "key": "tiny", "symbol": "TNY", "name": "Tiny", "rank": 9000,
     "marketCap": null, "price": {"USD": "0.0001"}, "isTraded": false}
  ]
}`

func newVendorServer(t *testing.T, router chi.Router) *Client {
	t.Helper()
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	client := New("secret", apiclient.WithBaseURL(server.URL))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewAppliesVendorDefaults(t *testing.T) {
	client := New("secret")
	require.Equal(t, DefaultBaseURL, client.API().BaseURL())
	require.Equal(t, AllowedMethods, client.API().AllowedMethods())
	require.Equal(t, DefaultRateLimit, client.API().Limiter().Ceiling())
}

func TestAuthorizationHeader(t *testing.T) {
	require.Equal(t, "Bearer abc", authorization("abc"))
	require.Equal(t, "Bearer abc", authorization("Bearer abc"))
	require.Equal(t, "", authorization("  "))
}

func TestCoinsSendsQueryAndAuth(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/v0/coins/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "en", r.URL.Query().Get("locale"))
		assert.Equal(t, "traded", r.URL.Query().Get("lifeCycle"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(coinsFixture))
	})
	client := newVendorServer(t, router)

	result, err := client.Coins(context.Background(), CoinsQuery{})
	require.NoError(t, err)
	require.True(t, result.OK())

	coins, err := DecodeCoins(result.Success)
	require.NoError(t, err)
	require.Len(t, coins, 2)

	btc := coins[0]
	require.Equal(t, "bitcoin", btc.Key)
	require.True(t, btc.IsTraded)
	require.True(t, btc.MarketCap.Equal(decimal.NewFromInt(1200000000000)))
	require.True(t, btc.USDPrice().Equal(decimal.RequireFromString("61000.5")))

	tiny := coins[1]
	require.False(t, tiny.IsTraded)
	require.True(t, tiny.MarketCap.IsZero())
	price, ok := tiny.PriceIn("usd")
	require.True(t, ok)
	require.True(t, price.Equal(decimal.RequireFromString("0.0001")))
}

func TestCoinsCustomQuery(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/v0/coins/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ru", r.URL.Query().Get("locale"))
		assert.Equal(t, "funding", r.URL.Query().Get("lifeCycle"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	client := newVendorServer(t, router)

	result, err := client.Coins(context.Background(), CoinsQuery{Locale: "ru", LifeCycle: "funding"})
	require.NoError(t, err)
	coins, err := DecodeCoins(result.Success)
	require.NoError(t, err)
	require.Empty(t, coins)
}

func TestCreateTransactionSendsExactBody(t *testing.T) {
	date := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	router := chi.NewRouter()
	router.Post("/v0/manual-portfolio/transactions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{
			"alterHoldings": false,
			"date": 1735787045000,
			"quoteCurrencyKey": "united-states-dollar",
			"feeType": "USD",
			"baseCurrencyKey": "bitcoin",
			"portfolioId": 52921,
			"type": "BUY",
			"baseQuantity": 0.0002,
			"quoteQuantity": 10,
			"feeValue": 0,
			"usdValue": 10
		}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":99}}`))
	})
	client := newVendorServer(t, router)

	result, err := client.CreateTransaction(context.Background(), TransactionRequest{
		PortfolioID:      52921,
		Type:             "buy",
		BaseCurrencyKey:  "bitcoin",
		BaseQuantity:     decimal.RequireFromString("0.0002"),
		QuoteCurrencyKey: "united-states-dollar",
		QuoteQuantity:    decimal.NewFromInt(10),
		USDValue:         decimal.NewFromInt(10),
		FeeType:          "USD",
		Date:             date,
	})
	require.NoError(t, err)
	require.True(t, result.OK())
	require.Equal(t, http.StatusCreated, result.StatusCode())
}

func TestCreateTransactionDefaultsDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	router := chi.NewRouter()
	router.Post("/v0/manual-portfolio/transactions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(now.UnixMilli()), body["date"])
		w.WriteHeader(http.StatusCreated)
	})
	client := newVendorServer(t, router)
	client.clock = func() time.Time { return now }

	result, err := client.CreateTransaction(context.Background(), TransactionRequest{
		PortfolioID:     1,
		BaseCurrencyKey: "bitcoin",
	})
	require.NoError(t, err)
	require.True(t, result.OK())
	require.Nil(t, result.Success.Payload)
}

func TestCreateTransactionValidates(t *testing.T) {
	client := New("secret", apiclient.WithBaseURL("http://127.0.0.1:1"))

	_, err := client.CreateTransaction(context.Background(), TransactionRequest{BaseCurrencyKey: "bitcoin"})
	require.Error(t, err)
	_, err = client.CreateTransaction(context.Background(), TransactionRequest{PortfolioID: 1})
	require.Error(t, err)
}

func TestVendorErrorSchema(t *testing.T) {
	router := chi.NewRouter()
	router.Post("/v0/manual-portfolio/transactions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"statusCode":400,"message":["baseQuantity must be positive"],"error":"Bad Request"}`))
	})
	client := newVendorServer(t, router)

	result, err := client.CreateTransaction(context.Background(), TransactionRequest{PortfolioID: 1, BaseCurrencyKey: "x"})
	require.NoError(t, err)
	require.NotNil(t, result.Failure)

	apiErr, ok := result.Failure.Detail.(*APIError)
	require.True(t, ok)
	require.Equal(t, 400, apiErr.StatusCode)
	require.Equal(t, Messages{"baseQuantity must be positive"}, apiErr.Messages)
	require.Equal(t, "Bad Request: baseQuantity must be positive", result.Failure.Message())

	err = FailureError(result.Failure)
	var target *APIError
	require.True(t, errors.As(err, &target))
	require.Contains(t, err.Error(), "status 400")
}

func TestForbiddenVendorMethod(t *testing.T) {
	client := New("secret", apiclient.WithBaseURL("http://127.0.0.1:1"))

	_, err := client.API().Request(context.Background(), http.MethodPut, "/v0/coins/", nil, nil)
	require.ErrorIs(t, err, apiclient.ErrForbiddenMethod)
}

func TestMessagesUnmarshal(t *testing.T) {
	var single APIError
	require.NoError(t, json.Unmarshal([]byte(`{"message":"Unauthorized","statusCode":401}`), &single))
	require.Equal(t, Messages{"Unauthorized"}, single.Messages)
	require.Equal(t, "Unauthorized", single.Error())

	var empty APIError
	require.NoError(t, json.Unmarshal([]byte(`{"message":null}`), &empty))
	require.Nil(t, empty.Messages)
	require.Equal(t, "cryptorank error", empty.Error())

	var bad APIError
	require.Error(t, json.Unmarshal([]byte(`{"message":42}`), &bad))
}

func TestFailureErrorFallsBackToMessage(t *testing.T) {
	err := FailureError(&apiclient.Failure{StatusCode: 502, Detail: json.RawMessage(`{"oops":true}`)})
	require.EqualError(t, err, `cryptorank: status 502: {"oops":true}`)
	require.NoError(t, FailureError(nil))
}
