// Package cryptorank is the vendor client for the cryptorank.io REST API.
package cryptorank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/portfoliotools/coinbuyer/internal/apiclient"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.cryptorank.io"
	// DefaultRateLimit is the vendor's requests-per-second ceiling.
	DefaultRateLimit = 1000

	coinsPath        = "/v0/coins/"
	transactionsPath = "/v0/manual-portfolio/transactions"
)

// AllowedMethods are the only verbs the vendor client may issue.
var AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodPatch}

// Client talks to cryptorank.io through the shared API client core.
type Client struct {
	api   *apiclient.Client
	clock func() time.Time
}

// New builds a vendor client. Options are applied after the vendor defaults,
// so callers may override the base URL, rate limit, logger and so on.
func New(token string, opts ...apiclient.Option) *Client {
	defaults := []apiclient.Option{
		apiclient.WithAllowedMethods(AllowedMethods...),
		apiclient.WithRateLimit(DefaultRateLimit),
		apiclient.WithErrorSchema(ErrorSchema),
	}
	if header := authorization(token); header != "" {
		defaults = append(defaults, apiclient.WithHeaders(map[string]string{"Authorization": header}))
	}

	return &Client{
		api:   apiclient.New(DefaultBaseURL, append(defaults, opts...)...),
		clock: time.Now,
	}
}

// ErrorSchema decodes vendor error bodies into *APIError.
var ErrorSchema = apiclient.ErrorSchemaFunc(func(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, apiclient.ErrEmptyPayload
	}
	var apiErr APIError
	if err := json.Unmarshal(raw, &apiErr); err != nil {
		return nil, fmt.Errorf("decode cryptorank error: %w", err)
	}
	return &apiErr, nil
})

// API exposes the underlying client core.
func (c *Client) API() *apiclient.Client {
	return c.api
}

// Close releases pooled connections.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.api.Close()
}

// Coins lists coins. Empty query fields fall back to locale "en" and life
// cycle "traded".
func (c *Client) Coins(ctx context.Context, query CoinsQuery) (*apiclient.Result, error) {
	locale := strings.TrimSpace(query.Locale)
	if locale == "" {
		locale = "en"
	}
	lifeCycle := strings.TrimSpace(query.LifeCycle)
	if lifeCycle == "" {
		lifeCycle = "traded"
	}

	params := url.Values{}
	params.Set("locale", locale)
	params.Set("lifeCycle", lifeCycle)
	return c.api.Get(ctx, coinsPath, params)
}

// CreateTransaction records a manual portfolio transaction. The vendor answers
// 201 on success.
func (c *Client) CreateTransaction(ctx context.Context, tx TransactionRequest) (*apiclient.Result, error) {
	if tx.PortfolioID <= 0 {
		return nil, errors.New("cryptorank: portfolio id is required")
	}
	if strings.TrimSpace(tx.BaseCurrencyKey) == "" {
		return nil, errors.New("cryptorank: base currency key is required")
	}
	return c.api.Post(ctx, transactionsPath, tx.body(c.clock()))
}

// DecodeCoins reads the data array of a coins listing.
func DecodeCoins(success *apiclient.Success) ([]Coin, error) {
	var envelope struct {
		Data []Coin `json:"data"`
	}
	if err := success.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("cryptorank: coins: %w", err)
	}
	return envelope.Data, nil
}

// FailureError converts a failure result into an error carrying the vendor
// message when one was decoded.
func FailureError(failure *apiclient.Failure) error {
	if failure == nil {
		return nil
	}
	if apiErr, ok := failure.Detail.(*APIError); ok {
		return fmt.Errorf("cryptorank: status %d: %w", failure.StatusCode, apiErr)
	}
	return fmt.Errorf("cryptorank: status %d: %s", failure.StatusCode, failure.Message())
}

func authorization(token string) string {
	token = strings.TrimSpace(token)
	if token == "" || strings.Contains(token, " ") {
		return token
	}
	return "Bearer " + token
}
