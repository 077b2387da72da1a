package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfoliotools/coinbuyer/internal/apiclient"
	"github.com/portfoliotools/coinbuyer/internal/buyer"
	"github.com/portfoliotools/coinbuyer/internal/cryptorank"
	"github.com/portfoliotools/coinbuyer/internal/metrics"
	"github.com/portfoliotools/coinbuyer/internal/observability"
)

// cleanupMetrics tears down global telemetry state so each test starts clean.
// This matters in sandboxes where lingering exporters can block future binds.
func cleanupMetrics(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		_ = observability.ShutdownMetrics()
	})
}

// isPermissionError normalizes OS-specific permission errors (macOS/Linux/BSD)
// so we can gracefully skip when loopback sockets are blocked.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"permission denied", "operation not permitted", "not permitted"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}

// initMetricsOrSkip attempts to start the metrics exporter; if the environment
// forbids network binds we skip instead of failing the entire suite.
func initMetricsOrSkip(t *testing.T) {
	t.Helper()

	if err := observability.InitMetrics("test", 0, "test"); err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping metrics tests due to sandbox permissions: %v", err)
		}
		require.NoError(t, err)
	}

	cleanupMetrics(t)
}

// newVendorServer binds to IPv4 loopback explicitly (avoiding IPv6-only
// defaults) and skips when the sandbox refuses to open sockets.
func newVendorServer(t *testing.T, router chi.Router) *httptest.Server {
	t.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping vendor server setup: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: router},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}

func vendorRouter() chi.Router {
	router := chi.NewRouter()
	router.Get("/v0/coins/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":1,"key":"bitcoin","symbol":"BTC","name":"Bitcoin","rank":1,"marketCap":1200000000000,"price":{"USD":60000},"isTraded":true},
			{"id":2,"key":"ethereum","symbol":"ETH","name":"Ethereum","rank":2,"marketCap":300000000000,"price":{"USD":3000},"isTraded":true}
		]}`))
	})
	router.Post("/v0/manual-portfolio/transactions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":1}}`))
	})
	router.Get("/v0/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"statusCode":404,"message":"Not Found"}`))
	})
	return router
}

func scrapeMetrics(t *testing.T) (string, string) {
	t.Helper()

	url := fmt.Sprintf("http://127.0.0.1:%d/metrics", observability.GetMetricsPort())
	resp, err := http.Get(url) // #nosec G107 -- loopback test exporter
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return string(body), resp.Header.Get("Content-Type")
}

func TestAPIClientMetrics_Integration(t *testing.T) {
	observability.InitCLILogger("test", "info", false)

	initMetricsOrSkip(t)

	ts := newVendorServer(t, vendorRouter())

	var (
		waitsMu sync.Mutex
		waits   int
	)
	client := cryptorank.New("token",
		apiclient.WithBaseURL(ts.URL),
		apiclient.WithRateLimit(5),
		apiclient.WithLogging(false),
		apiclient.WithSleeper(func(ctx context.Context, d time.Duration) error {
			waitsMu.Lock()
			waits++
			waitsMu.Unlock()
			return nil
		}),
	)
	t.Cleanup(func() { _ = client.Close() })

	const numRequests = 40
	const numWorkers = 8

	requestChan := make(chan int, numRequests)
	for i := 0; i < numRequests; i++ {
		requestChan <- i
	}
	close(requestChan)

	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for reqNum := range requestChan {
				ctx := context.Background()
				if reqNum%4 == 0 {
					result, err := client.API().Get(ctx, "/v0/missing", nil)
					if assert.NoError(t, err) {
						assert.False(t, result.OK())
					}
					continue
				}
				result, err := client.Coins(ctx, cryptorank.CoinsQuery{})
				if assert.NoError(t, err) {
					assert.True(t, result.OK())
				}
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)

	_, err := client.API().Request(context.Background(), http.MethodPut, "/v0/coins/", nil, nil)
	require.ErrorIs(t, err, apiclient.ErrForbiddenMethod)

	metricsContent, contentType := scrapeMetrics(t)
	assert.True(t, strings.HasPrefix(contentType, "text/plain"), "Expected Prometheus content type, got: %s", contentType)
	assert.Contains(t, metricsContent, "test_api_requests_total", "Should have API request metrics")
	assert.Contains(t, metricsContent, "test_api_request_duration_ms", "Should have duration metrics")
	assert.Contains(t, metricsContent, "test_api_failures_total", "Should have failure metrics")
	assert.Contains(t, metricsContent, "test_api_forbidden_requests_total", "Should have forbidden method metrics")

	waitsMu.Lock()
	defer waitsMu.Unlock()
	if waits > 0 {
		assert.Contains(t, metricsContent, "test_api_throttle_waits_total")
	}
	assert.True(t, elapsed < 5*time.Second, "Load test should complete in reasonable time")
	t.Logf("Load test completed: %d requests in %v, %d throttle waits", numRequests, elapsed, waits)
}

func TestBuyRunMetrics_Integration(t *testing.T) {
	observability.InitCLILogger("test", "info", false)

	initMetricsOrSkip(t)

	ts := newVendorServer(t, vendorRouter())
	client := cryptorank.New("token", apiclient.WithBaseURL(ts.URL), apiclient.WithLogging(false))
	t.Cleanup(func() { _ = client.Close() })

	b := &buyer.Buyer{API: client, Logger: observability.CLILogger}
	summary, err := b.Run(context.Background(), buyer.Plan{
		PortfolioID: 1,
		Amount:      decimal.NewFromInt(10),
		QuoteKey:    "united-states-dollar",
		FeeType:     "USD",
	})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Bought)

	metricsContent, _ := scrapeMetrics(t)
	assert.Contains(t, metricsContent, "test_purchases_total")
}

func TestMetricsHelpers_WithTelemetryDisabled(t *testing.T) {
	require.NoError(t, observability.ShutdownMetrics())
	require.Nil(t, observability.TelemetrySystem)

	assert.NotPanics(t, func() {
		metrics.RecordAPIRequest("api.cryptorank.io", http.MethodGet, http.StatusOK, time.Millisecond)
		metrics.RecordAPIFailure("api.cryptorank.io", http.StatusNotFound)
		metrics.RecordTransportError("api.cryptorank.io", true)
		metrics.RecordThrottleWait("api.cryptorank.io")
		metrics.RecordForbiddenMethod("api.cryptorank.io", http.MethodPut)
		metrics.RecordPurchase("bought")
	})
}
