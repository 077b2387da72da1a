package metrics

import (
	"strconv"
	"time"

	"github.com/portfoliotools/coinbuyer/internal/observability"
)

// Metric names
const (
	APIRequestsTotal     = "api_requests_total"
	APIRequestDuration   = "api_request_duration_ms"
	APIFailuresTotal     = "api_failures_total"
	APITransportErrors   = "api_transport_errors_total"
	APIThrottleWaits     = "api_throttle_waits_total"
	APIForbiddenRequests = "api_forbidden_requests_total"
	PurchasesTotal       = "purchases_total"
)

// RecordAPIRequest records a dispatched request and how long it took.
func RecordAPIRequest(host, method string, statusCode int, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		APIRequestsTotal,
		1,
		map[string]string{
			"host":   host,
			"method": method,
			"status": strconv.Itoa(statusCode),
		},
	)

	_ = observability.TelemetrySystem.Histogram(
		APIRequestDuration,
		duration,
		map[string]string{
			"host":   host,
			"method": method,
		},
	)
}

// RecordAPIFailure records a response classified as a failure.
func RecordAPIFailure(host string, statusCode int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			APIFailuresTotal,
			1,
			map[string]string{
				"host":        host,
				"http_status": strconv.Itoa(statusCode),
			},
		)
	}
}

// RecordTransportError records a request that produced no usable response.
func RecordTransportError(host string, timeout bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			APITransportErrors,
			1,
			map[string]string{
				"host":    host,
				"timeout": strconv.FormatBool(timeout),
			},
		)
	}
}

// RecordThrottleWait records one cool-down wait.
func RecordThrottleWait(host string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			APIThrottleWaits,
			1,
			map[string]string{"host": host},
		)
	}
}

// RecordForbiddenMethod records a request rejected by the method allow-list.
func RecordForbiddenMethod(host, method string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			APIForbiddenRequests,
			1,
			map[string]string{
				"host":   host,
				"method": method,
			},
		)
	}
}

// RecordPurchase records the outcome of one buy attempt.
func RecordPurchase(outcome string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			PurchasesTotal,
			1,
			map[string]string{"outcome": outcome},
		)
	}
}
