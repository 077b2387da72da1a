// Package apiclient is the single funnel for outbound REST calls: it enforces
// the method allow-list, throttles against a per-second ceiling, dispatches
// over a pooled HTTP session and classifies every response into a Result.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/portfoliotools/coinbuyer/internal/metrics"
	"github.com/portfoliotools/coinbuyer/internal/ratelimit"
)

// RequestIDHeader carries the per-call identifier that also appears in logs.
const RequestIDHeader = "X-Request-ID"

// Client issues JSON requests against one base URL.
type Client struct {
	baseURL         string
	headers         map[string]string
	methods         []string
	customStatus    []int
	badStatus       map[int]struct{}
	schema          ErrorSchema
	proxy           string
	proxyErr        error
	rateLimit       int
	limiter         *ratelimit.Limiter
	logger          Logger
	loggingDisabled bool
	coolDown        time.Duration
	waitPolicy      WaitPolicy
	timeout         time.Duration
	httpClient      *http.Client
	ownsSession     bool
	sleep           func(ctx context.Context, d time.Duration) error
}

// New builds a client for baseURL. Nothing is validated eagerly; a bad proxy
// URL surfaces as an error on each call.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		headers:  map[string]string{},
		methods:  append([]string(nil), DefaultAllowedMethods...),
		schema:   IdentitySchema{},
		logger:   zap.NewNop(),
		coolDown: DefaultCoolDown,
		sleep:    sleepContext,
	}
	for _, o := range opts {
		o(c)
	}

	if c.loggingDisabled {
		c.logger = zap.NewNop()
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New(c.rateLimit)
	}
	c.badStatus = statusSet(BadStatusCodes, c.customStatus)

	if c.httpClient == nil {
		c.httpClient, c.proxyErr = newSession(c.proxy)
		c.ownsSession = true
	}

	return c
}

// newSession builds the pooled HTTP client reused by every call.
func newSession(proxy string) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err == nil && (proxyURL.Scheme == "" || proxyURL.Host == "") {
			err = fmt.Errorf("missing scheme or host")
		}
		if err != nil {
			return &http.Client{Transport: transport}, fmt.Errorf("invalid proxy %q: %w", proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{Transport: transport}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Limiter returns the limiter consulted before every call.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// AllowedMethods returns a copy of the method allow-list.
func (c *Client) AllowedMethods() []string {
	return append([]string(nil), c.methods...)
}

// Close releases the pooled connections of a client-owned session.
func (c *Client) Close() error {
	if c == nil || c.httpClient == nil || !c.ownsSession {
		return nil
	}
	c.httpClient.CloseIdleConnections()
	return nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (*Result, error) {
	return c.Request(ctx, http.MethodGet, endpoint, query, nil)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (*Result, error) {
	return c.Request(ctx, http.MethodPost, endpoint, nil, body)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, endpoint string, body any) (*Result, error) {
	return c.Request(ctx, http.MethodPatch, endpoint, nil, body)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, query url.Values) (*Result, error) {
	return c.Request(ctx, http.MethodDelete, endpoint, query, nil)
}

// Request dispatches one call and classifies the response.
//
// A method outside the allow-list fails with *ForbiddenMethodError before any
// network activity. Network faults return *TransportError. Any response that
// arrives is returned as a Result: a Failure when its status is in the
// bad-status set, a Success otherwise.
//
// Throttling is advisory: the ceiling check and the count are separate steps,
// so concurrent callers in the same second can overshoot the ceiling. Every
// dispatched request is still counted.
func (c *Client) Request(ctx context.Context, method, endpoint string, query url.Values, body any) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	target := c.resolve(endpoint, query)
	host := hostOf(c.baseURL)

	if !c.allowed(method) {
		err := &ForbiddenMethodError{Method: method, Allowed: c.AllowedMethods()}
		c.logger.Error(err.Error(), zap.String("method", method), zap.String("url", target))
		metrics.RecordForbiddenMethod(host, method)
		return nil, err
	}
	if c.proxyErr != nil {
		return nil, fmt.Errorf("apiclient: %w", c.proxyErr)
	}

	if err := c.throttle(ctx, host); err != nil {
		return nil, err
	}

	requestID := uuid.New().String()
	c.logger.Info("api request",
		zap.Int("rps", c.limiter.CurrentCount()),
		zap.String("method", method),
		zap.String("url", target),
		zap.String("request_id", requestID),
	)

	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := withTimeout(ctx, c.timeout)
	if cancel != nil {
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, method, target, payload)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, requestID)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.limiter.Enabled() {
		c.limiter.RecordRequest()
	}
	if err != nil {
		return nil, c.transportError(method, target, host, requestID, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(method, target, host, requestID, fmt.Errorf("read response: %w", err))
	}
	metrics.RecordAPIRequest(host, method, resp.StatusCode, time.Since(started))

	var data json.RawMessage
	if isJSON(resp.Header.Get("Content-Type")) && len(bytes.TrimSpace(raw)) > 0 {
		if !json.Valid(raw) {
			return nil, c.transportError(method, target, host, requestID, ErrMalformedResponse)
		}
		data = json.RawMessage(raw)
	}

	if _, bad := c.badStatus[resp.StatusCode]; bad {
		failure := &Failure{Raw: data, Detail: c.transform(data, requestID), StatusCode: resp.StatusCode}
		c.logger.Error(fmt.Sprintf("Error status code (%d)!", resp.StatusCode),
			zap.String("method", method),
			zap.String("url", target),
			zap.String("request_id", requestID),
			zap.String("error", failure.Message()),
		)
		metrics.RecordAPIFailure(host, resp.StatusCode)
		return &Result{Failure: failure}, nil
	}

	c.logger.Debug("api response",
		zap.Int("status_code", resp.StatusCode),
		zap.String("request_id", requestID),
	)
	return &Result{Success: &Success{Payload: data, StatusCode: resp.StatusCode}}, nil
}

// throttle applies the cool-down when the current second has no room left.
func (c *Client) throttle(ctx context.Context, host string) error {
	if !c.limiter.Enabled() || !c.limiter.Exhausted() {
		return nil
	}

	for {
		c.logger.Warn(fmt.Sprintf("Your request reached rate limits! sleeping for %s..", c.coolDown),
			zap.Int("rps", c.limiter.CurrentCount()),
			zap.Int("ceiling", c.limiter.Ceiling()),
		)
		metrics.RecordThrottleWait(host)
		if err := c.sleep(ctx, c.coolDown); err != nil {
			return err
		}
		if c.waitPolicy != WaitUntilClear || !c.limiter.Exhausted() {
			return nil
		}
	}
}

func (c *Client) transform(raw json.RawMessage, requestID string) any {
	detail, err := c.schema.Transform(raw)
	if err != nil {
		c.logger.Warn("error schema transform failed, using raw payload",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return raw
	}
	return detail
}

func (c *Client) transportError(method, target, host, requestID string, err error) error {
	terr := &TransportError{Method: method, URL: target, Err: err}
	c.logger.Error("api transport failure",
		zap.String("method", method),
		zap.String("url", target),
		zap.String("request_id", requestID),
		zap.Bool("timeout", terr.Timeout()),
		zap.Error(err),
	)
	metrics.RecordTransportError(host, terr.Timeout())
	return terr
}

func (c *Client) allowed(method string) bool {
	for _, m := range c.methods {
		if m == method {
			return true
		}
	}
	return false
}

func (c *Client) resolve(endpoint string, query url.Values) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	target := c.baseURL + endpoint
	if len(query) == 0 {
		return target
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return target + "?" + query.Encode()
	}
	merged := parsed.Query()
	for key, values := range query {
		for _, value := range values {
			merged.Add(key, value)
		}
	}
	parsed.RawQuery = merged.Encode()
	return parsed.String()
}

func encodeBody(body any) (io.Reader, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return bytes.NewReader(v), nil
	case []byte:
		return bytes.NewReader(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode request: %w", err)
		}
		return bytes.NewReader(data), nil
	}
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func hostOf(baseURL string) string {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return baseURL
	}
	return parsed.Host
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, timeout)
}
