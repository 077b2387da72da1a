package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/portfoliotools/coinbuyer/internal/ratelimit"
)

// DefaultCoolDown is the pause applied when the rate ceiling is reached.
const DefaultCoolDown = time.Second

// Logger is the structured sink the client writes decision points to.
// *zap.Logger and the gofulmen logger both satisfy it.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// WaitPolicy selects what happens after a throttle cool-down.
type WaitPolicy int

const (
	// WaitOnce sleeps one cool-down and then proceeds regardless.
	WaitOnce WaitPolicy = iota
	// WaitUntilClear keeps sleeping cool-downs until the current second has room.
	WaitUntilClear
)

func (p WaitPolicy) String() string {
	switch p {
	case WaitOnce:
		return "once"
	case WaitUntilClear:
		return "until_clear"
	default:
		return fmt.Sprintf("WaitPolicy(%d)", int(p))
	}
}

// ParseWaitPolicy accepts "once" and "until_clear" (also "until-clear").
func ParseWaitPolicy(value string) (WaitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "once":
		return WaitOnce, nil
	case "until_clear", "until-clear":
		return WaitUntilClear, nil
	default:
		return WaitOnce, fmt.Errorf("unknown wait policy: %s", value)
	}
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the base URL given to New. Empty values are ignored.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithHeaders adds default headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for key, value := range headers {
			c.headers[key] = value
		}
	}
}

// WithAllowedMethods replaces the method allow-list.
func WithAllowedMethods(methods ...string) Option {
	return func(c *Client) {
		if len(methods) == 0 {
			return
		}
		c.methods = normalizeMethods(methods)
	}
}

// WithRateLimit caps the client at rps requests per second using a limiter
// owned by this client. Zero disables limiting.
func WithRateLimit(rps int) Option {
	return func(c *Client) {
		c.rateLimit = rps
	}
}

// WithLimiter shares an existing limiter with this client. It takes
// precedence over WithRateLimit.
func WithLimiter(limiter *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithErrorStatusCodes adds status codes to the base bad-status set.
func WithErrorStatusCodes(codes ...int) Option {
	return func(c *Client) {
		c.customStatus = append(c.customStatus, codes...)
	}
}

// WithErrorSchema sets the transform applied to failure payloads.
func WithErrorSchema(schema ErrorSchema) Option {
	return func(c *Client) {
		if schema != nil {
			c.schema = schema
		}
	}
}

// WithProxy routes every request through the given proxy URL.
func WithProxy(proxy string) Option {
	return func(c *Client) {
		c.proxy = strings.TrimSpace(proxy)
	}
}

// WithLogger sets the log sink.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLogging toggles logging entirely.
func WithLogging(enabled bool) Option {
	return func(c *Client) {
		c.loggingDisabled = !enabled
	}
}

// WithCoolDown overrides the throttle cool-down duration.
func WithCoolDown(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.coolDown = d
		}
	}
}

// WithWaitPolicy selects the throttle wait policy.
func WithWaitPolicy(policy WaitPolicy) Option {
	return func(c *Client) {
		c.waitPolicy = policy
	}
}

// WithTimeout bounds every call, including reading the response body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient supplies the HTTP client. The caller keeps ownership: Close
// does not release its connections, and WithProxy is ignored.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithSleeper replaces the cool-down sleep. Intended for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func normalizeMethods(methods []string) []string {
	seen := make(map[string]struct{}, len(methods))
	out := make([]string, 0, len(methods))
	for _, method := range methods {
		m := strings.ToUpper(strings.TrimSpace(method))
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
