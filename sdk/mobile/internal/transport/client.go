package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/adgeist/adgeistkit/internal/observability"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/storage"
)

// UserAgent is sent on every request.
const UserAgent = "AdgeistKit/1.0.0 Go"

// ImpressionPath receives every analytics event.
const ImpressionPath = "/v2/ssp/impression"

const maxResponseBytes = 4 << 20

// ErrDecode wraps a 2xx response whose body could not be decoded.
var ErrDecode = errors.New("transport: decode response")

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Options configure a Client.
type Options struct {
	// BaseURL is the scheme and host of the backend, e.g. "https://api.example.com".
	BaseURL string
	APIKey  string
	// Origin is sent as the Origin header when set.
	Origin  string
	Timeout time.Duration
	// Retry defaults to DefaultRetry.
	Retry RetryStrategy
	// RequestsPerSecond caps outgoing requests. Zero means unlimited.
	RequestsPerSecond float64
	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// Request describes one JSON call relative to the BaseURL.
type Request struct {
	Method string // defaults to POST
	Path   string
	Query  url.Values
	Header http.Header
	Body   any
}

// Client sends JSON requests to the ad backend. It retries network errors,
// 429 and 5xx responses, honoring Retry-After, and returns 4xx immediately.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	origin  string
	retry   RetryStrategy
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	if opts.Retry == nil {
		opts.Retry = DefaultRetry
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.Discard()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = max(1, int(opts.RequestsPerSecond))
	}

	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: observability.HTTPClientMetrics(opts.Metrics)(opts.Transport),
		},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		origin:  opts.Origin,
		retry:   opts.Retry,
		limiter: rate.NewLimiter(limit, burst),
		logger:  opts.Logger.With("component", "transport"),
	}
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// PostJSON posts body to path and decodes the response into out, which may be nil.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	_, err := c.Do(ctx, Request{Path: path, Body: body}, out)
	return err
}

// Do performs req with retries and decodes a 2xx body into out (if non-nil).
// It returns the last HTTP status seen, or 0 if no response arrived.
func (c *Client) Do(ctx context.Context, req Request, out any) (int, error) {
	var payload []byte
	if req.Body != nil {
		var err error
		if payload, err = json.Marshal(req.Body); err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
	}

	var lastErr error
	var status int
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return status, fmt.Errorf("context canceled: %w", err)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return status, fmt.Errorf("rate limit: %w", err)
		}

		var retryAfter string
		var err error
		status, retryAfter, err = c.attempt(ctx, req, payload, out)
		if err == nil {
			return status, nil
		}
		if errors.Is(err, ErrDecode) {
			return status, err
		}
		if status != 0 && !isRetryableStatus(status) {
			return status, fmt.Errorf("non-retryable error: %w", err)
		}
		lastErr = err

		delay := c.retryDelay(attempt, retryAfter)
		if delay == 0 {
			break
		}
		c.logger.Debug("retrying request", "path", req.Path, "status", status,
			"delay", delay, "attempt", attempt+1, "max", c.retry.MaxAttempts(), "error", err)
		if !sleepWithContext(ctx, delay) {
			return status, fmt.Errorf("context canceled during retry wait: %w", ctx.Err())
		}
	}
	return status, fmt.Errorf("all retries exhausted: %w", lastErr)
}

func (c *Client) attempt(ctx context.Context, req Request, payload []byte, out any) (int, string, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", UserAgent)
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}
	if c.origin != "" {
		httpReq.Header.Set("Origin", c.origin)
	}
	for k, vs := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, resp.Header.Get("Retry-After"),
			&StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 256)}
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, "", fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}
	return resp.StatusCode, "", nil
}

// Send delivers queued analytics events one by one to ImpressionPath, in
// order. It stops at the first retryable failure and returns the number of
// leading events consumed. An event the backend rejects with a 4xx is
// consumed as well, since resending it cannot succeed.
func (c *Client) Send(ctx context.Context, events []storage.PendingEvent) (int, error) {
	for i, e := range events {
		status, err := c.Do(ctx, Request{Path: ImpressionPath, Body: json.RawMessage(e.Payload)}, nil)
		if err == nil {
			continue
		}
		if status >= 400 && !isRetryableStatus(status) {
			c.logger.Warn("analytics event rejected", "type", e.EventType, "status", status,
				"idempotency_key", e.IdempotencyKey)
			continue
		}
		return i, fmt.Errorf("deliver %s event %d: %w", e.EventType, e.ID, err)
	}
	return len(events), nil
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// retryDelay is the strategy's delay, raised to Retry-After when the header
// asks for longer.
func (c *Client) retryDelay(attempt int, retryAfter string) time.Duration {
	strategyDelay := c.retry.NextDelay(attempt)
	if strategyDelay == 0 || retryAfter == "" {
		return strategyDelay
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return max(time.Duration(seconds)*time.Second, strategyDelay)
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		return max(time.Until(t), strategyDelay)
	}
	return strategyDelay
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
