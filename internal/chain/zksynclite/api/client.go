package api

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
	"strings"
	"time"

	"github.com/emperorhan/zklite-indexer/internal/chain/ratelimit"
	"github.com/emperorhan/zklite-indexer/internal/circuitbreaker"
	"github.com/emperorhan/zklite-indexer/internal/metrics"
)

const (
	DefaultBaseURL        = "https://api.zksync.io/api/v0.2/"
	DefaultBackoffUnit    = time.Second
	DefaultBackoffCeiling = 33
	DefaultTimeout        = 30 * time.Second
)

// RemoteError is returned for every failure talking to the zkSync Lite API:
// transport errors, rate limiting past the backoff ceiling, non-200 statuses
// and malformed envelopes. It aborts the current call only.
type RemoteError struct {
	URL        string
	StatusCode int
	Msg        string
	Err        error
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString("zksync lite api request ")
	b.WriteString(e.URL)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (http status %d)", e.StatusCode)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemoteError reports whether err carries a RemoteError.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// Querier is the read-only surface of the zkSync Lite API used by the pipeline.
type Querier interface {
	Query(ctx context.Context, path string, options url.Values) (json.RawMessage, error)
}

// Config tunes the API client. Zero values select the defaults above.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	BackoffUnit    time.Duration
	BackoffCeiling int
}

// Client talks to the zkSync Lite REST API v0.2.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	backoffUnit    time.Duration
	backoffCeiling int
	limiter        *ratelimit.Limiter
	breaker        *circuitbreaker.Breaker
	sleepFn        func(ctx context.Context, d time.Duration) error
	logger         *slog.Logger
}

// NewClient creates a client for cfg.BaseURL. Attach a limiter and breaker
// with SetRateLimiter and SetCircuitBreaker.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = DefaultBackoffUnit
	}
	if cfg.BackoffCeiling <= 0 {
		cfg.BackoffCeiling = DefaultBackoffCeiling
	}
	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		baseURL:        cfg.BaseURL,
		backoffUnit:    cfg.BackoffUnit,
		backoffCeiling: cfg.BackoffCeiling,
		sleepFn:        sleepCtx,
		logger:         logger.With("component", "zksynclite_api"),
	}
}

// SetRateLimiter attaches a client-side limiter consulted before every request.
func (c *Client) SetRateLimiter(l *ratelimit.Limiter) {
	c.limiter = l
}

// SetCircuitBreaker attaches a breaker that short-circuits calls while open.
func (c *Client) SetCircuitBreaker(b *circuitbreaker.Breaker) {
	c.breaker = b
}

// Query performs GET {base}/{path}?{options} and returns the value of the
// top-level "result" key.
//
// HTTP 429 is retried with exponential backoff (1, 2, 4, ... units) for as
// long as the accumulated sleep stays within the backoff ceiling. Everything
// else that is not a 200 with a JSON object carrying "result" fails at once.
func (c *Client) Query(ctx context.Context, path string, options url.Values) (json.RawMessage, error) {
	endpoint := endpointLabel(path)
	reqURL := c.requestURL(path, options)

	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return nil, &RemoteError{URL: reqURL, Msg: "request rejected", Err: err}
		}
	}

	result, err := c.query(ctx, endpoint, reqURL)
	if c.breaker != nil {
		switch {
		case err == nil:
			c.breaker.RecordSuccess()
		case ctx.Err() != nil:
			c.breaker.Cancel()
		default:
			c.breaker.RecordFailure()
		}
	}
	return result, err
}

func (c *Client) requestURL(path string, options url.Values) string {
	reqURL := c.baseURL + strings.TrimPrefix(path, "/")
	if len(options) > 0 {
		reqURL += "?" + options.Encode()
	}
	return reqURL
}

func (c *Client) query(ctx context.Context, endpoint, reqURL string) (json.RawMessage, error) {
	backoff := 1
	slept := 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &RemoteError{URL: reqURL, Msg: "rate limiter wait", Err: err}
		}

		c.logger.Debug("querying zksync lite", "url", reqURL)
		start := time.Now()
		status, body, err := c.get(ctx, reqURL)
		metrics.RemoteLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.RemoteRequestsTotal.WithLabelValues(endpoint, "error").Inc()
			return nil, &RemoteError{URL: reqURL, Msg: "request failed", Err: err}
		}
		metrics.RemoteRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", status)).Inc()

		if status == http.StatusTooManyRequests {
			if backoff >= c.backoffCeiling || slept+backoff > c.backoffCeiling {
				return nil, &RemoteError{
					URL:        reqURL,
					StatusCode: status,
					Msg:        "too many requests even after incremental backoff",
				}
			}
			c.logger.Debug("zksync lite rate limited, backing off",
				"url", reqURL,
				"backoff_units", backoff,
			)
			metrics.RemoteBackoffsTotal.WithLabelValues(endpoint).Inc()
			if err := c.sleepFn(ctx, time.Duration(backoff)*c.backoffUnit); err != nil {
				return nil, &RemoteError{URL: reqURL, StatusCode: status, Msg: "backoff interrupted", Err: err}
			}
			slept += backoff
			backoff *= 2
			continue
		}

		if status != http.StatusOK {
			return nil, &RemoteError{URL: reqURL, StatusCode: status, Msg: "unexpected response: " + truncate(body)}
		}

		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, &RemoteError{URL: reqURL, StatusCode: status, Msg: "invalid json response: " + truncate(body), Err: err}
		}
		result, ok := envelope["result"]
		if !ok || len(result) == 0 || bytes.Equal(bytes.TrimSpace(result), []byte("null")) {
			return nil, &RemoteError{URL: reqURL, StatusCode: status, Msg: "missing result in response: " + truncate(body)}
		}
		return result, nil
	}
}

func (c *Client) get(ctx context.Context, reqURL string) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// endpointLabel collapses addresses and hashes so metric labels stay bounded.
func endpointLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if strings.HasPrefix(p, "0x") || strings.HasPrefix(p, "sync-tx:") {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func truncate(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
