// Package fetch is the resilient outbound HTTP layer: bounded retries with
// exponential backoff, a circuit breaker, and a session-lifetime result cache
// keyed by the full query URL.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/JuanD1P/AGRO-SABANA/pkg/metrics"
)

// BackoffConfig controls exponential backoff behaviour. MaxAttempts counts
// upstream calls in total, not retries after the first.
type BackoffConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Config bundles the HTTP client and resilience settings.
type Config struct {
	Client  *http.Client
	Backoff BackoffConfig
	Metrics *metrics.Collector
}

var (
	// ErrRateLimited and ErrServerError mark retryable upstream responses.
	ErrRateLimited = errors.New("rate limited")
	ErrServerError = errors.New("server error")
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("circuit breaker open")

	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// StatusError is a non-retryable non-2xx response. Client errors other than
// 429 fail immediately: retrying them would not change the answer.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d", e.Status)
}

type cacheEntry struct {
	body []byte
	err  error
}

// Client performs GET requests with retries, a circuit breaker and a
// memoization cache that lives for the client's lifetime. Entries are never
// evicted: one session scores a bounded, small set of queries.
type Client struct {
	cfg     Config
	circuit *gobreaker.CircuitBreaker

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

// DefaultBackoff matches the retry contract of the pipeline: at most 3
// upstream calls, pausing 1s then 2s between them (doubling, capped at 4s).
var DefaultBackoff = BackoffConfig{
	MaxAttempts:     3,
	InitialInterval: 1 * time.Second,
	MaxInterval:     4 * time.Second,
}

// NewClient creates a fetch client. Zero-valued config fields get defaults.
func NewClient(cfg Config) *Client {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Backoff.MaxAttempts == 0 && cfg.Backoff.InitialInterval == 0 {
		cfg.Backoff = DefaultBackoff
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		cfg:     cfg,
		circuit: cb,
		cache:   make(map[string]*cacheEntry),
	}
}

// GetJSON fetches url and decodes the response body into v. Results, success
// or final failure, are memoized by url; repeat calls never hit the network.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	c.mu.Lock()
	entry, ok := c.cache[url]
	c.mu.Unlock()

	if ok {
		c.cfg.Metrics.RecordCacheHit()
		if entry.err != nil {
			return entry.err
		}
		return json.Unmarshal(entry.body, v)
	}
	c.cfg.Metrics.RecordCacheMiss()

	body, err := c.get(ctx, url)

	// Cancellation is the caller's problem, not a fact about the query:
	// do not poison the key for later callers.
	if err == nil || !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		c.mu.Lock()
		if _, exists := c.cache[url]; !exists {
			c.cache[url] = &cacheEntry{body: body, err: err}
		}
		c.mu.Unlock()
	}

	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// get executes the request with retries, exponential backoff and the circuit
// breaker, returning the response body on success.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if c.cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if c.cfg.Backoff.MaxAttempts <= 0 || c.cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		result, err := c.circuit.Execute(func() (interface{}, error) {
			resp, execErr := c.cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
			if readErr != nil {
				return nil, readErr
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, fmt.Errorf("%w: %s", ErrRateLimited, apiMessage(body))
			}
			if resp.StatusCode >= 500 {
				return nil, fmt.Errorf("%w: http %d %s", ErrServerError, resp.StatusCode, apiMessage(body))
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &StatusError{Status: resp.StatusCode, Message: apiMessage(body)}
			}

			return body, nil
		})

		if err == nil {
			c.cfg.Metrics.RecordFetchAttempt("ok")
			body, ok := result.([]byte)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return body, nil
		}

		// If the circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.cfg.Metrics.RecordFetchAttempt("failed")
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}

		// Non-retryable status: fail fast.
		var se *StatusError
		if errors.As(err, &se) {
			c.cfg.Metrics.RecordFetchAttempt("failed")
			return nil, se
		}

		lastErr = err
		attempt++
		if attempt >= c.cfg.Backoff.MaxAttempts {
			c.cfg.Metrics.RecordFetchAttempt("failed")
			return nil, lastErr
		}
		c.cfg.Metrics.RecordFetchAttempt("retryable")
		c.cfg.Metrics.RecordFetchRetry()

		delay := c.cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt-1)))
		if c.cfg.Backoff.MaxInterval > 0 && delay > c.cfg.Backoff.MaxInterval {
			delay = c.cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// apiMessage extracts a human-readable message from an upstream error body.
// Open-Meteo reports {"reason": "..."}; some services use {"error": "..."}.
func apiMessage(body []byte) string {
	var payload struct {
		Reason string `json:"reason"`
		Error  any    `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Reason != "" {
			return payload.Reason
		}
		if s, ok := payload.Error.(string); ok && s != "" {
			return s
		}
	}
	const max = 160
	s := string(body)
	if len(s) > max {
		s = s[:max]
	}
	return s
}
