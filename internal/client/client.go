// Package client provides an HTTP client for the adsign API, used by both
// the admin CLI and the display player
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// apiPrefix is prepended to every API path
const apiPrefix = "/api/v1alpha1"

// RetryConfig bounds retries of transient failures
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the retry policy used unless overridden
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Client provides methods for interacting with the adsign API
type Client struct {
	// baseURL is the root URL for all API requests
	baseURL *url.URL
	// httpClient is the underlying HTTP client
	httpClient *http.Client
	// token is the admin bearer token, empty for device calls
	token   string
	retry   RetryConfig
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithToken sets the admin bearer token
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTLSConfig sets custom TLS configuration
func WithTLSConfig(config *tls.Config) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{
			Transport: &http.Transport{TLSClientConfig: config},
			Timeout:   c.httpClient.Timeout,
		}
	}
}

// WithTimeout bounds each individual HTTP call
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetry replaces the retry policy
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithLogger sets the logger used for retries and breaker transitions
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a new API client
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	u.Path = ""

	c := &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry:  DefaultRetryConfig(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "adsign-api",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Client errors mean the server is healthy
		IsSuccessful: func(err error) bool {
			return err == nil || !transient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return c, nil
}

// BreakerState reports the circuit breaker state
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// callMode selects the retry policy of a call
type callMode int

const (
	// once never retries
	once callMode = iota
	// idempotent retries every transient failure
	idempotent
	// unprocessed retries only responses proving the server did nothing
	unprocessed
)

// do sends body as JSON to path and decodes the response into out
func (c *Client) do(ctx context.Context, mode callMode, method, p string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error encoding request body: %w", err)
		}
	}

	attempt := func() ([]byte, error) {
		return c.breaker.Execute(func() ([]byte, error) {
			return c.roundTrip(ctx, method, p, payload)
		})
	}

	var data []byte
	var err error
	if mode == once {
		data, err = attempt()
	} else {
		data, err = c.withRetry(ctx, mode, method, p, attempt)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	if err != nil {
		return err
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}
	return nil
}

func (c *Client) withRetry(ctx context.Context, mode callMode, method, p string, attempt func() ([]byte, error)) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retry.InitialInterval
	policy.MaxInterval = c.retry.MaxInterval
	policy.MaxElapsedTime = 0

	var data []byte
	operation := func() error {
		var err error
		data, err = attempt()
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		if mode == unprocessed && !notProcessed(err) {
			return backoff.Permanent(err)
		}
		if !transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug().
			Err(err).
			Str("method", method).
			Str("path", p).
			Dur("retryIn", wait).
			Msg("retrying request")
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, c.retry.MaxRetries), ctx),
		notify,
	)
	return data, err
}

// roundTrip performs one HTTP exchange. Non-2xx responses become *APIError.
func (c *Client) roundTrip(ctx context.Context, method, p string, payload []byte) ([]byte, error) {
	u := *c.baseURL
	rawPath, rawQuery, _ := strings.Cut(p, "?")
	u.Path = path.Join(apiPrefix, rawPath)
	u.RawQuery = rawQuery

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, data)
	}
	return data, nil
}

// EventsURL returns the websocket URL carrying events for the display owning token
func (c *Client) EventsURL(token string) string {
	u := *c.baseURL
	u.Scheme = "ws"
	if c.baseURL.Scheme == "https" {
		u.Scheme = "wss"
	}
	u.Path = path.Join(apiPrefix, "displays/ws")
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String()
}
