// Package fetch is the gateway's upstream HTTP client. Each upstream host gets its own circuit
// breaker so one unreachable mirror does not slow down the others.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/guttosm/offline-cache/internal/circuitbreaker"
	"github.com/guttosm/offline-cache/internal/metrics"
	"github.com/rs/zerolog/log"
)

// ErrBodyTooLarge is returned when an upstream body exceeds MaxBodySize.
var ErrBodyTooLarge = errors.New("fetch: response body too large")

// StatusError reports a non-2xx upstream answer. Response holds what the origin sent.
type StatusError struct {
	URL        string
	StatusCode int
	Response   *Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: %s returned %d", e.URL, e.StatusCode)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Response is a fully read upstream response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Config holds upstream client configuration.
type Config struct {
	// Timeout bounds a whole request including the body read.
	Timeout time.Duration
	// MaxBodySize caps how much of a body is read.
	MaxBodySize int64
	// UserAgent is sent with every request that does not set one. Tile servers require it.
	UserAgent string
	// ProbeURL is requested by Online. Empty means always online.
	ProbeURL string
	// Breaker is the base configuration of the per-host circuit breakers.
	Breaker circuitbreaker.Config
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:     10 * time.Second,
		MaxBodySize: 10 * 1024 * 1024,
		UserAgent:   "offline-cache/1.0",
		Breaker:     circuitbreaker.DefaultConfig(),
	}
}

// Client fetches upstream resources.
type Client struct {
	cfg      Config
	http     *http.Client
	breakers *circuitbreaker.Registry
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client.
func New(cfg Config, opts ...Option) *Client {
	breakerCfg := cfg.Breaker
	breakerCfg.IsFailure = isBreakerFailure
	breakerCfg.OnStateChange = func(name string, _, to circuitbreaker.State) {
		metrics.SetCircuitBreakerState(name, int(to))
	}

	c := &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		breakers: circuitbreaker.NewRegistry(breakerCfg),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// isBreakerFailure counts transport errors and 5xx answers; 4xx means the host is up.
func isBreakerFailure(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return !errors.Is(err, ErrBodyTooLarge)
}

// Get fetches url. Non-2xx answers return both the response and a *StatusError.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, &StatusError{URL: url, StatusCode: resp.StatusCode, Response: resp}
	}
	return resp, nil
}

// Do sends req through the breaker of its host. Any status is returned without error;
// errors are transport failures, an open circuit or an oversized body.
func (c *Client) Do(req *http.Request) (*Response, error) {
	if req.Header.Get("User-Agent") == "" && c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	host := req.URL.Host
	start := time.Now()

	var resp *Response
	err := c.breakers.Get(host).Execute(req.Context(), func() error {
		r, err := c.roundTrip(req)
		if err != nil {
			return err
		}
		resp = r
		if r.StatusCode >= 500 {
			return &StatusError{URL: r.URL, StatusCode: r.StatusCode, Response: r}
		}
		return nil
	})

	switch {
	case resp != nil:
		metrics.RecordUpstreamFetch(host, statusClass(resp.StatusCode), time.Since(start))
		return resp, nil
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		metrics.RecordUpstreamFetch(host, "circuit_open", time.Since(start))
		return nil, fmt.Errorf("fetch %s: %w", req.URL, err)
	default:
		metrics.RecordUpstreamFetch(host, "error", time.Since(start))
		log.Debug().Err(err).Str("url", req.URL.String()).Msg("Upstream fetch failed")
		return nil, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
}

func (c *Client) roundTrip(req *http.Request) (*Response, error) {
	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	reader := io.Reader(httpResp.Body)
	if c.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(httpResp.Body, c.cfg.MaxBodySize+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if c.cfg.MaxBodySize > 0 && int64(len(body)) > c.cfg.MaxBodySize {
		return nil, ErrBodyTooLarge
	}

	return &Response{
		URL:        req.URL.String(),
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       body,
	}, nil
}

// Online probes connectivity with a HEAD request to ProbeURL. Any HTTP answer counts as online.
func (c *Client) Online(ctx context.Context) bool {
	if c.cfg.ProbeURL == "" {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.cfg.ProbeURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", c.cfg.ProbeURL).Msg("Connectivity probe failed")
		return false
	}
	_ = resp.Body.Close()
	return true
}

// BreakerStats returns the state of every host breaker.
func (c *Client) BreakerStats() []circuitbreaker.Stats {
	return c.breakers.Stats()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
