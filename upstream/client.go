package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/kantodex/observe"
	"github.com/jonwraymond/kantodex/resilience"
)

// Defaults.
const (
	DefaultBaseURL      = "https://pokeapi.co/api/v2"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 4 << 20
	DefaultUserAgent    = "kantodex"
)

// Config configures a Client.
type Config struct {
	// BaseURL prefixes relative paths.
	// Default: https://pokeapi.co/api/v2
	BaseURL string

	// Timeout bounds each request attempt.
	// Default: 30s
	Timeout time.Duration

	// MaxAttempts is the number of attempts per request, including the first.
	// Default: 1 (no retry)
	MaxAttempts int

	// RetryDelay is the initial backoff between attempts.
	// Default: 100ms
	RetryDelay time.Duration

	// BreakerFailures opens a circuit breaker after this many consecutive
	// failures. Default: 0 (no breaker)
	BreakerFailures int

	// BreakerReset is how long an open breaker waits before probing.
	// Default: 30s
	BreakerReset time.Duration

	// MaxConcurrent caps in-flight requests. Default: 0 (unbounded)
	MaxConcurrent int

	// MaxBodyBytes limits response bodies.
	// Default: 4 MiB
	MaxBodyBytes int64

	// UserAgent is sent with every request.
	// Default: kantodex
	UserAgent string
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

// Executor builds the resilience executor described by the config.
func (c Config) Executor() *resilience.Executor {
	c = c.withDefaults()

	opts := []resilience.ExecutorOption{resilience.WithTimeout(c.Timeout)}
	if c.MaxAttempts > 1 {
		opts = append(opts, resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  c.MaxAttempts,
			InitialDelay: c.RetryDelay,
			Jitter:       true,
		})))
	}
	if c.BreakerFailures > 0 {
		opts = append(opts, resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:  c.BreakerFailures,
			ResetTimeout: c.BreakerReset,
		})))
	}
	if c.MaxConcurrent > 0 {
		opts = append(opts, resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: c.MaxConcurrent,
		})))
	}
	return resilience.NewExecutor(opts...)
}

// Fetcher is the read side of a Client.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: implementations must honor cancellation.
// - Errors: failures should match the package sentinels.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (Document, error)
}

// Client fetches JSON documents from the upstream.
type Client struct {
	cfg       Config
	base      *url.URL
	exec      *resilience.Executor
	transport http.RoundTripper
	tracer    trace.TracerProvider
	logger    observe.Logger

	mu     sync.Mutex
	http   *http.Client
	closed bool
}

// Option configures a Client.
type Option func(*Client)

// WithExecutor replaces the executor built from Config.
func WithExecutor(e *resilience.Executor) Option {
	return func(c *Client) {
		if e != nil {
			c.exec = e
		}
	}
}

// WithTransport sets the base round tripper wrapped by otelhttp.
// Default: http.DefaultTransport
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithTracerProvider sets the provider used for request spans.
// Default: the global provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp
	}
}

// WithLogger sets the client logger.
func WithLogger(l observe.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client. No connections are opened until the first Fetch.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream: invalid base URL %q", cfg.BaseURL)
	}

	c := &Client{
		cfg:    cfg,
		base:   base,
		logger: observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.exec == nil {
		c.exec = cfg.Executor()
	}
	return c, nil
}

// Fetch issues a GET and returns the JSON body. path is either relative to
// BaseURL ("/pokemon?limit=151") or an absolute URL.
func (c *Client) Fetch(ctx context.Context, path string) (Document, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, &Error{URL: path, Kind: ErrTransport, Cause: err}
	}

	hc, err := c.acquire()
	if err != nil {
		return nil, &Error{URL: target, Kind: ErrClosed}
	}

	start := time.Now()
	var doc Document
	err = c.exec.Execute(ctx, func(ctx context.Context) error {
		d, err := c.do(ctx, hc, target)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})

	if err != nil {
		err = asError(target, err)
		c.logger.Debug(ctx, "upstream request failed",
			observe.F("url", target),
			observe.F("status", StatusCode(err)),
			observe.F("error", err),
		)
		return nil, err
	}

	c.logger.Debug(ctx, "upstream request",
		observe.F("url", target),
		observe.F("bytes", len(doc)),
		observe.F("duration_ms", float64(time.Since(start).Microseconds())/1000),
	)
	return doc, nil
}

// Ping fetches a one-item index page.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Fetch(ctx, "/pokemon?limit=1")
	return err
}

// Close releases pooled connections. Safe to call repeatedly or before
// any Fetch.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.http != nil {
		c.http.CloseIdleConnections()
		c.http = nil
	}
	return nil
}

// CircuitBreaker returns the breaker guarding requests, or nil when
// BreakerFailures is 0.
func (c *Client) CircuitBreaker() *resilience.CircuitBreaker {
	return c.exec.CircuitBreaker()
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

func (c *Client) acquire() (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.http == nil {
		base := c.transport
		if base == nil {
			base = http.DefaultTransport.(*http.Transport).Clone()
		}
		otelOpts := []otelhttp.Option{
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "upstream " + r.Method + " " + r.URL.Path
			}),
		}
		if c.tracer != nil {
			otelOpts = append(otelOpts, otelhttp.WithTracerProvider(c.tracer))
		}
		c.http = &http.Client{Transport: otelhttp.NewTransport(base, otelOpts...)}
	}
	return c.http, nil
}

func (c *Client) resolve(path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		u, err := url.Parse(path)
		if err != nil {
			return "", err
		}
		return u.String(), nil
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + ref.Path
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, target string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{URL: target, Kind: ErrTransport, Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &Error{URL: target, Kind: ErrTransport, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
		return nil, &Error{URL: target, StatusCode: resp.StatusCode, Kind: ErrStatus}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, &Error{URL: target, StatusCode: resp.StatusCode, Kind: ErrTransport, Cause: err}
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return nil, &Error{URL: target, StatusCode: resp.StatusCode, Kind: ErrMalformed,
			Cause: fmt.Errorf("body exceeds %d bytes", c.cfg.MaxBodyBytes)}
	}
	if !validDocument(body) {
		return nil, &Error{URL: target, StatusCode: resp.StatusCode, Kind: ErrMalformed}
	}
	return Document(body), nil
}

// asError makes sure every failure leaving Fetch is an *Error. Guard errors
// from the executor (open circuit, full bulkhead, timeout) keep their chain
// under Cause.
func asError(target string, err error) error {
	var ue *Error
	if errors.As(err, &ue) {
		if ue == err {
			return ue
		}
		return &Error{URL: target, StatusCode: ue.StatusCode, Kind: ue.Kind, Cause: err}
	}
	return &Error{URL: target, Kind: ErrTransport, Cause: err}
}

var _ Fetcher = (*Client)(nil)
