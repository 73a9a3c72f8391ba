package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/kantodex/health"
	"github.com/jonwraymond/kantodex/observe"
	"github.com/jonwraymond/kantodex/pokedex"
	"github.com/jonwraymond/kantodex/resilience"
)

// Defaults.
const (
	DefaultAddr            = ":8000"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultServiceName     = "kantodex"
)

// Pokedex is the service surface the routes need.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: ErrNotFound and ErrUpstreamUnavailable from package pokedex
// select 404 and 503; anything else is 503.
type Pokedex interface {
	ListCreatures(ctx context.Context, limit int) ([]pokedex.ListItem, error)
	GetDetail(ctx context.Context, id int) (*pokedex.Detail, error)
	GetEvolutionChain(ctx context.Context, id int) (*pokedex.EvolutionChain, error)
	CompareCreatures(ctx context.Context, ids []int) ([]pokedex.Detail, error)
}

// Config configures a Server.
type Config struct {
	// Addr is the listen address.
	// Default: ":8000"
	Addr string

	// ServiceName labels health responses and server spans.
	// Default: "kantodex"
	ServiceName string

	// CORSOrigins lists allowed browser origins. "*" allows any origin.
	// Default: none (no CORS headers)
	CORSOrigins []string

	// ListLimit is passed to ListCreatures.
	// Default: 151
	ListLimit int

	// RateLimit is inbound requests per second on the API routes.
	// Default: 0 (unlimited)
	RateLimit float64

	// RateBurst is the inbound burst size.
	// Default: 2 x RateLimit
	RateBurst int

	ReadTimeout     time.Duration // Default: 10s
	WriteTimeout    time.Duration // Default: 120s
	ShutdownTimeout time.Duration // Default: 15s
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.ListLimit <= 0 {
		c.ListLimit = pokedex.KantoMaxID
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		c.RateBurst = max(1, int(2*c.RateLimit))
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	return c
}

// Server serves the API.
type Server struct {
	cfg     Config
	svc     Pokedex
	health  *health.Aggregator
	metrics http.Handler
	logger  observe.Logger
	tracer  trace.TracerProvider
	limiter *resilience.RateLimiter
	now     func() time.Time

	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithHealth mounts /healthz, /readyz and /health backed by agg.
func WithHealth(agg *health.Aggregator) Option {
	return func(s *Server) {
		s.health = agg
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the access and error logger.
func WithLogger(l observe.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracerProvider sets the provider for server spans.
// Default: the global provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		s.tracer = tp
	}
}

// WithClock sets the rate limiter time source.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Server. svc must not be nil.
func New(cfg Config, svc Pokedex, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg.withDefaults(),
		svc:    svc,
		logger: observe.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.RateLimit > 0 {
		s.limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:  s.cfg.RateLimit,
			Burst: s.cfg.RateBurst,
			Now:   s.now,
		})
	}
	s.handler = s.build()
	return s
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) build() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/pokemon", s.handleList)
	api.HandleFunc("GET /api/v1/pokemon/compare", s.handleCompare)
	api.HandleFunc("GET /api/v1/pokemon/{id}", s.handleDetail)
	api.HandleFunc("GET /api/v1/pokemon/{id}/evolution", s.handleEvolution)

	root := http.NewServeMux()
	root.Handle("/api/", s.rateLimit(api))
	if s.health != nil {
		health.RegisterHandlers(root, s.cfg.ServiceName, s.health)
	}
	if s.metrics != nil {
		root.Handle("GET /metrics", s.metrics)
	}

	otelOpts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !isInfraPath(r.URL.Path)
		}),
	}
	if s.tracer != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(s.tracer))
	}
	return otelhttp.NewHandler(s.accessLog(s.cors(root)), s.cfg.ServiceName, otelOpts...)
}

func isInfraPath(p string) bool {
	switch p {
	case "/healthz", "/readyz", "/health", "/metrics":
		return true
	}
	return false
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	serveErr := make(chan error, 1)
	s.logger.Info(ctx, "listening", observe.F("addr", ln.Addr().String()))
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: serve: %w", err)
	}
}
