package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/kantodex/cache"
	"github.com/jonwraymond/kantodex/observe"
	"github.com/jonwraymond/kantodex/pokedex"
	"github.com/jonwraymond/kantodex/server"
	"github.com/jonwraymond/kantodex/upstream"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "KANTODEX_"

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server" envPrefix:"SERVER_"`
	Upstream UpstreamConfig `toml:"upstream" yaml:"upstream" envPrefix:"UPSTREAM_"`
	Cache    CacheConfig    `toml:"cache" yaml:"cache" envPrefix:"CACHE_"`
	Pokedex  PokedexConfig  `toml:"pokedex" yaml:"pokedex" envPrefix:"POKEDEX_"`
	Observe  ObserveConfig  `toml:"observe" yaml:"observe" envPrefix:"OBSERVE_"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address. Default: ":8000"
	Addr string `toml:"addr" yaml:"addr" env:"ADDR"`

	// CORSOrigins lists allowed browser origins. Default: the SvelteKit
	// dev and preview servers on localhost and 127.0.0.1
	CORSOrigins []string `toml:"cors_origins" yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`

	// ReadTimeout bounds reading a request. Default: 10s
	ReadTimeout Duration `toml:"read_timeout" yaml:"read_timeout" env:"READ_TIMEOUT"`

	// WriteTimeout bounds writing a response. Default: 120s
	WriteTimeout Duration `toml:"write_timeout" yaml:"write_timeout" env:"WRITE_TIMEOUT"`

	// ShutdownTimeout bounds graceful shutdown. Default: 15s
	ShutdownTimeout Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	// RateLimit is the inbound requests per second per process.
	// Default: 0 (disabled)
	RateLimit float64 `toml:"rate_limit" yaml:"rate_limit" env:"RATE_LIMIT"`

	// RateBurst is the inbound burst size. Default: 0 (2 x RateLimit)
	RateBurst int `toml:"rate_burst" yaml:"rate_burst" env:"RATE_BURST"`
}

// UpstreamConfig configures the PokéAPI client.
type UpstreamConfig struct {
	BaseURL         string   `toml:"base_url" yaml:"base_url" env:"BASE_URL"`
	Timeout         Duration `toml:"timeout" yaml:"timeout" env:"TIMEOUT"`
	MaxAttempts     int      `toml:"max_attempts" yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	RetryDelay      Duration `toml:"retry_delay" yaml:"retry_delay" env:"RETRY_DELAY"`
	BreakerFailures int      `toml:"breaker_failures" yaml:"breaker_failures" env:"BREAKER_FAILURES"`
	BreakerReset    Duration `toml:"breaker_reset" yaml:"breaker_reset" env:"BREAKER_RESET"`
	MaxConcurrent   int      `toml:"max_concurrent" yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	UserAgent       string   `toml:"user_agent" yaml:"user_agent" env:"USER_AGENT"`
}

// CacheConfig configures TTLs and key derivation. A TTL of 0 disables
// caching for that kind.
type CacheConfig struct {
	ListTTL      Duration `toml:"list_ttl" yaml:"list_ttl" env:"LIST_TTL"`
	DetailTTL    Duration `toml:"detail_ttl" yaml:"detail_ttl" env:"DETAIL_TTL"`
	EvolutionTTL Duration `toml:"evolution_ttl" yaml:"evolution_ttl" env:"EVOLUTION_TTL"`
	MaxTTL       Duration `toml:"max_ttl" yaml:"max_ttl" env:"MAX_TTL"`

	// Keyer is "plain" (pokemon_detail_25) or "hash". Default: plain
	Keyer string `toml:"keyer" yaml:"keyer" env:"KEYER"`
}

// PokedexConfig configures the aggregation service.
type PokedexConfig struct {
	Locale         string `toml:"locale" yaml:"locale" env:"LOCALE"`
	ImageTemplate  string `toml:"image_template" yaml:"image_template" env:"IMAGE_TEMPLATE"`
	ListLimit      int    `toml:"list_limit" yaml:"list_limit" env:"LIST_LIMIT"`
	FanoutLimit    int    `toml:"fanout_limit" yaml:"fanout_limit" env:"FANOUT_LIMIT"`
	ParallelDetail bool   `toml:"parallel_detail" yaml:"parallel_detail" env:"PARALLEL_DETAIL"`
}

// ObserveConfig configures logging, tracing and metrics.
type ObserveConfig struct {
	ServiceName     string  `toml:"service_name" yaml:"service_name" env:"SERVICE_NAME"`
	Version         string  `toml:"version" yaml:"version" env:"VERSION"`
	LogLevel        string  `toml:"log_level" yaml:"log_level" env:"LOG_LEVEL"`
	TracingExporter string  `toml:"tracing_exporter" yaml:"tracing_exporter" env:"TRACING_EXPORTER"`
	TraceSample     float64 `toml:"trace_sample" yaml:"trace_sample" env:"TRACE_SAMPLE"`
	MetricsExporter string  `toml:"metrics_exporter" yaml:"metrics_exporter" env:"METRICS_EXPORTER"`
}

// Default returns the built-in configuration.
func Default() Config {
	policy := cache.DefaultPolicy()
	return Config{
		Server: ServerConfig{
			Addr: ":8000",
			CORSOrigins: []string{
				"http://localhost:5173",
				"http://localhost:4173",
				"http://127.0.0.1:5173",
				"http://127.0.0.1:4173",
			},
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(120 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Upstream: UpstreamConfig{
			BaseURL:      upstream.DefaultBaseURL,
			Timeout:      Duration(upstream.DefaultTimeout),
			MaxAttempts:  1,
			RetryDelay:   Duration(100 * time.Millisecond),
			BreakerReset: Duration(30 * time.Second),
			UserAgent:    upstream.DefaultUserAgent,
		},
		Cache: CacheConfig{
			ListTTL:      Duration(policy.TTLs[cache.KindList]),
			DetailTTL:    Duration(policy.TTLs[cache.KindDetail]),
			EvolutionTTL: Duration(policy.TTLs[cache.KindEvolution]),
			MaxTTL:       Duration(policy.MaxTTL),
			Keyer:        "plain",
		},
		Pokedex: PokedexConfig{
			Locale:        pokedex.DefaultLocale,
			ImageTemplate: pokedex.DefaultImageTemplate,
			ListLimit:     pokedex.KantoMaxID,
		},
		Observe: ObserveConfig{
			ServiceName:     "kantodex",
			Version:         "dev",
			LogLevel:        "info",
			TracingExporter: "none",
			TraceSample:     1.0,
			MetricsExporter: "none",
		},
	}
}

// Load builds the configuration from defaults, the optional file at path
// and the environment, then validates it. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded, err := ExpandEnvStrict(string(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	r := strings.NewReader(expanded)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("config: decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("config: decode %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return nil
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Server.Addr == "" {
		bad("server.addr is required")
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		bad("server.rate_limit and server.rate_burst must not be negative")
	}
	for _, origin := range c.Server.CORSOrigins {
		if origin != "*" && !isHTTPURL(origin) {
			bad("server.cors_origins: %q is not an http(s) origin", origin)
		}
	}

	if !isHTTPURL(c.Upstream.BaseURL) {
		bad("upstream.base_url %q is not an http(s) URL", c.Upstream.BaseURL)
	}
	if c.Upstream.Timeout <= 0 {
		bad("upstream.timeout must be positive")
	}
	if c.Upstream.MaxAttempts < 1 {
		bad("upstream.max_attempts must be at least 1")
	}
	if c.Upstream.BreakerFailures < 0 || c.Upstream.MaxConcurrent < 0 {
		bad("upstream.breaker_failures and upstream.max_concurrent must not be negative")
	}

	if c.Cache.ListTTL < 0 || c.Cache.DetailTTL < 0 || c.Cache.EvolutionTTL < 0 {
		bad("cache TTLs must not be negative")
	}
	if c.Cache.MaxTTL <= 0 {
		bad("cache.max_ttl must be positive")
	}
	if !slices.Contains([]string{"plain", "hash"}, c.Cache.Keyer) {
		bad("cache.keyer %q must be plain or hash", c.Cache.Keyer)
	}

	if c.Pokedex.Locale == "" {
		bad("pokedex.locale is required")
	}
	if !strings.Contains(c.Pokedex.ImageTemplate, "{id}") {
		bad("pokedex.image_template must contain {id}")
	}
	if c.Pokedex.ListLimit < 1 || c.Pokedex.ListLimit > pokedex.KantoMaxID {
		bad("pokedex.list_limit must be between 1 and %d", pokedex.KantoMaxID)
	}
	if c.Pokedex.FanoutLimit < 0 {
		bad("pokedex.fanout_limit must not be negative")
	}

	obs := c.ObserveConfig()
	if err := obs.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	return errors.Join(errs...)
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// UpstreamClientConfig maps the upstream section onto upstream.Config.
func (c Config) UpstreamClientConfig() upstream.Config {
	return upstream.Config{
		BaseURL:         c.Upstream.BaseURL,
		Timeout:         c.Upstream.Timeout.D(),
		MaxAttempts:     c.Upstream.MaxAttempts,
		RetryDelay:      c.Upstream.RetryDelay.D(),
		BreakerFailures: c.Upstream.BreakerFailures,
		BreakerReset:    c.Upstream.BreakerReset.D(),
		MaxConcurrent:   c.Upstream.MaxConcurrent,
		UserAgent:       c.Upstream.UserAgent,
	}
}

// CachePolicy maps the cache section onto a cache.Policy.
func (c Config) CachePolicy() cache.Policy {
	p := cache.DefaultPolicy()
	p.MaxTTL = c.Cache.MaxTTL.D()
	return p.
		WithTTL(cache.KindList, c.Cache.ListTTL.D()).
		WithTTL(cache.KindDetail, c.Cache.DetailTTL.D()).
		WithTTL(cache.KindEvolution, c.Cache.EvolutionTTL.D())
}

// CacheKeyer returns the configured key scheme.
func (c Config) CacheKeyer() cache.Keyer {
	if c.Cache.Keyer == "hash" {
		return cache.NewHashKeyer()
	}
	return cache.NewPlainKeyer()
}

// PokedexOptions maps the pokedex and cache sections onto service options.
func (c Config) PokedexOptions() []pokedex.Option {
	return []pokedex.Option{
		pokedex.WithPolicy(c.CachePolicy()),
		pokedex.WithKeyer(c.CacheKeyer()),
		pokedex.WithLocale(c.Pokedex.Locale),
		pokedex.WithImageTemplate(c.Pokedex.ImageTemplate),
		pokedex.WithFanoutLimit(c.Pokedex.FanoutLimit),
		pokedex.WithParallelDetail(c.Pokedex.ParallelDetail),
	}
}

// ObserveConfig maps the observe section onto observe.Config. An exporter
// of "none" disables that signal.
func (c Config) ObserveConfig() observe.Config {
	o := c.Observe
	return observe.Config{
		ServiceName: o.ServiceName,
		Version:     o.Version,
		Tracing: observe.TracingConfig{
			Enabled:   o.TracingExporter != "" && o.TracingExporter != "none",
			Exporter:  o.TracingExporter,
			SamplePct: o.TraceSample,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  o.MetricsExporter != "" && o.MetricsExporter != "none",
			Exporter: o.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   o.LogLevel,
		},
	}
}

// HTTPServerConfig maps the server section onto server.Config.
func (c Config) HTTPServerConfig() server.Config {
	return server.Config{
		Addr:            c.Server.Addr,
		ServiceName:     c.Observe.ServiceName,
		CORSOrigins:     slices.Clone(c.Server.CORSOrigins),
		ListLimit:       c.Pokedex.ListLimit,
		RateLimit:       c.Server.RateLimit,
		RateBurst:       c.Server.RateBurst,
		ReadTimeout:     c.Server.ReadTimeout.D(),
		WriteTimeout:    c.Server.WriteTimeout.D(),
		ShutdownTimeout: c.Server.ShutdownTimeout.D(),
	}
}

// String renders the configuration as TOML.
func (c Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return buf.String()
}
