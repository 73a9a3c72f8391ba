package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/kantodex/cache"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefault_Valid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load(\"\") mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "kantodex.toml", `
[server]
addr = ":9000"
cors_origins = ["https://dex.example.com"]

[upstream]
timeout = "5s"
max_attempts = 3

[cache]
list_ttl = "2h"
keyer = "hash"

[pokedex]
fanout_limit = 16
parallel_detail = true

[observe]
log_level = "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	want.Server.Addr = ":9000"
	want.Server.CORSOrigins = []string{"https://dex.example.com"}
	want.Upstream.Timeout = Duration(5 * time.Second)
	want.Upstream.MaxAttempts = 3
	want.Cache.ListTTL = Duration(2 * time.Hour)
	want.Cache.Keyer = "hash"
	want.Pokedex.FanoutLimit = 16
	want.Pokedex.ParallelDetail = true
	want.Observe.LogLevel = "debug"

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_YAML(t *testing.T) {
	for _, ext := range []string{".yaml", ".yml"} {
		t.Run(ext, func(t *testing.T) {
			path := writeFile(t, "kantodex"+ext, `
server:
  addr: ":7000"
cache:
  detail_ttl: 10m
observe:
  metrics_exporter: prometheus
`)
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Server.Addr != ":7000" {
				t.Errorf("Server.Addr = %q", cfg.Server.Addr)
			}
			if cfg.Cache.DetailTTL.D() != 10*time.Minute {
				t.Errorf("Cache.DetailTTL = %v", cfg.Cache.DetailTTL)
			}
			if cfg.Observe.MetricsExporter != "prometheus" {
				t.Errorf("Observe.MetricsExporter = %q", cfg.Observe.MetricsExporter)
			}
			if cfg.Cache.ListTTL.D() != time.Hour {
				t.Errorf("unset Cache.ListTTL = %v, want default 1h", cfg.Cache.ListTTL)
			}
		})
	}
}

func TestLoad_EmptyYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yaml", ""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "kantodex.toml", `
[server]
addr = ":9000"

[upstream]
max_attempts = 2
`)
	t.Setenv("KANTODEX_SERVER_ADDR", ":9100")
	t.Setenv("KANTODEX_SERVER_CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("KANTODEX_CACHE_LIST_TTL", "15m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":9100" {
		t.Errorf("Server.Addr = %q, want env value :9100", cfg.Server.Addr)
	}
	if cfg.Upstream.MaxAttempts != 2 {
		t.Errorf("Upstream.MaxAttempts = %d, want file value 2", cfg.Upstream.MaxAttempts)
	}
	if diff := cmp.Diff([]string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins); diff != "" {
		t.Errorf("CORSOrigins mismatch (-want +got):\n%s", diff)
	}
	if cfg.Cache.ListTTL.D() != 15*time.Minute {
		t.Errorf("Cache.ListTTL = %v, want 15m", cfg.Cache.ListTTL)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("DEX_UPSTREAM", "https://mirror.example.com/api/v2")
	path := writeFile(t, "kantodex.toml", `
[upstream]
base_url = "${DEX_UPSTREAM}"
user_agent = "kantodex $$1"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Upstream.BaseURL != "https://mirror.example.com/api/v2" {
		t.Errorf("BaseURL = %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.UserAgent != "kantodex $1" {
		t.Errorf("UserAgent = %q", cfg.Upstream.UserAgent)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want error
	}{
		{name: "missing env", file: "a.toml", body: `[upstream]` + "\n" + `base_url = "${KANTODEX_TEST_UNSET_VAR}"`, want: ErrMissingEnv},
		{name: "unsupported format", file: "a.json", body: `{}`, want: ErrUnsupportedFormat},
		{name: "invalid value", file: "a.toml", body: "[upstream]\nmax_attempts = 0", want: ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoad_UnknownFieldsRejected(t *testing.T) {
	for name, body := range map[string]string{
		"a.toml": "[server]\nadress = \":1\"",
		"a.yaml": "server:\n  adress: \":1\"",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeFile(t, name, body)); err == nil {
				t.Error("expected error for unknown field")
			}
		})
	}
}

func TestLoad_BadDuration(t *testing.T) {
	_, err := Load(writeFile(t, "a.toml", "[upstream]\ntimeout = \"soon\""))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("Load() error = %v, want invalid duration", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"bad origin", func(c *Config) { c.Server.CORSOrigins = []string{"localhost"} }, "cors_origins"},
		{"negative rate", func(c *Config) { c.Server.RateLimit = -1 }, "rate_limit"},
		{"bad base url", func(c *Config) { c.Upstream.BaseURL = "pokeapi.co" }, "base_url"},
		{"zero timeout", func(c *Config) { c.Upstream.Timeout = 0 }, "upstream.timeout"},
		{"negative ttl", func(c *Config) { c.Cache.DetailTTL = Duration(-time.Second) }, "cache TTLs"},
		{"unknown keyer", func(c *Config) { c.Cache.Keyer = "md5" }, "cache.keyer"},
		{"template without id", func(c *Config) { c.Pokedex.ImageTemplate = "http://img/x.png" }, "image_template"},
		{"list limit too high", func(c *Config) { c.Pokedex.ListLimit = 152 }, "list_limit"},
		{"bad log level", func(c *Config) { c.Observe.LogLevel = "loud" }, "log level"},
		{"bad exporter", func(c *Config) { c.Observe.MetricsExporter = "statsd" }, "metrics exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.substr)
			}
		})
	}
}

func TestValidate_JoinsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.Cache.Keyer = "md5"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "server.addr") || !strings.Contains(err.Error(), "cache.keyer") {
		t.Errorf("Validate() error = %v, want both problems", err)
	}
}

func TestCachePolicy(t *testing.T) {
	cfg := Default()
	cfg.Cache.ListTTL = Duration(2 * time.Hour)
	cfg.Cache.EvolutionTTL = 0

	p := cfg.CachePolicy()
	if got := p.EffectiveTTL(cache.KindList); got != 2*time.Hour {
		t.Errorf("list TTL = %v, want 2h", got)
	}
	if got := p.EffectiveTTL(cache.KindDetail); got != 30*time.Minute {
		t.Errorf("detail TTL = %v, want 30m", got)
	}
	if p.ShouldCache(cache.KindEvolution) {
		t.Error("evolution caching should be disabled by a zero TTL")
	}
}

func TestCacheKeyer(t *testing.T) {
	cfg := Default()
	key, err := cfg.CacheKeyer().Key(cache.KindDetail, 25)
	if err != nil || key != "pokemon_detail_25" {
		t.Errorf("plain key = %q, %v", key, err)
	}

	cfg.Cache.Keyer = "hash"
	key, err = cfg.CacheKeyer().Key(cache.KindDetail, 25)
	if err != nil || !strings.HasPrefix(key, "pokemon_detail:") {
		t.Errorf("hash key = %q, %v", key, err)
	}
}

func TestObserveConfig(t *testing.T) {
	cfg := Default()
	o := cfg.ObserveConfig()
	if o.Tracing.Enabled || o.Metrics.Enabled {
		t.Errorf("exporters should be disabled by default: %+v", o)
	}
	if !o.Logging.Enabled || o.Logging.Level != "info" {
		t.Errorf("Logging = %+v", o.Logging)
	}

	cfg.Observe.MetricsExporter = "prometheus"
	if !cfg.ObserveConfig().Metrics.Enabled {
		t.Error("metrics should be enabled for prometheus")
	}
}

func TestUpstreamClientConfig(t *testing.T) {
	cfg := Default()
	cfg.Upstream.MaxAttempts = 3
	uc := cfg.UpstreamClientConfig()
	if uc.Timeout != 30*time.Second || uc.MaxAttempts != 3 || uc.BaseURL != cfg.Upstream.BaseURL {
		t.Errorf("UpstreamClientConfig() = %+v", uc)
	}
}

func TestHTTPServerConfig(t *testing.T) {
	cfg := Default()
	cfg.Server.RateLimit = 5
	sc := cfg.HTTPServerConfig()
	if sc.Addr != ":8000" || sc.ServiceName != "kantodex" || sc.ListLimit != 151 || sc.RateLimit != 5 {
		t.Errorf("HTTPServerConfig() = %+v", sc)
	}
	if sc.WriteTimeout != 120*time.Second || sc.ShutdownTimeout != 15*time.Second {
		t.Errorf("timeouts = %v, %v", sc.WriteTimeout, sc.ShutdownTimeout)
	}
	if len(sc.CORSOrigins) != 4 {
		t.Errorf("CORSOrigins = %v", sc.CORSOrigins)
	}
}

func TestString(t *testing.T) {
	out := Default().String()
	for _, want := range []string{"[server]", "[upstream]", ":8000", "30s", "pokemon/other/official-artwork"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}
}
