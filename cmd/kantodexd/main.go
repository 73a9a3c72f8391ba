// Command kantodexd serves the Kanto pokedex API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/kantodex/cache"
	"github.com/jonwraymond/kantodex/config"
	"github.com/jonwraymond/kantodex/health"
	"github.com/jonwraymond/kantodex/observe"
	"github.com/jonwraymond/kantodex/pokedex"
	"github.com/jonwraymond/kantodex/server"
	"github.com/jonwraymond/kantodex/upstream"
)

const (
	// healthTimeout bounds one round of readiness checks.
	healthTimeout = 5 * time.Second
	// slowPing marks the upstream degraded.
	slowPing = 2 * time.Second
	// cacheWarnEntries is far above the ~450 entries a full Kanto crawl stores.
	cacheWarnEntries = 10_000
)

func main() {
	fs := flag.NewFlagSet("kantodexd", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("KANTODEX_CONFIG"), "path to a .toml or .yaml config file")
	printConfig := fs.Bool("print-config", false, "print the effective configuration and exit")
	_ = fs.Parse(os.Args[1:])

	log.SetPrefix("[KANTODEX] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *printConfig, os.Stdout); err != nil {
		log.Fatalf("kantodexd: %v", err)
	}
}

func run(ctx context.Context, configPath string, printOnly bool, stdout io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if printOnly {
		_, err := fmt.Fprint(stdout, cfg.String())
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	serveErr := a.server.ListenAndServe(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout.D())
	defer cancel()
	return errors.Join(serveErr, a.close(shutdownCtx))
}

// app holds the wired process components.
type app struct {
	obs    observe.Observer
	logger observe.Logger
	cache  *cache.MemoryCache
	svc    *pokedex.Service
	health *health.Aggregator
	server *server.Server
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	obs, err := observe.NewObserver(ctx, cfg.ObserveConfig())
	if err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("middleware: %w", err)
	}
	logger := obs.Logger()

	client, err := upstream.New(cfg.UpstreamClientConfig(),
		upstream.WithLogger(logger.With(observe.F("component", "upstream"))),
	)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	c := cache.NewMemoryCache()
	opts := append(cfg.PokedexOptions(),
		pokedex.WithMiddleware(mw),
		pokedex.WithLogger(logger),
	)
	svc := pokedex.NewService(client, c, opts...)

	agg := health.NewAggregator(healthTimeout)
	agg.Register(health.NewUpstreamChecker(client, slowPing))
	agg.Register(health.NewCacheChecker(c, cacheWarnEntries))
	if cb := client.CircuitBreaker(); cb != nil {
		agg.Register(health.NewCircuitChecker(cb))
	}

	srvOpts := []server.Option{
		server.WithHealth(agg),
		server.WithLogger(logger.With(observe.F("component", "http"))),
	}
	if cfg.Observe.MetricsExporter == "prometheus" {
		srvOpts = append(srvOpts, server.WithMetricsHandler(promhttp.Handler()))
	}

	logger.Info(ctx, "configured",
		observe.F("upstream", client.BaseURL()),
		observe.F("cache_keyer", cfg.Cache.Keyer),
		observe.F("tracing", cfg.Observe.TracingExporter),
		observe.F("metrics", cfg.Observe.MetricsExporter),
	)

	return &app{
		obs:    obs,
		logger: logger,
		cache:  c,
		svc:    svc,
		health: agg,
		server: server.New(cfg.HTTPServerConfig(), svc, srvOpts...),
	}, nil
}

// close releases the upstream client and flushes telemetry.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.svc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close service: %w", err))
	}
	if err := a.obs.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
	}
	a.logger.Info(ctx, "stopped")
	return errors.Join(errs...)
}
