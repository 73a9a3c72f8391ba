package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func validConfig() Config {
	return Config{
		ServiceName: "kantodex-test",
		Version:     "0.0.1",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1.0},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
		Logging:     LoggingConfig{Enabled: true, Level: "info"},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing service name", mutate: func(c *Config) { c.ServiceName = "" }, want: ErrMissingServiceName},
		{name: "unknown tracing exporter", mutate: func(c *Config) { c.Tracing.Exporter = "jaeger" }, want: ErrInvalidTracingExporter},
		{name: "sample pct above 1", mutate: func(c *Config) { c.Tracing.SamplePct = 1.5 }, want: ErrInvalidSamplePct},
		{name: "sample pct below 0", mutate: func(c *Config) { c.Tracing.SamplePct = -0.1 }, want: ErrInvalidSamplePct},
		{name: "unknown metrics exporter", mutate: func(c *Config) { c.Metrics.Exporter = "statsd" }, want: ErrInvalidMetricsExporter},
		{name: "unknown log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, want: ErrInvalidLogLevel},
		{name: "disabled subsystems are not checked", mutate: func(c *Config) {
			c.Tracing = TracingConfig{Exporter: "jaeger"}
			c.Metrics = MetricsConfig{Exporter: "statsd"}
			c.Logging = LoggingConfig{Level: "verbose"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewObserver_NoExporters(t *testing.T) {
	var buf bytes.Buffer
	cfg := validConfig()
	cfg.Logging.Writer = &buf

	obs, err := NewObserver(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()

	if obs.Tracer() == nil {
		t.Error("Tracer() = nil")
	}
	if obs.Meter() == nil {
		t.Error("Meter() = nil")
	}

	obs.Logger().Info(context.Background(), "hello")
	if !bytes.Contains(buf.Bytes(), []byte(`"service":"kantodex-test"`)) {
		t.Errorf("log line missing service field: %s", buf.String())
	}
}

func TestNewObserver_Disabled(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "kantodex-test"})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewObserver_InvalidConfig(t *testing.T) {
	_, err := NewObserver(context.Background(), Config{})
	if !errors.Is(err, ErrMissingServiceName) {
		t.Errorf("NewObserver() error = %v, want %v", err, ErrMissingServiceName)
	}
}
