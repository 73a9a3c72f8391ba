package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/kantodex/cache"
)

// Metric instrument names.
const (
	MetricOpTotal       = "kantodex.op.total"
	MetricOpErrors      = "kantodex.op.errors"
	MetricOpDuration    = "kantodex.op.duration_ms"
	MetricCacheLookups  = "kantodex.cache.lookups"
	MetricFanoutDropped = "kantodex.fanout.dropped"
)

// Metrics records operation, cache and fan-out metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	cache.Recorder

	// RecordOperation records one operation with duration and error status.
	RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordDropped records items silently excluded from a fan-out result.
	RecordDropped(ctx context.Context, meta OpMeta, n int)
}

type metricsImpl struct {
	total    metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
	lookups  metric.Int64Counter
	dropped  metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.total, err = meter.Int64Counter(MetricOpTotal,
		metric.WithDescription("Total number of service operations"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}
	if m.errors, err = meter.Int64Counter(MetricOpErrors,
		metric.WithDescription("Service operations that returned an error"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram(MetricOpDuration,
		metric.WithDescription("Service operation duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.lookups, err = meter.Int64Counter(MetricCacheLookups,
		metric.WithDescription("Cache lookups by kind and result"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}
	if m.dropped, err = meter.Int64Counter(MetricFanoutDropped,
		metric.WithDescription("Items dropped from fan-out results after a failed fetch"),
		metric.WithUnit("{item}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("op.id", meta.ID()))

	m.total.Add(ctx, 1, opt)
	if err != nil {
		m.errors.Add(ctx, 1, opt)
	}
	m.duration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordLookup(ctx context.Context, kind cache.Kind, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.kind", string(kind)),
		attribute.String("cache.result", result),
	))
}

func (m *metricsImpl) RecordDropped(ctx context.Context, meta OpMeta, n int) {
	if n <= 0 {
		return
	}
	m.dropped.Add(ctx, int64(n), metric.WithAttributes(attribute.String("op.id", meta.ID())))
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) RecordOperation(context.Context, OpMeta, time.Duration, error) {}
func (nopMetrics) RecordLookup(context.Context, cache.Kind, bool)                {}
func (nopMetrics) RecordDropped(context.Context, OpMeta, int)                    {}
