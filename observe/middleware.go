package observe

import (
	"context"
	"time"
)

// Middleware wraps operations with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Observe is safe for concurrent use.
//   - Context: the span context is propagated to fn.
//   - Errors: errors from fn are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components become no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewTracer(nil)
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Observe runs fn inside a span, records its duration and outcome, and logs
// completion at debug or failure at warn.
func (m *Middleware) Observe(ctx context.Context, meta OpMeta, fn func(context.Context) error) error {
	if meta.Name == "" {
		return ErrMissingOperationName
	}

	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	err := fn(ctx)

	duration := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordOperation(ctx, meta, duration, err)

	logger := m.logger.WithOperation(meta)
	fields := []Field{F("duration_ms", float64(duration.Microseconds())/1000)}
	if err != nil {
		fields = append(fields, F("error", err))
		logger.Warn(ctx, "operation failed", fields...)
	} else {
		logger.Debug(ctx, "operation completed", fields...)
	}

	return err
}

// Metrics returns the metrics sink.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// Logger returns the logger.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
