// Package observe provides the logging, tracing and metrics used by the
// aggregation service and its HTTP surface.
//
// It owns exporter setup and nothing else: callers wrap their operations
// with a Middleware and pass the Logger down explicitly.
package observe
