package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/kantodex/resilience"
)

// Pinger is anything that can prove it reaches its backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// UpstreamChecker pings the upstream API.
type UpstreamChecker struct {
	pinger Pinger

	// slow marks a successful ping as degraded.
	slow time.Duration
}

// NewUpstreamChecker creates an UpstreamChecker. A successful ping slower
// than slow is reported as degraded; slow <= 0 disables that.
func NewUpstreamChecker(p Pinger, slow time.Duration) *UpstreamChecker {
	return &UpstreamChecker{pinger: p, slow: slow}
}

// Name returns "upstream".
func (c *UpstreamChecker) Name() string {
	return "upstream"
}

// Check pings the upstream.
func (c *UpstreamChecker) Check(ctx context.Context) Result {
	start := time.Now()
	err := c.pinger.Ping(ctx)
	latency := time.Since(start)
	details := map[string]any{"latency_ms": latency.Milliseconds()}

	switch {
	case err != nil:
		return Unhealthy("upstream unreachable", fmt.Errorf("%w: upstream: %w", ErrCheckFailed, err)).WithDetails(details)
	case c.slow > 0 && latency > c.slow:
		return Degraded(fmt.Sprintf("upstream slow: %s", latency.Round(time.Millisecond))).WithDetails(details)
	default:
		return Healthy("upstream reachable").WithDetails(details)
	}
}

// Sizer reports a number of entries.
type Sizer interface {
	Len() int
}

// CacheChecker reports the response cache size. The cache has no size
// bound, so a warning threshold flags unexpected growth.
type CacheChecker struct {
	cache Sizer
	warn  int
}

// NewCacheChecker creates a CacheChecker. More than warn entries is
// degraded; warn <= 0 disables the threshold.
func NewCacheChecker(c Sizer, warn int) *CacheChecker {
	return &CacheChecker{cache: c, warn: warn}
}

// Name returns "cache".
func (c *CacheChecker) Name() string {
	return "cache"
}

// Check reports the entry count.
func (c *CacheChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context done", err)
	}

	n := c.cache.Len()
	details := map[string]any{"entries": n}
	if c.warn > 0 && n > c.warn {
		return Degraded(fmt.Sprintf("cache holds %d entries (warn at %d)", n, c.warn)).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("cache holds %d entries", n)).WithDetails(details)
}

// CircuitChecker reports the upstream circuit breaker state. An open
// circuit is degraded rather than unhealthy: cached responses still serve.
type CircuitChecker struct {
	cb *resilience.CircuitBreaker
}

// NewCircuitChecker creates a CircuitChecker.
func NewCircuitChecker(cb *resilience.CircuitBreaker) *CircuitChecker {
	return &CircuitChecker{cb: cb}
}

// Name returns "circuit".
func (c *CircuitChecker) Name() string {
	return "circuit"
}

// Check reports the breaker state.
func (c *CircuitChecker) Check(context.Context) Result {
	state := c.cb.State()
	m := c.cb.Metrics()
	details := map[string]any{
		"state":    state.String(),
		"failures": m.Failures,
	}
	if !m.OpenedAt.IsZero() {
		details["opened_at"] = m.OpenedAt.UTC().Format(time.RFC3339)
	}

	if state == resilience.StateClosed {
		return Healthy("circuit closed").WithDetails(details)
	}
	return Degraded("circuit " + state.String()).WithDetails(details)
}

var (
	_ Checker = (*UpstreamChecker)(nil)
	_ Checker = (*CacheChecker)(nil)
	_ Checker = (*CircuitChecker)(nil)
	_ Checker = (*CheckerFunc)(nil)
)
