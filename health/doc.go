// Package health reports whether the kantodex process can serve traffic.
//
// A Checker reports one component. The Aggregator runs every registered
// checker concurrently under a shared deadline and folds the results into
// a Report whose status is the worst of its parts.
//
// Three endpoints are provided:
//
//	/healthz  liveness: the process is up (always 200)
//	/readyz   readiness: 503 when any check is unhealthy
//	/health   the full Report as JSON
//
// Ready-made checkers cover the upstream (UpstreamChecker), the response
// cache (CacheChecker) and the upstream circuit breaker (CircuitChecker).
package health
