// Package resilience guards calls to the upstream data source.
//
// Every upstream request runs through an Executor that applies, from the
// outside in:
//
//   - Bulkhead: caps in-flight requests (off unless configured).
//   - Circuit Breaker: stops calling an upstream that keeps failing.
//   - Retry: re-attempts errors that report themselves as retryable.
//   - Timeout: the fixed per-request deadline applied to every call.
//
// RateLimiter is a token bucket used to shed inbound API traffic; it is not
// applied to upstream calls.
//
//	exec := resilience.NewExecutor(
//	    resilience.WithTimeout(30*time.Second),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 2})),
//	)
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return fetch(ctx)
//	})
package resilience
