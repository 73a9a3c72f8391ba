// Package upstream is the HTTP client for the PokéAPI.
//
// A Client holds one pooled http.Client for the life of the process. The
// pool is created on the first Fetch and released by Close, which is safe
// to call more than once and safe to call when nothing was ever fetched.
//
// Every failure is returned as an *Error that matches one of the package
// sentinels with errors.Is:
//
//	doc, err := client.Fetch(ctx, "/pokemon/25")
//	if errors.Is(err, upstream.ErrNotFound) {
//		// 404 from the upstream
//	}
//
// Requests run through a resilience.Executor. The default executor applies
// only the per-request timeout; retries, circuit breaking and a concurrency
// cap are opt-in through Config.
package upstream
