// Package cache provides the process-local expiring cache that bounds
// upstream load.
//
// It provides a Cache interface with a memory implementation that expires
// entries lazily on access, per-kind TTL policies, deterministic key
// derivation, and a load-through Loader that never caches failures.
package cache
