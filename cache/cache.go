package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilCache   = errors.New("cache: cache is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Cache is the interface for caching encoded view models.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Ownership: values are copied on Set; callers never share the stored bytes.
// - Errors: Get should never error; it returns (nil, false) on miss or expiry.
type Cache interface {
	// Get retrieves a live value. Expired entries are evicted and reported as a miss.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value that expires ttl from now. TTL<=0 stores nothing.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Has reports whether Get would return a value.
	Has(ctx context.Context, key string) bool

	// Delete removes a value and reports whether one was present.
	Delete(ctx context.Context, key string) bool

	// Clear removes every entry.
	Clear(ctx context.Context)
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
