package cache

import (
	"bytes"
	"context"
)

// LoadFunc produces the encoded value for a missing key.
type LoadFunc func(ctx context.Context) ([]byte, error)

// SkipRule reports whether a freshly loaded value should not be stored.
type SkipRule func(kind Kind, value []byte) bool

// DefaultSkipRule skips empty payloads: nothing, JSON null, [] and {}.
func DefaultSkipRule(_ Kind, value []byte) bool {
	switch string(bytes.TrimSpace(value)) {
	case "", "null", "[]", "{}":
		return true
	}
	return false
}

// Recorder observes cache lookups.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Recorder interface {
	RecordLookup(ctx context.Context, kind Kind, hit bool)
}

// Loader wraps a load function with read-through caching.
//
// There is no single-flight: concurrent misses on one key each call their
// load function and each store the result.
type Loader struct {
	cache    Cache
	keyer    Keyer
	policy   Policy
	skipRule SkipRule
	recorder Recorder
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithSkipRule replaces DefaultSkipRule.
func WithSkipRule(rule SkipRule) LoaderOption {
	return func(l *Loader) {
		if rule != nil {
			l.skipRule = rule
		}
	}
}

// WithRecorder reports every lookup as a hit or miss.
func WithRecorder(r Recorder) LoaderOption {
	return func(l *Loader) {
		l.recorder = r
	}
}

// NewLoader creates a new loader. A nil keyer defaults to PlainKeyer.
func NewLoader(cache Cache, keyer Keyer, policy Policy, opts ...LoaderOption) *Loader {
	if keyer == nil {
		keyer = NewPlainKeyer()
	}
	l := &Loader{
		cache:    cache,
		keyer:    keyer,
		policy:   policy,
		skipRule: DefaultSkipRule,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the cached value for (kind, input) or calls load on a miss.
// On cache hit, load is not called and hit is true.
// Errors are NOT cached.
func (l *Loader) Load(ctx context.Context, kind Kind, input any, load LoadFunc) (value []byte, hit bool, err error) {
	if l.cache == nil {
		return nil, false, ErrNilCache
	}

	if !l.policy.ShouldCache(kind) {
		value, err = load(ctx)
		return value, false, err
	}

	key, err := l.keyer.Key(kind, input)
	if err != nil {
		// Key generation failed - load without caching
		value, err = load(ctx)
		return value, false, err
	}

	if cached, ok := l.cache.Get(ctx, key); ok {
		l.record(ctx, kind, true)
		return cached, true, nil
	}
	l.record(ctx, kind, false)

	value, err = load(ctx)
	if err != nil {
		return nil, false, err
	}

	if !l.skipRule(kind, value) {
		_ = l.cache.Set(ctx, key, value, l.policy.EffectiveTTL(kind))
	}

	return value, false, nil
}

// Key exposes the key a lookup of (kind, input) uses.
func (l *Loader) Key(kind Kind, input any) (string, error) {
	return l.keyer.Key(kind, input)
}

// Cache returns the underlying cache.
func (l *Loader) Cache() Cache {
	return l.cache
}

func (l *Loader) record(ctx context.Context, kind Kind, hit bool) {
	if l.recorder != nil {
		l.recorder.RecordLookup(ctx, kind, hit)
	}
}
