package cache

import "time"

// Kind names a class of cached data. Each kind has its own TTL.
type Kind string

// Cached data kinds.
const (
	KindList      Kind = "pokemon_list"
	KindDetail    Kind = "pokemon_detail"
	KindEvolution Kind = "evolution_chain"
)

// Policy configures caching behavior.
type Policy struct {
	// TTLs holds the TTL per kind.
	TTLs map[Kind]time.Duration

	// DefaultTTL is used for kinds without an entry in TTLs.
	// If zero, those kinds are not cached.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Per-kind TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration
}

// DefaultPolicy returns the default caching policy.
// List: 1 hour, Detail and Evolution: 30 minutes, MaxTTL: 24 hours
func DefaultPolicy() Policy {
	return Policy{
		TTLs: map[Kind]time.Duration{
			KindList:      time.Hour,
			KindDetail:    30 * time.Minute,
			KindEvolution: 30 * time.Minute,
		},
		DefaultTTL: 30 * time.Minute,
		MaxTTL:     24 * time.Hour,
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// WithTTL returns a copy of p with the TTL for kind replaced.
func (p Policy) WithTTL(kind Kind, ttl time.Duration) Policy {
	ttls := make(map[Kind]time.Duration, len(p.TTLs)+1)
	for k, v := range p.TTLs {
		ttls[k] = v
	}
	ttls[kind] = ttl
	p.TTLs = ttls
	return p
}

// ShouldCache returns true if values of kind are cached by this policy.
func (p Policy) ShouldCache(kind Kind) bool {
	return p.EffectiveTTL(kind) > 0
}

// EffectiveTTL returns the TTL to use for kind, applying defaults and clamping.
func (p Policy) EffectiveTTL(kind Kind) time.Duration {
	ttl, ok := p.TTLs[kind]
	if !ok || ttl < 0 {
		ttl = p.DefaultTTL
	}

	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}

	return ttl
}
