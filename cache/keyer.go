package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Keyer generates deterministic cache keys from a kind and its lookup input.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key generates a cache key for input within kind.
	Key(kind Kind, input any) (string, error)
}

// PlainKeyer joins the kind and scalar inputs with underscores, producing
// readable keys such as "pokemon_detail_25".
type PlainKeyer struct{}

// NewPlainKeyer creates a new plain keyer.
func NewPlainKeyer() *PlainKeyer {
	return &PlainKeyer{}
}

// Key generates a readable cache key.
// Format: <kind>_<v1>_<v2>... where inputs are ints, strings or slices of them.
func (k *PlainKeyer) Key(kind Kind, input any) (string, error) {
	if kind == "" {
		return "", ErrInvalidKey
	}

	parts := []string{string(kind)}
	switch v := input.(type) {
	case nil:
	case []int:
		for _, n := range v {
			parts = append(parts, fmt.Sprint(n))
		}
	case []string:
		parts = append(parts, v...)
	case []any:
		for _, e := range v {
			parts = append(parts, fmt.Sprint(e))
		}
	case int, int32, int64, uint, uint32, uint64, string:
		parts = append(parts, fmt.Sprint(v))
	default:
		return "", fmt.Errorf("cache: unsupported plain key input %T", input)
	}

	key := strings.Join(parts, "_")
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// HashKeyer generates SHA-256 based cache keys for structured inputs.
type HashKeyer struct{}

// NewHashKeyer creates a new hash keyer.
func NewHashKeyer() *HashKeyer {
	return &HashKeyer{}
}

// Key generates a deterministic cache key.
// Format: <kind>:<hash>
// where hash is the first 16 characters of SHA-256(canonical JSON(input))
func (k *HashKeyer) Key(kind Kind, input any) (string, error) {
	if kind == "" {
		return "", ErrInvalidKey
	}

	canonical, err := canonicalize(input)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize input: %w", err)
	}

	hash := sha256.Sum256(canonical)
	return fmt.Sprintf("%s:%s", kind, hex.EncodeToString(hash[:8])), nil
}

// canonicalize produces a deterministic JSON representation of the input.
// Maps are sorted by key to ensure consistent ordering.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, ']'), nil
}

var (
	_ Keyer = (*PlainKeyer)(nil)
	_ Keyer = (*HashKeyer)(nil)
)
