package pokedex

import "errors"

var (
	// ErrNotFound is returned by GetDetail and GetEvolutionChain when the
	// record could not be produced. It covers both a missing record and an
	// unreachable upstream; the upstream error stays in the chain.
	ErrNotFound = errors.New("pokedex: not found")

	// ErrUpstreamUnavailable is returned by ListCreatures when the index
	// page could not be fetched.
	ErrUpstreamUnavailable = errors.New("pokedex: upstream unavailable")

	// ErrMalformedRecord indicates an upstream document missing required fields.
	ErrMalformedRecord = errors.New("pokedex: malformed record")
)
