// Package server exposes the pokedex service over HTTP.
//
// Routes:
//
//	GET /api/v1/pokemon                      list of Kanto creatures
//	GET /api/v1/pokemon/{id}                 creature detail
//	GET /api/v1/pokemon/{id}/evolution       evolution chain
//	GET /api/v1/pokemon/compare?ids=1,4,7    side-by-side details
//
// Ids are validated at this boundary: they must lie in [1, 151]. Errors
// are JSON bodies of the form {"detail": "..."}. Service sentinels map to
// status codes: pokedex.ErrNotFound is 404, pokedex.ErrUpstreamUnavailable
// is 503.
//
// The handler stack, outermost first, is otelhttp tracing, access
// logging, CORS and the optional inbound rate limiter. Health endpoints and
// /metrics bypass the rate limiter.
package server
