// Package pokedex turns raw PokéAPI documents into the view models served
// to the frontend and orchestrates the upstream calls behind a cache.
//
// The package has three layers:
//
//   - models.go: ListItem, Detail, EvolutionStage and friends.
//   - normalize.go and evolution.go: pure functions from upstream.Document
//     to models. They never touch the network.
//   - service.go: Service, which owns the cache and the upstream fetcher
//     and implements ListCreatures, GetDetail, GetEvolutionChain and
//     CompareCreatures.
//
// Ids outside the Kanto range are accepted by the Service; range checks
// belong to the HTTP layer. The evolution parser is the only place that
// filters on KantoMaxID.
package pokedex
