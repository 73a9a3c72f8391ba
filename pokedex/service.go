package pokedex

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/kantodex/cache"
	"github.com/jonwraymond/kantodex/observe"
	"github.com/jonwraymond/kantodex/upstream"
)

// Operation names used for spans, metrics and scoped loggers.
const (
	OpListCreatures     = "list_creatures"
	OpGetDetail         = "get_detail"
	OpGetEvolutionChain = "get_evolution_chain"
	OpCompareCreatures  = "compare_creatures"
)

const component = "pokedex"

// Service aggregates upstream documents into view models behind a cache.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use.
//   - Caching: only successful results are stored; concurrent misses on
//     the same key each fetch and each store.
//   - Errors: per-item failures inside ListCreatures and CompareCreatures
//     are dropped from the result, never returned.
type Service struct {
	fetcher upstream.Fetcher
	cache   cache.Cache
	loader  *cache.Loader

	policy         cache.Policy
	keyer          cache.Keyer
	images         Images
	locale         string
	fanoutLimit    int
	parallelDetail bool

	mw     *observe.Middleware
	logger observe.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy sets the cache TTL policy.
// Default: cache.DefaultPolicy()
func WithPolicy(p cache.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithKeyer sets the cache key scheme.
// Default: cache.PlainKeyer
func WithKeyer(k cache.Keyer) Option {
	return func(s *Service) {
		s.keyer = k
	}
}

// WithImageTemplate sets the artwork URL template.
// Default: DefaultImageTemplate
func WithImageTemplate(tmpl string) Option {
	return func(s *Service) {
		if tmpl != "" {
			s.images = Images{Template: tmpl}
		}
	}
}

// WithLocale sets the flavor text language.
// Default: "en"
func WithLocale(locale string) Option {
	return func(s *Service) {
		if locale != "" {
			s.locale = locale
		}
	}
}

// WithFanoutLimit caps concurrent fetches within one list or compare call.
// Default: 0 (one goroutine per item)
func WithFanoutLimit(n int) Option {
	return func(s *Service) {
		s.fanoutLimit = n
	}
}

// WithParallelDetail fetches the pokemon and species documents concurrently.
// Default: false (sequential)
func WithParallelDetail(enabled bool) Option {
	return func(s *Service) {
		s.parallelDetail = enabled
	}
}

// WithMiddleware wraps each operation with tracing and metrics and reports
// cache lookups to its metrics.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(s *Service) {
		s.mw = mw
	}
}

// WithLogger sets the service logger.
// Default: the middleware logger, or a no-op logger
func WithLogger(l observe.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a Service. A nil cache gets a fresh MemoryCache.
func NewService(fetcher upstream.Fetcher, c cache.Cache, opts ...Option) *Service {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	s := &Service{
		fetcher: fetcher,
		cache:   c,
		policy:  cache.DefaultPolicy(),
		images:  DefaultImages(),
		locale:  DefaultLocale,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		if s.mw != nil {
			s.logger = s.mw.Logger()
		} else {
			s.logger = observe.NopLogger()
		}
	}

	var loaderOpts []cache.LoaderOption
	if s.mw != nil {
		loaderOpts = append(loaderOpts, cache.WithRecorder(s.mw.Metrics()))
	}
	s.loader = cache.NewLoader(c, s.keyer, s.policy, loaderOpts...)
	return s
}

// Cache returns the cache the service reads through.
func (s *Service) Cache() cache.Cache {
	return s.cache
}

// Close releases the upstream client if it holds resources.
func (s *Service) Close() error {
	if c, ok := s.fetcher.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ListCreatures returns the first limit creatures sorted by id. A limit of
// zero or less means KantoMaxID.
//
// Items whose fetch or normalization fails are left out. The call fails
// only when the index page cannot be fetched, with ErrUpstreamUnavailable.
// An empty list is returned but not cached.
func (s *Service) ListCreatures(ctx context.Context, limit int) ([]ListItem, error) {
	if limit <= 0 {
		limit = KantoMaxID
	}
	meta := s.meta(OpListCreatures, attribute.Int("pokedex.limit", limit))

	var items []ListItem
	err := s.observe(ctx, meta, func(ctx context.Context) error {
		var fresh []ListItem
		raw, hit, err := s.loader.Load(ctx, cache.KindList, limit, func(ctx context.Context) ([]byte, error) {
			list, err := s.fetchList(ctx, meta, limit)
			if err != nil {
				return nil, err
			}
			fresh = list
			return json.Marshal(list)
		})
		if err != nil {
			return err
		}
		s.logLookup(ctx, meta, cache.KindList, limit, hit)

		if !hit {
			items = fresh
			return nil
		}
		return decodeCached(raw, &items, cache.KindList, limit)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

type listSlot struct {
	item ListItem
	err  error
}

func (s *Service) fetchList(ctx context.Context, meta observe.OpMeta, limit int) ([]ListItem, error) {
	index, err := s.fetcher.Fetch(ctx, "/pokemon?limit="+strconv.Itoa(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	refs := index.Get("results.#.url").Array()
	slots := make([]listSlot, len(refs))

	var g errgroup.Group
	if s.fanoutLimit > 0 {
		g.SetLimit(s.fanoutLimit)
	}
	for i, ref := range refs {
		g.Go(func() error {
			slots[i].item, slots[i].err = s.fetchListItem(ctx, ref.String())
			return nil
		})
	}
	_ = g.Wait()

	items := make([]ListItem, 0, len(slots))
	dropped := 0
	for i, slot := range slots {
		if slot.err != nil {
			dropped++
			s.logger.WithOperation(meta).Debug(ctx, "dropping list item",
				observe.F("ref", refs[i].String()),
				observe.F("error", slot.err),
			)
			continue
		}
		items = append(items, slot.item)
	}
	if dropped > 0 && s.mw != nil {
		s.mw.Metrics().RecordDropped(ctx, meta, dropped)
	}

	slices.SortFunc(items, func(a, b ListItem) int { return cmp.Compare(a.ID, b.ID) })
	return items, nil
}

func (s *Service) fetchListItem(ctx context.Context, ref string) (ListItem, error) {
	if ref == "" {
		return ListItem{}, fmt.Errorf("%w: index entry without url", ErrMalformedRecord)
	}
	doc, err := s.fetcher.Fetch(ctx, ref)
	if err != nil {
		return ListItem{}, err
	}
	return NormalizeListItem(doc, s.images)
}

// GetDetail returns the full record for id. Any failure, whether the id is
// unknown or the upstream is unreachable, is reported as ErrNotFound with
// the cause wrapped.
func (s *Service) GetDetail(ctx context.Context, id int) (*Detail, error) {
	meta := s.meta(OpGetDetail, attribute.Int("pokemon.id", id))

	var detail *Detail
	err := s.observe(ctx, meta, func(ctx context.Context) error {
		var fresh Detail
		raw, hit, err := s.loader.Load(ctx, cache.KindDetail, id, func(ctx context.Context) ([]byte, error) {
			d, err := s.fetchDetail(ctx, id)
			if err != nil {
				return nil, err
			}
			fresh = d
			return json.Marshal(d)
		})
		if err != nil {
			s.logger.WithOperation(meta).Warn(ctx, "detail fetch failed",
				observe.F("id", id),
				observe.F("error", err),
			)
			return fmt.Errorf("%w: pokemon %d: %w", ErrNotFound, id, err)
		}
		s.logLookup(ctx, meta, cache.KindDetail, id, hit)

		if !hit {
			detail = &fresh
			return nil
		}
		var d Detail
		if err := decodeCached(raw, &d, cache.KindDetail, id); err != nil {
			return err
		}
		detail = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Service) fetchDetail(ctx context.Context, id int) (Detail, error) {
	pokemonPath := "/pokemon/" + strconv.Itoa(id)
	speciesPath := "/pokemon-species/" + strconv.Itoa(id)

	var pokemon, species upstream.Document
	if s.parallelDetail {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			pokemon, err = s.fetcher.Fetch(gctx, pokemonPath)
			return err
		})
		g.Go(func() (err error) {
			species, err = s.fetcher.Fetch(gctx, speciesPath)
			return err
		})
		if err := g.Wait(); err != nil {
			return Detail{}, err
		}
	} else {
		var err error
		if pokemon, err = s.fetcher.Fetch(ctx, pokemonPath); err != nil {
			return Detail{}, err
		}
		if species, err = s.fetcher.Fetch(ctx, speciesPath); err != nil {
			return Detail{}, err
		}
	}

	return NormalizeDetail(pokemon, species, s.locale, s.images)
}

// GetEvolutionChain returns the evolution chain containing id. Failures
// are reported as ErrNotFound with the cause wrapped.
func (s *Service) GetEvolutionChain(ctx context.Context, id int) (*EvolutionChain, error) {
	meta := s.meta(OpGetEvolutionChain, attribute.Int("pokemon.id", id))

	var chain *EvolutionChain
	err := s.observe(ctx, meta, func(ctx context.Context) error {
		var fresh EvolutionChain
		raw, hit, err := s.loader.Load(ctx, cache.KindEvolution, id, func(ctx context.Context) ([]byte, error) {
			c, err := s.fetchEvolution(ctx, id)
			if err != nil {
				return nil, err
			}
			fresh = c
			return json.Marshal(c)
		})
		if err != nil {
			s.logger.WithOperation(meta).Warn(ctx, "evolution fetch failed",
				observe.F("id", id),
				observe.F("error", err),
			)
			return fmt.Errorf("%w: evolution chain for %d: %w", ErrNotFound, id, err)
		}
		s.logLookup(ctx, meta, cache.KindEvolution, id, hit)

		if !hit {
			chain = &fresh
			return nil
		}
		var c EvolutionChain
		if err := decodeCached(raw, &c, cache.KindEvolution, id); err != nil {
			return err
		}
		chain = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chain, nil
}

func (s *Service) fetchEvolution(ctx context.Context, id int) (EvolutionChain, error) {
	species, err := s.fetcher.Fetch(ctx, "/pokemon-species/"+strconv.Itoa(id))
	if err != nil {
		return EvolutionChain{}, err
	}

	ref := species.Get("evolution_chain.url").String()
	if ref == "" {
		return EvolutionChain{}, fmt.Errorf("%w: species %d has no evolution chain", ErrMalformedRecord, id)
	}

	doc, err := s.fetcher.Fetch(ctx, strings.TrimPrefix(ref, upstream.DefaultBaseURL))
	if err != nil {
		return EvolutionChain{}, err
	}

	stages, err := ParseEvolutionChain(doc, s.images)
	if err != nil {
		return EvolutionChain{}, err
	}
	return EvolutionChain{Chain: stages}, nil
}

// CompareCreatures fetches the detail of every id concurrently and returns
// the successes in input order. An empty result is not an error.
func (s *Service) CompareCreatures(ctx context.Context, ids []int) ([]Detail, error) {
	meta := s.meta(OpCompareCreatures, attribute.IntSlice("pokemon.ids", ids))

	var details []Detail
	err := s.observe(ctx, meta, func(ctx context.Context) error {
		slots := make([]*Detail, len(ids))

		var g errgroup.Group
		if s.fanoutLimit > 0 {
			g.SetLimit(s.fanoutLimit)
		}
		for i, id := range ids {
			g.Go(func() error {
				d, err := s.GetDetail(ctx, id)
				if err == nil {
					slots[i] = d
				}
				return nil
			})
		}
		_ = g.Wait()

		details = make([]Detail, 0, len(slots))
		for _, d := range slots {
			if d != nil {
				details = append(details, *d)
			}
		}
		if dropped := len(ids) - len(details); dropped > 0 && s.mw != nil {
			s.mw.Metrics().RecordDropped(ctx, meta, dropped)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (s *Service) meta(name string, attrs ...attribute.KeyValue) observe.OpMeta {
	return observe.OpMeta{Component: component, Name: name, Attrs: attrs}
}

func (s *Service) observe(ctx context.Context, meta observe.OpMeta, fn func(context.Context) error) error {
	if s.mw == nil {
		return fn(ctx)
	}
	return s.mw.Observe(ctx, meta, fn)
}

func (s *Service) logLookup(ctx context.Context, meta observe.OpMeta, kind cache.Kind, input any, hit bool) {
	msg := "cache miss"
	if hit {
		msg = "cache hit"
	}
	s.logger.WithOperation(meta).Debug(ctx, msg,
		observe.F("cache.kind", string(kind)),
		observe.F("input", input),
	)
}

func decodeCached(raw []byte, v any, kind cache.Kind, input any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("pokedex: corrupt %s cache entry for %v: %w", kind, input, err)
	}
	return nil
}
