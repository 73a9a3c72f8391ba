package pokedex

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/kantodex/upstream"
)

// fakeFetcher serves canned documents by path. Unknown paths answer 404.
type fakeFetcher struct {
	mu     sync.Mutex
	docs   map[string]string
	errs   map[string]error
	calls  map[string]int
	closed int

	delay    time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		docs:  make(map[string]string),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, path string) (upstream.Document, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++

	if err, ok := f.errs[path]; ok {
		return nil, err
	}
	if body, ok := f.docs[path]; ok {
		return upstream.Document(body), nil
	}
	return nil, &upstream.Error{URL: path, StatusCode: 404, Kind: upstream.ErrStatus}
}

func (f *fakeFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeFetcher) set(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[path] = body
}

func (f *fakeFetcher) fail(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[path] = err
}

func (f *fakeFetcher) unfail(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.errs, path)
}

func (f *fakeFetcher) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func itemURL(id int) string {
	return fmt.Sprintf("%s/pokemon/%d/", upstream.DefaultBaseURL, id)
}

func indexPath(limit int) string {
	return fmt.Sprintf("/pokemon?limit=%d", limit)
}

func indexDoc(ids ...int) string {
	refs := make([]string, len(ids))
	for i, id := range ids {
		refs[i] = fmt.Sprintf(`{"name":"p%d","url":%q}`, id, itemURL(id))
	}
	return fmt.Sprintf(`{"count":%d,"results":[%s]}`, len(ids), strings.Join(refs, ","))
}

func pokemonDoc(id int, name string, types ...string) string {
	ts := make([]string, len(types))
	for i, t := range types {
		ts[i] = fmt.Sprintf(`{"slot":%d,"type":{"name":%q}}`, i+1, t)
	}
	return fmt.Sprintf(`{
		"id": %d,
		"name": %q,
		"height": 7,
		"weight": 69,
		"types": [%s],
		"stats": [
			{"base_stat": 45, "stat": {"name": "hp"}},
			{"base_stat": 49, "stat": {"name": "attack"}},
			{"base_stat": 49, "stat": {"name": "defense"}},
			{"base_stat": 65, "stat": {"name": "special-attack"}},
			{"base_stat": 65, "stat": {"name": "special-defense"}},
			{"base_stat": 45, "stat": {"name": "speed"}}
		]
	}`, id, name, strings.Join(ts, ","))
}

func speciesDoc(chainID int, entries ...[2]string) string {
	es := make([]string, len(entries))
	for i, e := range entries {
		es[i] = fmt.Sprintf(`{"flavor_text":%q,"language":{"name":%q}}`, e[1], e[0])
	}
	return fmt.Sprintf(`{
		"flavor_text_entries": [%s],
		"evolution_chain": {"url": "%s/evolution-chain/%d/"}
	}`, strings.Join(es, ","), upstream.DefaultBaseURL, chainID)
}

// seedList registers an index page and one pokemon document per id.
func seedList(f *fakeFetcher, limit int, ids ...int) {
	f.set(indexPath(limit), indexDoc(ids...))
	for _, id := range ids {
		f.set(itemURL(id), pokemonDoc(id, fmt.Sprintf("mon-%d", id), "normal"))
	}
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
