// Package resolver answers "give me canonical data for symbol X" while hiding
// provider selection, quota exhaustion and schema differences from callers.
// Providers are tried strictly in priority order; the first healthy,
// within-budget provider wins. There is no load balancing, which keeps
// behavior deterministic.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"optionsdata/internal/budget"
	"optionsdata/internal/cache"
	"optionsdata/internal/feed"
)

// ErrNoData is the only failure a caller ever sees: every provider was
// exhausted, unavailable or failing. Callers never receive a zero-filled
// object masquerading as real data.
var ErrNoData = errors.New("resolver: no data available from any provider")

// Tier binds an adapter to its fallback rank. Higher priority is tried first.
type Tier struct {
	Adapter  feed.Adapter
	Priority int
}

// TTLs are the cache lifetimes per data kind.
type TTLs struct {
	Price        time.Duration
	Option       time.Duration
	Fundamentals time.Duration
	News         time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{
		Price:        60 * time.Minute,
		Option:       5 * time.Minute,
		Fundamentals: 240 * time.Minute,
		News:         30 * time.Minute,
	}
}

// Options tune the resolver.
type Options struct {
	// CallTimeout bounds each provider call so one hanging upstream cannot
	// stall the whole resolution. Zero means 10s.
	CallTimeout time.Duration
	TTL         TTLs
}

type tier struct {
	adapter  feed.Adapter
	priority int

	mu      sync.Mutex
	healthy bool
}

func (t *tier) setHealthy(ok bool) {
	t.mu.Lock()
	if t.healthy != ok {
		if ok {
			log.Printf("resolver: provider %s recovered", t.adapter.Name())
		} else {
			log.Printf("resolver: provider %s marked unhealthy", t.adapter.Name())
		}
	}
	t.healthy = ok
	t.mu.Unlock()
}

// Resolver walks the provider tiers for uncached requests. Safe for
// concurrent use; concurrent requests for the same key are coalesced into a
// single provider call.
type Resolver struct {
	tiers       []*tier
	store       cache.Store
	tracker     *budget.Tracker
	sf          singleflight.Group
	callTimeout time.Duration
	ttl         TTLs
}

func New(tiers []Tier, store cache.Store, tracker *budget.Tracker, opts Options) *Resolver {
	sorted := make([]*tier, 0, len(tiers))
	for _, t := range tiers {
		sorted = append(sorted, &tier{adapter: t.Adapter, priority: t.Priority, healthy: true})
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].priority > sorted[j].priority })

	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	zero := TTLs{}
	if opts.TTL == zero {
		opts.TTL = DefaultTTLs()
	}
	return &Resolver{
		tiers:       sorted,
		store:       store,
		tracker:     tracker,
		callTimeout: opts.CallTimeout,
		ttl:         opts.TTL,
	}
}

// Usage exposes the per-provider quota snapshot for inspection endpoints.
func (r *Resolver) Usage() []budget.Usage { return r.tracker.Snapshot() }

// Health reports the liveness flag per provider: false after a hard failure,
// true again after the next successful call. A degraded provider is still
// retried on the next top-level request; the flag is informational.
func (r *Resolver) Health() map[string]bool {
	out := make(map[string]bool, len(r.tiers))
	for _, t := range r.tiers {
		t.mu.Lock()
		out[t.adapter.Name()] = t.healthy
		t.mu.Unlock()
	}
	return out
}

type resolved struct {
	payload json.RawMessage
	source  string
	cached  bool
}

// resolve is the single code path behind every data kind: cache, then the
// tier walk under a per-key singleflight so a burst of identical requests
// costs at most one upstream call.
func (r *Resolver) resolve(ctx context.Context, key string, ttl time.Duration,
	fetch func(ctx context.Context, a feed.Adapter) (any, error)) (resolved, error) {

	if e, ok := r.store.Get(ctx, key); ok {
		return resolved{payload: e.Payload, source: e.Source, cached: true}, nil
	}

	v, err, _ := r.sf.Do(key, func() (any, error) {
		// A joiner may land here after the winner populated the cache.
		if e, ok := r.store.Get(ctx, key); ok {
			return resolved{payload: e.Payload, source: e.Source, cached: true}, nil
		}
		return r.walk(ctx, key, ttl, fetch)
	})
	if err != nil {
		return resolved{}, err
	}
	return v.(resolved), nil
}

// walk tries each tier once. Per-provider failures are absorbed here; nothing
// below this boundary throws into caller code.
func (r *Resolver) walk(ctx context.Context, key string, ttl time.Duration,
	fetch func(ctx context.Context, a feed.Adapter) (any, error)) (resolved, error) {

	for _, t := range r.tiers {
		name := t.adapter.Name()
		if !r.tracker.Allows(name) {
			log.Printf("resolver: %s over budget, skipping for %s", name, key)
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		payload, err := fetch(callCtx, t.adapter)
		cancel()

		if err != nil && errors.Is(err, feed.ErrUnsupported) {
			// No upstream call was made; don't charge the budget.
			continue
		}
		// The provider was contacted: the call counts even if it failed or
		// the caller has since gone away. No rollback.
		r.tracker.Record(name)

		switch {
		case err == nil:
			t.setHealthy(true)
			raw, merr := json.Marshal(payload)
			if merr != nil {
				return resolved{}, fmt.Errorf("resolver: encode %s result: %w", name, merr)
			}
			r.store.Put(ctx, key, raw, name, ttl)
			return resolved{payload: raw, source: name}, nil

		case ctx.Err() != nil:
			// Top-level cancellation, not a provider fault.
			return resolved{}, ctx.Err()

		case feed.IsTransport(err):
			t.setHealthy(false)
			log.Printf("resolver: %s failed for %s: %v", name, key, err)

		case errors.Is(err, feed.ErrUnavailable):
			log.Printf("resolver: %s has no data for %s", name, key)

		default:
			// Unexpected adapter error; treat like unavailable and move on.
			log.Printf("resolver: %s error for %s: %v", name, key, err)
		}
	}
	return resolved{}, ErrNoData
}

func (r *Resolver) PriceHistory(ctx context.Context, req feed.PriceRequest) (*feed.PriceSeries, error) {
	res, err := r.resolve(ctx, req.Key(), r.ttl.Price, func(ctx context.Context, a feed.Adapter) (any, error) {
		return a.PriceHistory(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	var out feed.PriceSeries
	if err := json.Unmarshal(res.payload, &out); err != nil {
		return nil, fmt.Errorf("resolver: decode cached series: %w", err)
	}
	return &out, nil
}

func (r *Resolver) OptionQuote(ctx context.Context, req feed.OptionRequest) (*feed.OptionQuote, error) {
	res, err := r.resolve(ctx, req.Key(), r.ttl.Option, func(ctx context.Context, a feed.Adapter) (any, error) {
		return a.OptionQuote(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	var out feed.OptionQuote
	if err := json.Unmarshal(res.payload, &out); err != nil {
		return nil, fmt.Errorf("resolver: decode cached quote: %w", err)
	}
	return &out, nil
}

func (r *Resolver) Fundamentals(ctx context.Context, req feed.FundamentalsRequest) (*feed.Fundamentals, error) {
	res, err := r.resolve(ctx, req.Key(), r.ttl.Fundamentals, func(ctx context.Context, a feed.Adapter) (any, error) {
		return a.Fundamentals(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	var out feed.Fundamentals
	if err := json.Unmarshal(res.payload, &out); err != nil {
		return nil, fmt.Errorf("resolver: decode cached fundamentals: %w", err)
	}
	return &out, nil
}

func (r *Resolver) News(ctx context.Context, req feed.NewsRequest) ([]feed.NewsItem, error) {
	res, err := r.resolve(ctx, req.Key(), r.ttl.News, func(ctx context.Context, a feed.Adapter) (any, error) {
		return a.News(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	var out []feed.NewsItem
	if err := json.Unmarshal(res.payload, &out); err != nil {
		return nil, fmt.Errorf("resolver: decode cached news: %w", err)
	}
	return out, nil
}
