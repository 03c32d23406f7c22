// Package markets caches per-symbol trading rules fetched from the exchange.
package markets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/citrohq/citro-go/errs"
	"github.com/citrohq/citro-go/schema"
)

// Fetcher retrieves market metadata from the exchange. The transport's
// markets service implements it; tests substitute fakes.
type Fetcher interface {
	FetchMarkets(ctx context.Context, category schema.Category, symbols ...string) ([]schema.Market, error)
}

// DefaultMaxAge bounds how stale a cache entry may be before Lookup refreshes
// it in place.
const DefaultMaxAge = 5 * time.Minute

type entry struct {
	market    schema.Market
	fetchedAt time.Time
}

// Cache holds market metadata keyed by symbol. Reads never block on network
// I/O for other symbols: the lock guards only map access, fetches run outside
// it, and concurrent refreshes of the same symbol coalesce onto one fetch.
type Cache struct {
	fetcher Fetcher
	maxAge  time.Duration
	clock   func() time.Time

	mu       sync.RWMutex
	entries  map[string]entry
	inflight map[string]*inflightFetch
}

// inflightFetch coalesces concurrent refreshes of one symbol. The owner sets
// err before closing done, so waiters observe the fetch outcome.
type inflightFetch struct {
	done chan struct{}
	err  error
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithMaxAge overrides the staleness bound used by Lookup.
func WithMaxAge(maxAge time.Duration) CacheOption {
	return func(c *Cache) {
		if maxAge > 0 {
			c.maxAge = maxAge
		}
	}
}

// WithCacheClock overrides the cache's time source, primarily for testing.
func WithCacheClock(clock func() time.Time) CacheOption {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewCache constructs an empty cache backed by the given fetcher.
func NewCache(fetcher Fetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher:  fetcher,
		maxAge:   DefaultMaxAge,
		clock:    time.Now,
		entries:  make(map[string]entry),
		inflight: make(map[string]*inflightFetch),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Refresh fetches metadata for the given symbols and replaces the cached
// entries. With no symbols it replaces the entire cache. A fetch or validation
// failure leaves the cache exactly as it was: the batch is validated and
// staged in full before any cached entry changes.
func (c *Cache) Refresh(ctx context.Context, category schema.Category, symbols ...string) error {
	fetched, err := c.fetcher.FetchMarkets(ctx, category, symbols...)
	if err != nil {
		return fmt.Errorf("refresh markets: %w", err)
	}
	now := c.clock()

	staged := make(map[string]entry, len(fetched))
	for _, market := range fetched {
		if err := market.Validate(); err != nil {
			return fmt.Errorf("refresh markets: %w", err)
		}
		staged[schema.NormalizeSymbol(market.Symbol)] = entry{market: market, fetchedAt: now}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(symbols) == 0 {
		c.entries = staged
		return nil
	}
	for key, fresh := range staged {
		c.entries[key] = fresh
	}
	return nil
}

// Get returns the cached metadata for symbol regardless of age. An unknown
// symbol yields an invalid_pair error.
func (c *Cache) Get(symbol string) (schema.Market, error) {
	key := schema.NormalizeSymbol(symbol)
	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return schema.Market{}, errs.FromAPICode(errs.APIInvalidPair, "",
			errs.WithOp("markets.get"),
			errs.WithMessage(fmt.Sprintf("unknown market %q", symbol)))
	}
	return cached.market, nil
}

// Lookup returns metadata for symbol no staler than the configured bound,
// refreshing it in place when needed. A refresh for one symbol never blocks
// reads of another.
func (c *Cache) Lookup(ctx context.Context, symbol string) (schema.Market, error) {
	key := schema.NormalizeSymbol(symbol)
	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.clock().Sub(cached.fetchedAt) <= c.maxAge {
		return cached.market, nil
	}
	if err := c.refreshSymbol(ctx, key); err != nil {
		if ok {
			// Stale data beats no data when the exchange is unreachable.
			return cached.market, nil
		}
		return schema.Market{}, err
	}
	return c.Get(symbol)
}

// Invalidate evicts the given symbols, or the whole cache when none are
// given.
func (c *Cache) Invalidate(symbols ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(symbols) == 0 {
		c.entries = make(map[string]entry)
		return
	}
	for _, symbol := range symbols {
		delete(c.entries, schema.NormalizeSymbol(symbol))
	}
}

// Symbols lists the cached symbols.
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.entries))
	for key := range c.entries {
		out = append(out, key)
	}
	return out
}

func (c *Cache) refreshSymbol(ctx context.Context, key string) error {
	c.mu.Lock()
	if waiter, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-waiter.done:
			return waiter.err
		case <-ctx.Done():
			return fmt.Errorf("lookup %s: %w", key, ctx.Err())
		}
	}
	fetch := &inflightFetch{done: make(chan struct{})}
	c.inflight[key] = fetch
	c.mu.Unlock()

	err := c.Refresh(ctx, schema.CategorySpot, key)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	fetch.err = err
	close(fetch.done)
	return err
}
