package market

import (
	"sort"
	"sync"

	"tradeboard/internal/domain"
)

// QuoteCache keeps the most recent quote per pair. Poll loops write into it
// as a side effect of ticking, so the REST API can serve stale-but-present
// prices even when the provider is briefly down.
type QuoteCache struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
}

// NewQuoteCache creates an empty cache.
func NewQuoteCache() *QuoteCache {
	return &QuoteCache{quotes: make(map[string]domain.Quote)}
}

// Update stores the latest quote for its pair.
func (c *QuoteCache) Update(q domain.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[q.Pair.String()] = q
}

// Latest returns the cached quote for a pair.
func (c *QuoteCache) Latest(pair domain.Pair) (domain.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[pair.String()]
	return q, ok
}

// All returns every cached quote sorted by pair for consistent ordering.
func (c *QuoteCache) All() []domain.Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Quote, 0, len(c.quotes))
	for _, q := range c.quotes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Pair.String() < out[j].Pair.String()
	})
	return out
}
