package catalog

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"tradeboard/internal/domain"
)

// SearchLimit caps search results to protect the UI from unbounded render
// cost.
const SearchLimit = 50

// quote currencies added for top-ranked listings, mirroring the pairs the
// chart search box offers besides USD.
var extraQuotes = []string{"EUR", "BTC", "ETH"}

const extraQuoteRankCutoff = 20

// Catalog caches the flat list of tradable symbols. Refresh replaces the
// list wholesale; a hard-coded fallback guarantees callers never see zero
// symbols, whatever the provider does.
type Catalog struct {
	mu      sync.RWMutex
	symbols []domain.Symbol
	fetched bool // true once a live refresh succeeded

	source domain.SymbolSource
	limit  int
	logger *slog.Logger
}

// New creates a catalog seeded with the static fallback list.
func New(source domain.SymbolSource, listingLimit int, logger *slog.Logger) *Catalog {
	if listingLimit <= 0 {
		listingLimit = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		symbols: fallbackSymbols(),
		source:  source,
		limit:   listingLimit,
		logger:  logger.With("module", "catalog"),
	}
}

// Refresh fetches the symbol universe from the provider and replaces the
// cached list. Transport or parse failures never propagate: the previous
// list stays if one was fetched before, otherwise the static fallback holds.
func (c *Catalog) Refresh(ctx context.Context) []domain.Symbol {
	listings, err := c.source.Listings(ctx, c.limit)
	if err != nil || len(listings) == 0 {
		c.logger.Warn("symbol refresh failed, keeping fallback data",
			slog.Any("error", err), slog.Bool("retriable", domain.IsRetriable(err)))
		return c.All()
	}

	symbols := expandQuotes(listings)
	sort.SliceStable(symbols, func(i, j int) bool {
		return rankKey(symbols[i].Rank) < rankKey(symbols[j].Rank)
	})

	c.mu.Lock()
	c.symbols = symbols
	c.fetched = true
	c.mu.Unlock()

	c.logger.Info("symbol catalog refreshed",
		slog.Int("listings", len(listings)), slog.Int("symbols", len(symbols)))
	return c.All()
}

// expandQuotes adds EUR/BTC/ETH pairs for the top-ranked listings on top of
// the provider's USD pairs.
func expandQuotes(listings []domain.Symbol) []domain.Symbol {
	out := make([]domain.Symbol, 0, len(listings)+extraQuoteRankCutoff*len(extraQuotes))
	for _, s := range listings {
		out = append(out, s)
		if s.Rank == 0 || s.Rank > extraQuoteRankCutoff {
			continue
		}
		base := s.Base()
		for _, q := range extraQuotes {
			if q == base {
				continue
			}
			alt := s
			alt.Code = domain.MakeSymbolCode(base, q)
			alt.FullName = domain.Exchange + ":" + alt.Code
			alt.Description = s.Name + " to " + q
			alt.LastKnownPrice = nil // price is quoted in USD only
			out = append(out, alt)
		}
	}
	return out
}

// All returns a copy of the cached list.
func (c *Catalog) All() []domain.Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Symbol, len(c.symbols))
	copy(out, c.symbols)
	return out
}

// Fetched reports whether the catalog holds live provider data rather than
// the static fallback.
func (c *Catalog) Fetched() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetched
}

// Resolve finds a symbol by full name ("CMC:BTC/USD") or plain code
// ("BTC/USD").
func (c *Catalog) Resolve(name string) (domain.Symbol, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.symbols {
		if s.FullName == name || s.Code == name {
			return s, nil
		}
	}
	return domain.Symbol{}, domain.ErrSymbolNotFound
}

// PairFor resolves a full symbol name into the channel key used for polling,
// filling the provider id from the catalog.
func (c *Catalog) PairFor(name string) (domain.Pair, error) {
	pair, err := domain.ParsePair(name)
	if err != nil {
		return domain.Pair{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.symbols {
		if s.Base() == pair.Base {
			pair.ProviderID = s.ProviderID
			return pair, nil
		}
	}
	return domain.Pair{}, domain.ErrSymbolNotFound
}

// Search filters the catalog case-insensitively and ranks results: exact
// base-symbol matches first, then prefix matches, ties broken by ascending
// provider rank. A hit requires the query to match the base symbol (exact or
// prefix) or the display name (prefix); plain substring hits elsewhere in the
// code are ignored so "btc" does not drag in every *BTC cross pair. Results
// are capped at SearchLimit.
func (c *Catalog) Search(query string, category domain.Category) []domain.Symbol {
	q := strings.ToLower(strings.TrimSpace(query))

	c.mu.RLock()
	defer c.mu.RUnlock()

	type scored struct {
		sym   domain.Symbol
		score int
	}
	var hits []scored
	for _, s := range c.symbols {
		if category != "" && s.Category != category {
			continue
		}
		score := matchScore(s, q)
		if score == 0 {
			continue
		}
		hits = append(hits, scored{sym: s, score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return rankKey(hits[i].sym.Rank) < rankKey(hits[j].sym.Rank)
	})

	if len(hits) > SearchLimit {
		hits = hits[:SearchLimit]
	}
	out := make([]domain.Symbol, len(hits))
	for i, h := range hits {
		out[i] = h.sym
	}
	return out
}

const (
	scoreExactBase  = 3
	scoreBasePrefix = 2
	scoreNamePrefix = 1
)

func matchScore(s domain.Symbol, query string) int {
	if query == "" {
		// Empty query lists everything, ordered by rank.
		return scoreNamePrefix
	}
	base := strings.ToLower(s.Base())
	switch {
	case base == query:
		return scoreExactBase
	case strings.HasPrefix(base, query):
		return scoreBasePrefix
	case strings.HasPrefix(strings.ToLower(s.Name), query):
		return scoreNamePrefix
	}
	return 0
}

// rankKey sorts unranked (0) symbols last.
func rankKey(rank int) int {
	if rank <= 0 {
		return 1 << 30
	}
	return rank
}
