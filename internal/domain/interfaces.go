package domain

import "context"

// QuoteProvider fetches the latest price point for a pair from the
// market-data provider. Implemented by the CMC REST client; stubbed in tests.
type QuoteProvider interface {
	LatestQuote(ctx context.Context, pair Pair) (Quote, error)
}

// SymbolSource fetches the tradable symbol universe from the provider.
type SymbolSource interface {
	Listings(ctx context.Context, limit int) ([]Symbol, error)
}

// TextGenerator is the boundary to the hosted generation API. Configured
// reports whether a usable credential is present; the chat bridge degrades to
// canned responses when it is not.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Configured() bool
}
