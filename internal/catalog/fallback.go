package catalog

import "tradeboard/internal/domain"

// fallbackSymbols returns the hard-coded list used whenever the provider is
// unreachable. Provider ids follow CoinMarketCap's public numbering so a
// later live refresh keeps channel keys stable.
func fallbackSymbols() []domain.Symbol {
	entries := []struct {
		base string
		name string
		id   int64
		rank int
	}{
		{"BTC", "Bitcoin", 1, 1},
		{"ETH", "Ethereum", 1027, 2},
		{"USDT", "Tether", 825, 3},
		{"BNB", "BNB", 1839, 4},
		{"SOL", "Solana", 5426, 5},
		{"USDC", "USD Coin", 3408, 6},
		{"XRP", "XRP", 52, 7},
		{"DOGE", "Dogecoin", 74, 8},
		{"ADA", "Cardano", 2010, 9},
		{"TRX", "TRON", 1958, 10},
		{"LTC", "Litecoin", 2, 11},
		{"DOT", "Polkadot", 6636, 12},
		{"MATIC", "Polygon", 3890, 13},
		{"AVAX", "Avalanche", 5805, 14},
		{"LINK", "Chainlink", 1975, 15},
	}

	out := make([]domain.Symbol, 0, len(entries)+4)
	for _, e := range entries {
		code := domain.MakeSymbolCode(e.base, "USD")
		out = append(out, domain.Symbol{
			Code:        code,
			FullName:    domain.Exchange + ":" + code,
			Name:        e.name,
			Description: e.name + " (" + e.base + ")",
			Category:    domain.CategoryCrypto,
			ProviderID:  e.id,
			Rank:        e.rank,
		})
	}

	// A few popular cross pairs the chart offers out of the box.
	crosses := []struct {
		base, quote string
		name        string
		id          int64
		rank        int
	}{
		{"BTC", "EUR", "Bitcoin", 1, 1},
		{"BTC", "USDT", "Bitcoin", 1, 1},
		{"ETH", "BTC", "Ethereum", 1027, 2},
		{"ETH", "USDT", "Ethereum", 1027, 2},
	}
	for _, e := range crosses {
		code := domain.MakeSymbolCode(e.base, e.quote)
		out = append(out, domain.Symbol{
			Code:        code,
			FullName:    domain.Exchange + ":" + code,
			Name:        e.name,
			Description: e.name + " to " + e.quote,
			Category:    domain.CategoryCrypto,
			ProviderID:  e.id,
			Rank:        e.rank,
		})
	}
	return out
}
