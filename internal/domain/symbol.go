package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Category classifies a tradable instrument.
type Category string

const (
	CategoryCrypto    Category = "crypto"
	CategoryStock     Category = "stock"
	CategoryForex     Category = "forex"
	CategoryCommodity Category = "commodity"
)

// Exchange is the display prefix used in full symbol names, e.g. "CMC:BTC/USD".
const Exchange = "CMC"

// Symbol represents one tradable pair from the market-data provider.
// Instances are immutable once fetched; the catalog replaces its list
// wholesale on refresh.
type Symbol struct {
	Code           string           `json:"symbol"`    // "BTC/USD"
	FullName       string           `json:"full_name"` // "CMC:BTC/USD"
	Name           string           `json:"name"`      // "Bitcoin"
	Description    string           `json:"description"`
	Category       Category         `json:"type"`
	ProviderID     int64            `json:"id"`   // provider's opaque key
	Rank           int              `json:"rank"` // lower = more prominent, 0 = unranked
	LastKnownPrice *decimal.Decimal `json:"price,omitempty"`
}

// Base returns the base currency of the pair ("BTC" for "BTC/USD").
// Codes without a separator are their own base ("BTCEUR" -> "BTCEUR").
func (s Symbol) Base() string {
	if i := strings.IndexByte(s.Code, '/'); i >= 0 {
		return s.Code[:i]
	}
	return s.Code
}

// QuoteCurrency returns the quote side of the pair, "" when the code has no
// separator.
func (s Symbol) QuoteCurrency() string {
	if i := strings.IndexByte(s.Code, '/'); i >= 0 {
		return s.Code[i+1:]
	}
	return ""
}

// Pair identifies the unique polling unit for a symbol: the provider key plus
// the currency the price is quoted in. All subscribers of the same pair share
// one upstream poll loop.
type Pair struct {
	ProviderID int64  `json:"id"`
	Base       string `json:"base"`
	Quote      string `json:"quote"`
}

// String renders the pair in full-symbol form.
func (p Pair) String() string {
	return fmt.Sprintf("%s:%s/%s", Exchange, p.Base, p.Quote)
}

var pairPattern = regexp.MustCompile(`^(\w+)/(\w+)$`)

// ParsePair parses "CMC:BTC/USD" or "BTC/USD" into base and quote parts.
// The provider id is unknown at parse time and must be filled in from the
// catalog.
func ParsePair(fullSymbol string) (Pair, error) {
	clean := strings.TrimPrefix(fullSymbol, Exchange+":")
	m := pairPattern.FindStringSubmatch(clean)
	if m == nil {
		return Pair{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, fullSymbol)
	}
	return Pair{Base: strings.ToUpper(m[1]), Quote: strings.ToUpper(m[2])}, nil
}

// MakeSymbolCode builds the canonical pair code.
func MakeSymbolCode(base, quote string) string {
	return base + "/" + quote
}
