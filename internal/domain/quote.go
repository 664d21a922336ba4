package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the latest price point for a pair as reported by the provider.
// The provider only hands out single price points, so OHLC bars derived from
// quotes are synthetic by construction.
type Quote struct {
	Pair       Pair            `json:"pair"`
	Price      decimal.Decimal `json:"price"`
	Volume24h  decimal.Decimal `json:"volume_24h"`
	Change24h  decimal.Decimal `json:"change_24h"` // percent
	High24h    decimal.Decimal `json:"high_24h"`
	Low24h     decimal.Decimal `json:"low_24h"`
	ReceivedAt time.Time       `json:"received_at"`
}
