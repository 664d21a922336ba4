package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one OHLCV interval sample. Time is the open of the interval,
// truncated to the bar's resolution boundary in UTC. A bar stays mutable
// while its window is the current one and becomes history on rollover.
//
// Synthetic marks bars derived from single price points rather than true
// provider OHLC, so downstream consumers can tell approximations apart.
type Bar struct {
	Time      time.Time       `json:"time"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	Synthetic bool            `json:"synthetic,omitempty"`
}

// NewSyntheticBar seeds a degenerate bar from a single price point:
// open=high=low=close=price, volume 0. This is an explicit approximation,
// not an OHLC reconstruction.
func NewSyntheticBar(t time.Time, price decimal.Decimal) Bar {
	return Bar{
		Time:      t,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    decimal.Zero,
		Synthetic: true,
	}
}

// Clamp repairs minor provider inconsistencies so that
// low <= open,close <= high always holds. Violations are widened into the
// high/low range rather than rejected.
func (b Bar) Clamp() Bar {
	if b.High.LessThan(b.Low) {
		b.High, b.Low = b.Low, b.High
	}
	b.High = decimal.Max(b.High, b.Open, b.Close)
	b.Low = decimal.Min(b.Low, b.Open, b.Close)
	if b.Volume.IsNegative() {
		b.Volume = decimal.Zero
	}
	return b
}

// Valid reports whether the OHLC invariant holds.
func (b Bar) Valid() bool {
	return !b.Low.GreaterThan(b.Open) && !b.Low.GreaterThan(b.Close) &&
		!b.High.LessThan(b.Open) && !b.High.LessThan(b.Close) &&
		!b.Volume.IsNegative()
}

// Equal compares two bars by value. Used to suppress redundant emissions when
// a poll tick did not move the working bar.
func (b Bar) Equal(o Bar) bool {
	return b.Time.Equal(o.Time) &&
		b.Open.Equal(o.Open) &&
		b.High.Equal(o.High) &&
		b.Low.Equal(o.Low) &&
		b.Close.Equal(o.Close) &&
		b.Volume.Equal(o.Volume) &&
		b.Synthetic == o.Synthetic
}
