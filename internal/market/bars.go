package market

import (
	"time"

	"github.com/shopspring/decimal"

	"tradeboard/internal/domain"
)

// Payload is a provider quote normalised just enough to build a bar from.
// Some endpoints return true OHLCV, the latest-quote endpoint only a price
// point; absent OHLC fields stay nil.
type Payload struct {
	Time   time.Time
	Open   *decimal.Decimal
	High   *decimal.Decimal
	Low    *decimal.Decimal
	Close  *decimal.Decimal
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// ToBar converts a provider payload into a canonical bar for the given
// resolution. Full OHLC payloads are mapped directly with the
// low<=open,close<=high invariant repaired by clamping; price-only payloads
// become synthetic bars. Provider inconsistencies never raise.
func ToBar(p Payload, res domain.Resolution) domain.Bar {
	t := res.Align(p.Time)
	if p.Open == nil || p.High == nil || p.Low == nil || p.Close == nil {
		return domain.NewSyntheticBar(t, p.Price)
	}
	b := domain.Bar{
		Time:   t,
		Open:   *p.Open,
		High:   *p.High,
		Low:    *p.Low,
		Close:  *p.Close,
		Volume: p.Volume,
	}
	return b.Clamp()
}

// advance applies one polled price to a channel's working bar and decides
// between extending it and rolling over to a new one. The same Align call
// drives both paths, so boundary decisions cannot drift apart. Callers dedupe
// the result against the last emitted bar.
func advance(working domain.Bar, hasWorking bool, price decimal.Decimal, now time.Time, res domain.Resolution) domain.Bar {
	barTime := res.Align(now)
	if !hasWorking || !barTime.Equal(working.Time) {
		// Rollover: the previous bar became history the moment its window
		// elapsed; there is no separate close event.
		return domain.NewSyntheticBar(barTime, price)
	}

	working.Close = price
	working.High = decimal.Max(working.High, price)
	working.Low = decimal.Min(working.Low, price)
	return working
}
