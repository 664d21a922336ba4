package domain

import (
	"fmt"
	"time"
)

// Resolution is the time granularity of bars, in the charting library's
// notation: minutes as plain numbers ("1", "5", "15", "30", "60", "240"),
// "1D", "1W", "1M" for daily and above.
type Resolution string

const (
	Res1Min   Resolution = "1"
	Res5Min   Resolution = "5"
	Res15Min  Resolution = "15"
	Res30Min  Resolution = "30"
	Res1Hour  Resolution = "60"
	Res4Hour  Resolution = "240"
	Res1Day   Resolution = "1D"
	Res1Week  Resolution = "1W"
	Res1Month Resolution = "1M"
)

// SupportedResolutions lists every resolution the datafeed accepts, in the
// order the charting widget displays them.
var SupportedResolutions = []Resolution{
	Res1Min, Res5Min, Res15Min, Res30Min, Res1Hour, Res4Hour,
	Res1Day, Res1Week, Res1Month,
}

var intradaySpan = map[Resolution]time.Duration{
	Res1Min:  time.Minute,
	Res5Min:  5 * time.Minute,
	Res15Min: 15 * time.Minute,
	Res30Min: 30 * time.Minute,
	Res1Hour: time.Hour,
	Res4Hour: 4 * time.Hour,
}

// ParseResolution validates a resolution string, accepting the "1H"/"1h"
// aliases some chart configs send for hourly.
func ParseResolution(s string) (Resolution, error) {
	switch s {
	case "1H", "1h":
		return Res1Hour, nil
	case "1d":
		return Res1Day, nil
	}
	r := Resolution(s)
	if _, ok := intradaySpan[r]; ok {
		return r, nil
	}
	switch r {
	case Res1Day, Res1Week, Res1Month:
		return r, nil
	}
	return "", fmt.Errorf("%w: unsupported resolution %q", ErrInvalidSymbol, s)
}

// Align truncates t to the open of the resolution window containing it,
// always in UTC. It is pure and idempotent; both the new-bar and extend-bar
// decisions in the poll loop must go through this single function.
func (r Resolution) Align(t time.Time) time.Time {
	t = t.UTC()
	if span, ok := intradaySpan[r]; ok {
		return t.Truncate(span)
	}
	y, m, d := t.Date()
	switch r {
	case Res1Week:
		// ISO-style weeks, opening Monday 00:00 UTC.
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case Res1Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	default: // Res1Day and anything unrecognised degrade to daily
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
}

// Intraday reports whether the resolution is finer than a day.
func (r Resolution) Intraday() bool {
	_, ok := intradaySpan[r]
	return ok
}
