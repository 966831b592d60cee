package market

import (
	"fmt"
	"time"
)

// Timeframe is a chart resolution understood by the candle endpoints.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe1D  Timeframe = "1D"
)

// aggSpec maps a timeframe onto a provider aggregate window plus the lookback
// used to compute the from/to calendar range. Intraday frames look back a few
// days; daily frames need a longer history for chart context.
type aggSpec struct {
	Multiplier   int
	Timespan     string
	LookbackDays int
}

var timeframeSpecs = map[Timeframe]aggSpec{
	Timeframe1m:  {Multiplier: 1, Timespan: "minute", LookbackDays: 1},
	Timeframe5m:  {Multiplier: 5, Timespan: "minute", LookbackDays: 3},
	Timeframe15m: {Multiplier: 15, Timespan: "minute", LookbackDays: 5},
	Timeframe1h:  {Multiplier: 1, Timespan: "hour", LookbackDays: 7},
	Timeframe1D:  {Multiplier: 1, Timespan: "day", LookbackDays: 100},
}

// AggWindow resolves a timeframe into (multiplier, timespan) and the
// calendar-date from/to range ending at now.
func AggWindow(tf Timeframe, now time.Time) (multiplier int, timespan, from, to string, err error) {
	spec, ok := timeframeSpecs[tf]
	if !ok {
		return 0, "", "", "", fmt.Errorf("market: unsupported timeframe %q", tf)
	}
	to = now.Format("2006-01-02")
	from = now.AddDate(0, 0, -spec.LookbackDays).Format("2006-01-02")
	return spec.Multiplier, spec.Timespan, from, to, nil
}

// ParseTimeframe validates a raw resolution string.
func ParseTimeframe(raw string) (Timeframe, error) {
	tf := Timeframe(raw)
	if _, ok := timeframeSpecs[tf]; !ok {
		return "", fmt.Errorf("market: unsupported timeframe %q", raw)
	}
	return tf, nil
}
