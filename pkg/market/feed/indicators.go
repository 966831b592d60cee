package feed

import (
	"context"
	"math"
	"time"

	"marketfeed/pkg/market/indicators"
)

// IndicatorSnapshot carries the latest indicator values for one symbol and
// resolution, for chart overlays and screener rows.
type IndicatorSnapshot struct {
	Symbol     string
	Resolution string
	EMA20      float64
	RSI14      float64
	MACD       float64
	MACDSignal float64
	ATR14      float64
}

// GetIndicatorSnapshot computes chart indicators from the candle series.
// Returns nil when there is not enough history to seed them.
func (f *Feed) GetIndicatorSnapshot(ctx context.Context, symbol, resolution string, lookback time.Duration) *IndicatorSnapshot {
	candles := f.GetCandles(ctx, symbol, resolution, lookback)
	if len(candles) == 0 {
		return nil
	}
	closes := indicators.Closes(candles)
	last := len(closes) - 1

	snap := &IndicatorSnapshot{
		Symbol:     symbol,
		Resolution: resolution,
		EMA20:      lastValid(indicators.EMA(closes, 20), last),
		RSI14:      lastValid(indicators.RSI(closes, 14), last),
		ATR14:      lastValid(indicators.ATR(candles, 14), last),
	}
	macd, signal, _ := indicators.MACD(closes)
	snap.MACD = lastValid(macd, last)
	snap.MACDSignal = lastValid(signal, last)
	if math.IsNaN(snap.EMA20) && math.IsNaN(snap.RSI14) && math.IsNaN(snap.MACD) {
		return nil
	}
	return snap
}

func lastValid(series []float64, last int) float64 {
	if last < 0 || last >= len(series) {
		return math.NaN()
	}
	return series[last]
}
