package market

import (
	"context"
	"errors"
)

// ErrNoData indicates the upstream answered but carried no usable value for
// the symbol (zero price, empty result set, unknown ticker). Facade layers
// convert it into a nil result rather than an error.
var ErrNoData = errors.New("market: no data")

// ErrUnsupported indicates a provider does not implement the requested
// operation (e.g. candles on an index-price provider).
var ErrUnsupported = errors.New("market: operation not supported")

// Provider exposes provider-agnostic price and candle access.
type Provider interface {
	// LastPrice returns the most recent price for a raw user-entered symbol.
	LastPrice(ctx context.Context, symbol string) (*PriceResult, error)
	// Candles returns OHLCV bars for the given timeframe, ascending by time.
	Candles(ctx context.Context, symbol string, tf Timeframe) ([]Candle, error)
}
