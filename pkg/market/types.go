// Package market defines the shared types, symbol normalization rules and
// provider registry for the market data access layer.
package market

import "time"

// AssetClass is the coarse category used to select provider-specific symbol
// formatting and endpoints.
type AssetClass string

const (
	AssetStocks AssetClass = "stocks"
	AssetCrypto AssetClass = "crypto"
	AssetFX     AssetClass = "fx"
)

// PriceResult is the canonical price value flowing out of the data layer.
// Immutable once constructed.
type PriceResult struct {
	Symbol        string
	Price         float64
	Change        float64
	ChangePercent float64
	Source        string
	Timestamp     time.Time
}

// Quote is a stock quote as served by the deduplicating quote manager.
type Quote struct {
	Symbol        string
	Price         float64
	Change        float64
	ChangePercent float64
	Timestamp     time.Time
}

// Candle is one OHLCV bar. Timestamp is milliseconds since epoch; sequences
// are ordered ascending by timestamp.
type Candle struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// NewsItem is one company news entry.
type NewsItem struct {
	Headline string
	Summary  string
	Source   string
	URL      string
	Datetime time.Time
}
