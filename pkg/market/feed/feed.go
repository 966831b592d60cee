// Package feed exposes the top-level convenience surface consumed by UI
// layers: last prices, candles, stock quotes and news, with provider routing
// and graceful degradation. Feed methods never fail for ordinary "no data"
// conditions; they return nil or empty results and log instead.
package feed

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"marketfeed/pkg/fetch"
	"marketfeed/pkg/market"
	"marketfeed/pkg/market/providers/coingecko"
	"marketfeed/pkg/market/providers/finnhub"
	"marketfeed/pkg/market/providers/jupiter"
	"marketfeed/pkg/market/providers/polygon"
	"marketfeed/pkg/market/quotes"
)

const defaultCandleLookbackDays = 100

// majorSymbols are routed to the primary provider before the meme-coin
// pipeline.
var majorSymbols = map[string]struct{}{
	"BTC": {}, "ETH": {}, "SOL": {},
}

// Deps wires the feed onto the shared fetcher, the provider clients and the
// quote manager. All fields are required except Quotes, which disables the
// stock-quote path when nil.
type Deps struct {
	Fetcher   *fetch.Fetcher
	Polygon   *polygon.Client
	Finnhub   *finnhub.Client
	Jupiter   *jupiter.Client
	Coingecko *coingecko.Client
	Quotes    *quotes.Manager
}

// Feed is the facade over the market data access layer.
type Feed struct {
	fetcher   *fetch.Fetcher
	polygon   *polygon.Client
	finnhub   *finnhub.Client
	jupiter   *jupiter.Client
	coingecko *coingecko.Client
	quotes    *quotes.Manager
}

// New constructs a Feed from its dependencies.
func New(deps Deps) *Feed {
	return &Feed{
		fetcher:   deps.Fetcher,
		polygon:   deps.Polygon,
		finnhub:   deps.Finnhub,
		jupiter:   deps.Jupiter,
		coingecko: deps.Coingecko,
		quotes:    deps.Quotes,
	}
}

// GetLastPrice returns the latest price for a raw ticker, routed by asset
// class. The second return is false when no provider could answer.
func (f *Feed) GetLastPrice(ctx context.Context, symbol string) (float64, bool) {
	switch market.DetectAssetClass(symbol) {
	case market.AssetCrypto:
		if res := f.GetCryptoPrice(ctx, symbol); res != nil {
			return res.Price, true
		}
		return 0, false
	case market.AssetFX:
		if res, err := f.polygon.Snapshot(ctx, symbol); err == nil {
			return res.Price, true
		}
		if res, err := f.polygon.PrevClose(ctx, symbol); err == nil {
			return res.Price, true
		}
		logx.WithContext(ctx).Slowf("feed: no fx price for %s", symbol)
		return 0, false
	default:
		if quote := f.FetchStockQuote(ctx, symbol); quote != nil {
			return quote.Price, true
		}
		return 0, false
	}
}

// GetCandles returns OHLCV bars for the given resolution. A non-zero
// lookback overrides the resolution's default window. Failures yield an
// empty slice, never an error.
func (f *Feed) GetCandles(ctx context.Context, symbol, resolution string, lookback time.Duration) []market.Candle {
	tf, err := market.ParseTimeframe(resolution)
	if err != nil {
		logx.WithContext(ctx).Errorf("feed: %v", err)
		return []market.Candle{}
	}
	now := time.Now()
	multiplier, timespan, from, to, err := market.AggWindow(tf, now)
	if err != nil {
		logx.WithContext(ctx).Errorf("feed: %v", err)
		return []market.Candle{}
	}
	if lookback > 0 {
		from = now.Add(-lookback).Format("2006-01-02")
	}
	candles, err := f.polygon.Aggregates(ctx, symbol, multiplier, timespan, from, to)
	if err != nil {
		logx.WithContext(ctx).Slowf("feed: candles %s %s: %v", symbol, resolution, err)
		return []market.Candle{}
	}
	return candles
}

// FetchCandlestickData is the explicit-window candle fetch. Empty from/to
// default to the trailing 100 calendar days.
func (f *Feed) FetchCandlestickData(ctx context.Context, symbol, timespan string, multiplier int, from, to string) []market.Candle {
	now := time.Now()
	if to == "" {
		to = now.Format("2006-01-02")
	}
	if from == "" {
		from = now.AddDate(0, 0, -defaultCandleLookbackDays).Format("2006-01-02")
	}
	candles, err := f.polygon.Aggregates(ctx, symbol, multiplier, timespan, from, to)
	if err != nil {
		logx.WithContext(ctx).Slowf("feed: candlestick data %s %d/%s: %v", symbol, multiplier, timespan, err)
		return []market.Candle{}
	}
	return candles
}

// FetchStockQuote returns the managed stock quote for symbol, nil when no
// data is available.
func (f *Feed) FetchStockQuote(ctx context.Context, symbol string) *market.Quote {
	if f.quotes == nil {
		return nil
	}
	quote, err := f.quotes.FetchStockQuote(ctx, symbol)
	if err != nil {
		logx.WithContext(ctx).Slowf("feed: stock quote %s: %v", symbol, err)
		return nil
	}
	return quote
}

// LastKnownPrices returns cached quotes regardless of freshness, for
// immediate paint before the network resolves.
func (f *Feed) LastKnownPrices(symbols []string) []*market.Quote {
	if f.quotes == nil {
		return make([]*market.Quote, len(symbols))
	}
	return f.quotes.GetLastKnownPrices(symbols)
}

// FetchCompanyNews returns news for the trailing number of days.
func (f *Feed) FetchCompanyNews(ctx context.Context, symbol string, days int) []market.NewsItem {
	if days <= 0 {
		days = 7
	}
	now := time.Now()
	from := now.AddDate(0, 0, -days).Format("2006-01-02")
	to := now.Format("2006-01-02")
	items, err := f.finnhub.CompanyNews(ctx, symbol, from, to)
	if err != nil {
		logx.WithContext(ctx).Slowf("feed: company news %s: %v", symbol, err)
		return []market.NewsItem{}
	}
	return items
}

// SubscribeStatus registers a listener for the global fetch-layer
// connectivity signal.
func (f *Feed) SubscribeStatus(fn func(fetch.Status)) func() {
	return f.fetcher.Subscribe(fn)
}

// OnQuoteStatusChange registers a listener for per-provider quote statuses.
func (f *Feed) OnQuoteStatusChange(fn func(provider string, status quotes.ProviderStatus)) func() {
	if f.quotes == nil {
		return func() {}
	}
	return f.quotes.OnStatusChange(fn)
}
