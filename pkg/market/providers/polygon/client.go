// Package polygon adapts the Polygon.io REST API to the market data layer.
package polygon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"marketfeed/pkg/fetch"
	"marketfeed/pkg/market"
)

const (
	defaultBaseURL = "https://api.polygon.io"

	ttlTrade    = 5 * time.Second
	ttlQuote    = 5 * time.Second
	ttlSnapshot = 5 * time.Second
	ttlAggs     = 20 * time.Second
)

// ErrMissingAPIKey indicates the client was built without credentials.
// Retrying cannot fix a missing key, so callers treat it as permanent.
var ErrMissingAPIKey = errors.New("polygon: missing api key")

// Client wraps the Polygon endpoints behind the shared fetcher.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	fetcher *fetch.Fetcher
}

// Option configures a new Client.
type Option func(*Client)

// WithBaseURL overrides the default API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithAPIKey sets the API key appended to every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithTimeout sets a per-call deadline applied on top of the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient constructs a Polygon client on top of the shared fetcher.
func NewClient(fetcher *fetch.Fetcher, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		fetcher: fetcher,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = fetch.New()
	}
	return c
}

func (c *Client) checkKey(ctx context.Context) error {
	if c.apiKey == "" {
		logx.WithContext(ctx).Infof("polygon: api key not configured, skipping request")
		return ErrMissingAPIKey
	}
	return nil
}

func (c *Client) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return ctx, func() {}
}

// normalize rewrites a raw user-entered ticker into Polygon wire format.
func normalize(symbol string) (string, market.AssetClass) {
	class := market.DetectAssetClass(symbol)
	return market.ToPolygonSymbol(symbol, class), class
}

// LastTradePrice returns the most recent trade price for a raw ticker.
func (c *Client) LastTradePrice(ctx context.Context, symbol string) (*market.PriceResult, error) {
	if err := c.checkKey(ctx); err != nil {
		return nil, err
	}
	ticker, _ := normalize(symbol)
	u := fmt.Sprintf("%s/v3/trades/%s/latest?apiKey=%s", c.baseURL, url.PathEscape(ticker), url.QueryEscape(c.apiKey))
	key := fmt.Sprintf("polygon:trade:%s", ticker)

	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	body, err := c.fetcher.GetJSON(ctx, key, u, ttlTrade)
	if err != nil {
		return nil, err
	}
	var resp TradeLatestResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("polygon: decode trade response: %w", err)
	}
	if resp.Results.Price <= 0 {
		logx.WithContext(ctx).Slowf("polygon: no trade data for %s", ticker)
		return nil, market.ErrNoData
	}
	return &market.PriceResult{
		Symbol:    symbol,
		Price:     resp.Results.Price,
		Source:    "polygon",
		Timestamp: time.Now(),
	}, nil
}

// QuoteMidPrice returns the bid/ask midpoint for a raw ticker.
func (c *Client) QuoteMidPrice(ctx context.Context, symbol string) (*market.PriceResult, error) {
	if err := c.checkKey(ctx); err != nil {
		return nil, err
	}
	ticker, _ := normalize(symbol)
	u := fmt.Sprintf("%s/v3/quotes/%s/latest?apiKey=%s", c.baseURL, url.PathEscape(ticker), url.QueryEscape(c.apiKey))
	key := fmt.Sprintf("polygon:quote:%s", ticker)

	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	body, err := c.fetcher.GetJSON(ctx, key, u, ttlQuote)
	if err != nil {
		return nil, err
	}
	var resp QuoteLatestResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("polygon: decode quote response: %w", err)
	}
	bid, ask := resp.Results.BidPrice, resp.Results.AskPrice
	if bid <= 0 && ask <= 0 {
		logx.WithContext(ctx).Slowf("polygon: no quote data for %s", ticker)
		return nil, market.ErrNoData
	}
	mid := (bid + ask) / 2
	if bid <= 0 {
		mid = ask
	} else if ask <= 0 {
		mid = bid
	}
	return &market.PriceResult{
		Symbol:    symbol,
		Price:     mid,
		Source:    "polygon",
		Timestamp: time.Now(),
	}, nil
}

// Snapshot returns the snapshot-derived price and day change for a raw ticker.
func (c *Client) Snapshot(ctx context.Context, symbol string) (*market.PriceResult, error) {
	if err := c.checkKey(ctx); err != nil {
		return nil, err
	}
	ticker, class := normalize(symbol)
	u := fmt.Sprintf("%s/v2/snapshot/locale/us/markets/%s/tickers/%s?apiKey=%s",
		c.baseURL, snapshotMarket(class), url.PathEscape(ticker), url.QueryEscape(c.apiKey))
	key := fmt.Sprintf("polygon:snapshot:%s", ticker)

	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	body, err := c.fetcher.GetJSON(ctx, key, u, ttlSnapshot)
	if err != nil {
		return nil, err
	}
	var resp SnapshotResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("polygon: decode snapshot response: %w", err)
	}
	price := resp.Ticker.LastTrade.Price
	if price <= 0 {
		price = resp.Ticker.Day.Close
	}
	if price <= 0 {
		price = resp.Ticker.PrevDay.Close
	}
	if price <= 0 {
		logx.WithContext(ctx).Slowf("polygon: empty snapshot for %s", ticker)
		return nil, market.ErrNoData
	}
	return &market.PriceResult{
		Symbol:        symbol,
		Price:         price,
		Change:        resp.Ticker.TodaysChange,
		ChangePercent: resp.Ticker.TodaysChangePerc,
		Source:        "polygon",
		Timestamp:     time.Now(),
	}, nil
}

func snapshotMarket(class market.AssetClass) string {
	switch class {
	case market.AssetCrypto:
		return "crypto"
	case market.AssetFX:
		return "fx"
	default:
		return "stocks"
	}
}

// Aggregates returns OHLCV bars over a calendar date range, ascending by time.
func (c *Client) Aggregates(ctx context.Context, symbol string, multiplier int, timespan, from, to string) ([]market.Candle, error) {
	if err := c.checkKey(ctx); err != nil {
		return nil, err
	}
	ticker, _ := normalize(symbol)
	u := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/%d/%s/%s/%s?adjusted=true&sort=asc&limit=50000&apiKey=%s",
		c.baseURL, url.PathEscape(ticker), multiplier, timespan, from, to, url.QueryEscape(c.apiKey))
	key := fmt.Sprintf("polygon:aggs:%s:%d:%s:%s:%s", ticker, multiplier, timespan, from, to)

	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	body, err := c.fetcher.GetJSON(ctx, key, u, ttlAggs)
	if err != nil {
		return nil, err
	}
	var resp AggsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("polygon: decode aggs response: %w", err)
	}
	if len(resp.Results) == 0 {
		logx.WithContext(ctx).Slowf("polygon: no aggregates for %s %d/%s %s..%s", ticker, multiplier, timespan, from, to)
		return nil, market.ErrNoData
	}
	candles := make([]market.Candle, 0, len(resp.Results))
	for _, bar := range resp.Results {
		candles = append(candles, market.Candle{
			Timestamp: bar.Timestamp,
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    bar.Volume,
		})
	}
	return candles, nil
}

// PrevClose returns the previous session's close for a raw ticker.
func (c *Client) PrevClose(ctx context.Context, symbol string) (*market.PriceResult, error) {
	if err := c.checkKey(ctx); err != nil {
		return nil, err
	}
	ticker, _ := normalize(symbol)
	u := fmt.Sprintf("%s/v2/aggs/ticker/%s/prev?adjusted=true&apiKey=%s", c.baseURL, url.PathEscape(ticker), url.QueryEscape(c.apiKey))
	key := fmt.Sprintf("polygon:prev:%s", ticker)

	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	body, err := c.fetcher.GetJSON(ctx, key, u, ttlAggs)
	if err != nil {
		return nil, err
	}
	var resp AggsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("polygon: decode prev close response: %w", err)
	}
	if len(resp.Results) == 0 || resp.Results[0].Close <= 0 {
		return nil, market.ErrNoData
	}
	bar := resp.Results[0]
	return &market.PriceResult{
		Symbol:    symbol,
		Price:     bar.Close,
		Source:    "polygon",
		Timestamp: time.UnixMilli(bar.Timestamp),
	}, nil
}
