// Package coingecko adapts the CoinGecko simple-price API, used as the last
// fallback tier for crypto prices.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"marketfeed/pkg/fetch"
	"marketfeed/pkg/market"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"

	ttlPrice = 15 * time.Second
)

// coinIDs maps tickers onto CoinGecko coin ids. Only symbols listed here can
// be priced through this adapter.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"DOGE":  "dogecoin",
	"ADA":   "cardano",
	"XRP":   "ripple",
	"BNB":   "binancecoin",
	"SHIB":  "shiba-inu",
	"PEPE":  "pepe",
	"BONK":  "bonk",
	"WIF":   "dogwifcoin",
	"FLOKI": "floki",
}

// Client wraps the CoinGecko simple-price endpoint behind the shared fetcher.
type Client struct {
	baseURL string
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

// WithTimeout sets a per-call deadline applied on top of the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient constructs a CoinGecko client on top of the shared fetcher.
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

// SimplePrice returns the USD price for a single ticker, or ErrNoData when
// the symbol has no CoinGecko id mapping or no quoted price.
func (c *Client) SimplePrice(ctx context.Context, symbol string) (*market.PriceResult, error) {
	id, ok := coinIDs[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		logx.WithContext(ctx).Slowf("coingecko: no id mapping for %s", symbol)
		return nil, market.ErrNoData
	}
	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true", c.baseURL, url.QueryEscape(id))
	key := fmt.Sprintf("coingecko:price:%s", id)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	body, err := c.fetcher.GetJSON(ctx, key, u, ttlPrice)
	if err != nil {
		return nil, err
	}
	var resp map[string]struct {
		USD       float64 `json:"usd"`
		Change24h float64 `json:"usd_24h_change"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("coingecko: decode price response: %w", err)
	}
	entry, ok := resp[id]
	if !ok || entry.USD <= 0 {
		logx.WithContext(ctx).Slowf("coingecko: no price for %s (%s)", symbol, id)
		return nil, market.ErrNoData
	}
	return &market.PriceResult{
		Symbol:        symbol,
		Price:         entry.USD,
		ChangePercent: entry.Change24h,
		Source:        "coingecko",
		Timestamp:     time.Now(),
	}, nil
}
