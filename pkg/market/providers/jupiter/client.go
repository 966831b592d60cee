// Package jupiter adapts the Jupiter aggregator price index and token list
// for long-tail Solana tokens addressed by mint.
package jupiter

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
	defaultPriceBaseURL = "https://lite-api.jup.ag"
	defaultTokenBaseURL = "https://token.jup.ag"

	ttlPrice     = 5 * time.Second
	ttlTokenList = 24 * time.Hour

	// maxIDsPerCall is the upstream limit on ids per /price/v3 request.
	maxIDsPerCall = 50
)

// Client wraps the Jupiter price and token-list endpoints behind the shared
// fetcher.
type Client struct {
	priceBaseURL string
	tokenBaseURL string
	timeout      time.Duration
	fetcher      *fetch.Fetcher

	tokens *tokenIndex
}

// Option configures a new Client.
type Option func(*Client)

// WithPriceBaseURL overrides the price API root.
func WithPriceBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.priceBaseURL = u
		}
	}
}

// WithTokenBaseURL overrides the token-list API root.
func WithTokenBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.tokenBaseURL = u
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

// NewClient constructs a Jupiter client on top of the shared fetcher.
func NewClient(fetcher *fetch.Fetcher, opts ...Option) *Client {
	c := &Client{
		priceBaseURL: defaultPriceBaseURL,
		tokenBaseURL: defaultTokenBaseURL,
		fetcher:      fetcher,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = fetch.New()
	}
	c.tokens = newTokenIndex(c)
	return c
}

// Prices returns the price entry per mint, batching upstream calls at the
// 50-id limit. Mints absent from the response are simply missing from the
// returned map.
func (c *Client) Prices(ctx context.Context, mints []string) (map[string]PriceEntry, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	result := make(map[string]PriceEntry, len(mints))
	for start := 0; start < len(mints); start += maxIDsPerCall {
		end := start + maxIDsPerCall
		if end > len(mints) {
			end = len(mints)
		}
		chunk := mints[start:end]
		ids := strings.Join(chunk, ",")
		u := fmt.Sprintf("%s/price/v3?ids=%s", c.priceBaseURL, url.QueryEscape(ids))
		key := fmt.Sprintf("jupiter:price:%s", ids)

		body, err := c.fetcher.GetJSON(ctx, key, u, ttlPrice)
		if err != nil {
			return nil, err
		}
		var page map[string]PriceEntry
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("jupiter: decode price response: %w", err)
		}
		for mint, entry := range page {
			result[mint] = entry
		}
	}
	return result, nil
}

// PriceBySymbol resolves a ticker to its mint via the token list and returns
// its price entry.
func (c *Client) PriceBySymbol(ctx context.Context, symbol string) (*market.PriceResult, error) {
	mint, err := c.tokens.resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}
	prices, err := c.Prices(ctx, []string{mint})
	if err != nil {
		return nil, err
	}
	entry, ok := prices[mint]
	if !ok || entry.Price <= 0 {
		logx.WithContext(ctx).Slowf("jupiter: no price for %s (mint %s)", symbol, mint)
		return nil, market.ErrNoData
	}
	return &market.PriceResult{
		Symbol:        symbol,
		Price:         entry.Price,
		ChangePercent: entry.PriceChange24h,
		Source:        "jupiter",
		Timestamp:     time.Now(),
	}, nil
}

// PricesBySymbols resolves and prices a batch of tickers in one upstream
// sweep. Symbols without a known mint or price are omitted from the result.
func (c *Client) PricesBySymbols(ctx context.Context, symbols []string) (map[string]market.PriceResult, error) {
	mintsBySymbol := make(map[string]string, len(symbols))
	mints := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		mint, err := c.tokens.resolve(ctx, symbol)
		if err != nil {
			logx.WithContext(ctx).Slowf("jupiter: unknown token %s: %v", symbol, err)
			continue
		}
		mintsBySymbol[symbol] = mint
		mints = append(mints, mint)
	}
	if len(mints) == 0 {
		return map[string]market.PriceResult{}, nil
	}

	prices, err := c.Prices(ctx, mints)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	result := make(map[string]market.PriceResult, len(mintsBySymbol))
	for symbol, mint := range mintsBySymbol {
		entry, ok := prices[mint]
		if !ok || entry.Price <= 0 {
			continue
		}
		result[symbol] = market.PriceResult{
			Symbol:        symbol,
			Price:         entry.Price,
			ChangePercent: entry.PriceChange24h,
			Source:        "jupiter",
			Timestamp:     now,
		}
	}
	return result, nil
}

// ResolveMint maps a ticker to its mint address via the cached token list.
func (c *Client) ResolveMint(ctx context.Context, symbol string) (string, error) {
	return c.tokens.resolve(ctx, symbol)
}

func (c *Client) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return ctx, func() {}
}
