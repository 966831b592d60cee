package polygon

import (
	"context"
	"time"

	"marketfeed/pkg/fetch"
	"marketfeed/pkg/market"
)

// Provider exposes the Polygon client through the generic market.Provider
// contract and registers it for config-driven construction.
type Provider struct {
	client *Client
}

// NewProvider wraps an existing client.
func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

func init() {
	market.RegisterProvider("polygon", func(name string, cfg *market.ProviderConfig, fetcher *fetch.Fetcher) (market.Provider, error) {
		opts := []Option{WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		return NewProvider(NewClient(fetcher, opts...)), nil
	})
}

// Client returns the underlying typed client for callers needing the full
// endpoint surface (snapshot, prev close, quote midpoint).
func (p *Provider) Client() *Client {
	return p.client
}

// LastPrice implements market.Provider using the latest trade endpoint.
func (p *Provider) LastPrice(ctx context.Context, symbol string) (*market.PriceResult, error) {
	return p.client.LastTradePrice(ctx, symbol)
}

// Candles implements market.Provider using the aggregates endpoint.
func (p *Provider) Candles(ctx context.Context, symbol string, tf market.Timeframe) ([]market.Candle, error) {
	multiplier, timespan, from, to, err := market.AggWindow(tf, time.Now())
	if err != nil {
		return nil, err
	}
	return p.client.Aggregates(ctx, symbol, multiplier, timespan, from, to)
}
