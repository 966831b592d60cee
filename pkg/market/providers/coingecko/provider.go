package coingecko

import (
	"context"

	"marketfeed/pkg/fetch"
	"marketfeed/pkg/market"
)

// Provider exposes the CoinGecko client through the generic market.Provider
// contract.
type Provider struct {
	client *Client
}

// NewProvider wraps an existing client.
func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

func init() {
	market.RegisterProvider("coingecko", func(name string, cfg *market.ProviderConfig, fetcher *fetch.Fetcher) (market.Provider, error) {
		opts := []Option{}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		return NewProvider(NewClient(fetcher, opts...)), nil
	})
}

// Client returns the underlying typed client.
func (p *Provider) Client() *Client {
	return p.client
}

// LastPrice implements market.Provider via the simple-price endpoint.
func (p *Provider) LastPrice(ctx context.Context, symbol string) (*market.PriceResult, error) {
	return p.client.SimplePrice(ctx, symbol)
}

// Candles is not served by the simple-price API.
func (p *Provider) Candles(ctx context.Context, symbol string, tf market.Timeframe) ([]market.Candle, error) {
	return nil, market.ErrUnsupported
}
