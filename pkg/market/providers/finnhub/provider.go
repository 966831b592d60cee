package finnhub

import (
	"context"
	"time"

	"marketfeed/pkg/fetch"
	"marketfeed/pkg/market"
)

// Provider exposes the Finnhub client through the generic market.Provider
// contract.
type Provider struct {
	client *Client
}

// NewProvider wraps an existing client.
func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

func init() {
	market.RegisterProvider("finnhub", func(name string, cfg *market.ProviderConfig, fetcher *fetch.Fetcher) (market.Provider, error) {
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

// Client returns the underlying typed client.
func (p *Provider) Client() *Client {
	return p.client
}

// LastPrice implements market.Provider from the quote endpoint.
func (p *Provider) LastPrice(ctx context.Context, symbol string) (*market.PriceResult, error) {
	quote, err := p.client.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &market.PriceResult{
		Symbol:        quote.Symbol,
		Price:         quote.Price,
		Change:        quote.Change,
		ChangePercent: quote.ChangePercent,
		Source:        "finnhub",
		Timestamp:     time.Now(),
	}, nil
}

// Candles is not available on the Finnhub free quote surface.
func (p *Provider) Candles(ctx context.Context, symbol string, tf market.Timeframe) ([]market.Candle, error) {
	return nil, market.ErrUnsupported
}
