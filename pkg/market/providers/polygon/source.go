package polygon

import (
	"context"
	"errors"

	"marketfeed/pkg/market"
)

// Name identifies this client in per-provider status reporting.
func (c *Client) Name() string {
	return "polygon"
}

// FetchQuote adapts the snapshot endpoint to the quote-source contract used
// by the request manager, serving as its fallback tier. A missing key maps to
// "no data" so the manager does not retry a configuration problem.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	res, err := c.Snapshot(ctx, symbol)
	if errors.Is(err, ErrMissingAPIKey) {
		return nil, market.ErrNoData
	}
	if err != nil {
		return nil, err
	}
	return &market.Quote{
		Symbol:        symbol,
		Price:         res.Price,
		Change:        res.Change,
		ChangePercent: res.ChangePercent,
		Timestamp:     res.Timestamp,
	}, nil
}
