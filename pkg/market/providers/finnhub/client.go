// Package finnhub adapts the Finnhub REST API (quotes and company news).
package finnhub

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
	defaultBaseURL = "https://finnhub.io/api/v1"

	ttlQuote = 5 * time.Second
	ttlNews  = 5 * time.Minute
)

// ErrMissingAPIKey indicates the client was built without credentials.
var ErrMissingAPIKey = errors.New("finnhub: missing api key")

// QuoteResponse is the /quote payload. A zero current price means the symbol
// has no data.
type QuoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PrevClose     float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// NewsEntry is one element of the /company-news payload.
type NewsEntry struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Source   string `json:"source"`
	URL      string `json:"url"`
	Datetime int64  `json:"datetime"`
}

// Client wraps the Finnhub endpoints behind the shared fetcher.
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

// WithAPIKey sets the token appended to every request.
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

// NewClient constructs a Finnhub client on top of the shared fetcher.
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

// Quote returns the current quote for a stock symbol. A zero price from the
// upstream is treated as "no data", not an error condition worth retrying.
func (c *Client) Quote(ctx context.Context, symbol string) (*market.Quote, error) {
	if c.apiKey == "" {
		logx.WithContext(ctx).Infof("finnhub: api key not configured, skipping request")
		return nil, ErrMissingAPIKey
	}
	u := fmt.Sprintf("%s/quote?symbol=%s&token=%s", c.baseURL, url.QueryEscape(symbol), url.QueryEscape(c.apiKey))
	key := fmt.Sprintf("finnhub:quote:%s", symbol)

	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	body, err := c.fetcher.GetJSON(ctx, key, u, ttlQuote)
	if err != nil {
		return nil, err
	}
	var resp QuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("finnhub: decode quote response: %w", err)
	}
	if resp.Current == 0 {
		logx.WithContext(ctx).Slowf("finnhub: no quote data for %s", symbol)
		return nil, market.ErrNoData
	}
	return &market.Quote{
		Symbol:        symbol,
		Price:         resp.Current,
		Change:        resp.Change,
		ChangePercent: resp.ChangePercent,
		Timestamp:     time.Now(),
	}, nil
}

// CompanyNews returns news entries for a symbol over a calendar date range.
func (c *Client) CompanyNews(ctx context.Context, symbol, from, to string) ([]market.NewsItem, error) {
	if c.apiKey == "" {
		logx.WithContext(ctx).Infof("finnhub: api key not configured, skipping request")
		return nil, ErrMissingAPIKey
	}
	u := fmt.Sprintf("%s/company-news?symbol=%s&from=%s&to=%s&token=%s",
		c.baseURL, url.QueryEscape(symbol), from, to, url.QueryEscape(c.apiKey))
	key := fmt.Sprintf("finnhub:news:%s:%s:%s", symbol, from, to)

	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	body, err := c.fetcher.GetJSON(ctx, key, u, ttlNews)
	if err != nil {
		return nil, err
	}
	var entries []NewsEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("finnhub: decode news response: %w", err)
	}
	items := make([]market.NewsItem, 0, len(entries))
	for _, entry := range entries {
		if entry.Headline == "" {
			continue
		}
		items = append(items, market.NewsItem{
			Headline: entry.Headline,
			Summary:  entry.Summary,
			Source:   entry.Source,
			URL:      entry.URL,
			Datetime: time.Unix(entry.Datetime, 0),
		})
	}
	return items, nil
}

func (c *Client) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return ctx, func() {}
}

// Name identifies this client in per-provider status reporting.
func (c *Client) Name() string {
	return "finnhub"
}

// FetchQuote adapts Quote to the quote-source contract used by the request
// manager. A missing key maps to "no data" so the manager does not spin its
// retry tier on a configuration problem.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	quote, err := c.Quote(ctx, symbol)
	if errors.Is(err, ErrMissingAPIKey) {
		return nil, market.ErrNoData
	}
	return quote, err
}
