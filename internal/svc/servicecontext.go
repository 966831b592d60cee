package svc

import (
	"time"

	"marketfeed/internal/cache"
	"marketfeed/internal/config"
	"marketfeed/pkg/confkit"
	"marketfeed/pkg/fetch"
	marketpkg "marketfeed/pkg/market"
	"marketfeed/pkg/market/feed"
	"marketfeed/pkg/market/providers/coingecko"
	"marketfeed/pkg/market/providers/finnhub"
	"marketfeed/pkg/market/providers/jupiter"
	"marketfeed/pkg/market/providers/polygon"
	"marketfeed/pkg/market/quotes"
)

// ServiceContext wires the shared fetcher, provider clients, quote manager
// and facade once per process.
type ServiceContext struct {
	Config *config.Config
	TTL    cache.TTLSet

	Fetcher *fetch.Fetcher

	MarketConfig    *marketpkg.Config
	MarketProviders map[string]marketpkg.Provider
	DefaultMarket   marketpkg.Provider

	Polygon   *polygon.Client
	Finnhub   *finnhub.Client
	Jupiter   *jupiter.Client
	Coingecko *coingecko.Client

	Quotes *quotes.Manager
	Feed   *feed.Feed
}

// NewServiceContext builds the full data-access stack from configuration.
func NewServiceContext(c *config.Config) (*ServiceContext, error) {
	confkit.LoadDotenvOnce()

	svc := &ServiceContext{
		Config: c,
		TTL:    cache.NewTTLSet(c.TTL),
	}

	svc.Fetcher = fetch.New(
		fetch.WithMaxConcurrent(c.Fetch.MaxConcurrent),
		fetch.WithDispatchGap(time.Duration(c.Fetch.DispatchGapMs)*time.Millisecond),
		fetch.WithBaseDelay(time.Duration(c.Fetch.BaseDelayMs)*time.Millisecond),
		fetch.WithMaxRetries(c.Fetch.MaxRetries),
		fetch.WithDefaultTTL(cache.PriceTTL(svc.TTL)),
	)

	marketCfg := c.Market.Value
	if marketCfg == nil {
		marketCfg = config.MustLoadMarket()
	}
	svc.MarketConfig = marketCfg

	providers, err := marketCfg.BuildProviders(svc.Fetcher)
	if err != nil {
		return nil, err
	}
	svc.MarketProviders = providers
	if marketCfg.Default != "" {
		svc.DefaultMarket = providers[marketCfg.Default]
	}

	svc.bindClients()

	svc.Quotes = quotes.NewManager(svc.Finnhub,
		quotes.WithFallback(svc.Polygon),
		quotes.WithSpacing(time.Duration(c.Quotes.SpacingMs)*time.Millisecond),
		quotes.WithCacheTTL(time.Duration(c.Quotes.CacheTTLSeconds)*time.Second),
		quotes.WithMaxRetries(c.Quotes.MaxRetries),
	)

	svc.Feed = feed.New(feed.Deps{
		Fetcher:   svc.Fetcher,
		Polygon:   svc.Polygon,
		Finnhub:   svc.Finnhub,
		Jupiter:   svc.Jupiter,
		Coingecko: svc.Coingecko,
		Quotes:    svc.Quotes,
	})

	return svc, nil
}

// bindClients extracts the typed clients from the configured providers,
// constructing default clients for any provider missing from config so the
// facade always has a full pipeline.
func (s *ServiceContext) bindClients() {
	for _, provider := range s.MarketProviders {
		switch p := provider.(type) {
		case *polygon.Provider:
			s.Polygon = p.Client()
		case *finnhub.Provider:
			s.Finnhub = p.Client()
		case *jupiter.Provider:
			s.Jupiter = p.Client()
		case *coingecko.Provider:
			s.Coingecko = p.Client()
		}
	}
	if s.Polygon == nil {
		s.Polygon = polygon.NewClient(s.Fetcher)
	}
	if s.Finnhub == nil {
		s.Finnhub = finnhub.NewClient(s.Fetcher)
	}
	if s.Jupiter == nil {
		s.Jupiter = jupiter.NewClient(s.Fetcher)
	}
	if s.Coingecko == nil {
		s.Coingecko = coingecko.NewClient(s.Fetcher)
	}
}

// Close stops background workers.
func (s *ServiceContext) Close() {
	if s.Quotes != nil {
		s.Quotes.Close()
	}
}
