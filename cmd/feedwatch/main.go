package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketfeed/internal/cli"
	"marketfeed/internal/config"
	"marketfeed/internal/svc"
	"marketfeed/pkg/fetch"
	"marketfeed/pkg/market/quotes"
)

const (
	probeInterval = 2 * time.Minute // Probe cadence against live providers
	apiTimeout    = 15 * time.Second
)

var (
	configFile    = flag.String("f", "etc/marketfeed.yaml", "the config file")
	watchedStocks = []string{"AAPL", "MSFT", "NVDA"}
	watchedCrypto = []string{"BTC", "ETH", "SOL", "WIF", "BONK"}
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[main] Starting feed watcher...")

	appCfg, err := config.Load(*configFile)
	if err != nil {
		log.Printf("[main] Warning: Failed to load app config: %v", err)
		log.Printf("[main] Using default configuration")
		appCfg = &config.Config{Env: "test", TTL: config.CacheTTL{Short: 15, Medium: 30, Long: 300}}
	}

	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(appCfg) {
		log.Printf("  - %s", line)
	}

	serviceCtx, err := svc.NewServiceContext(appCfg)
	if err != nil {
		log.Fatalf("[main] Failed to build service context: %v", err)
	}
	defer serviceCtx.Close()

	unsubscribeStatus := serviceCtx.Feed.SubscribeStatus(func(status fetch.Status) {
		log.Printf("[status] fetch layer -> %s", status)
	})
	defer unsubscribeStatus()

	unsubscribeQuotes := serviceCtx.Feed.OnQuoteStatusChange(func(provider string, status quotes.ProviderStatus) {
		log.Printf("[status] %s -> %s", provider, status)
	})
	defer unsubscribeQuotes()

	stopRefresh, err := serviceCtx.Jupiter.StartTokenRefresh("@every 12h")
	if err != nil {
		log.Printf("[main] Warning: token refresh not scheduled: %v", err)
	} else {
		defer stopRefresh()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("[main] Feed watcher started. Press Ctrl+C to stop.")

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	probe(ctx, serviceCtx)
	for {
		select {
		case <-ctx.Done():
			log.Println("[main] Shutdown signal received")
			log.Println("[main] Feed watcher stopped")
			return
		case <-ticker.C:
			probe(ctx, serviceCtx)
		}
	}
}

// probe exercises the facade surface and logs results, mirroring what a UI
// polling loop would see.
func probe(parentCtx context.Context, serviceCtx *svc.ServiceContext) {
	if parentCtx.Err() != nil {
		return
	}

	func() {
		ctx, cancel := context.WithTimeout(parentCtx, apiTimeout)
		defer cancel()

		start := time.Now()
		prices := serviceCtx.Feed.GetManyCryptoPrices(ctx, watchedCrypto)
		elapsed := time.Since(start)
		log.Printf("[crypto.batch] [OK] %d/%d symbols, took %dms", len(prices), len(watchedCrypto), elapsed.Milliseconds())
		for symbol, res := range prices {
			log.Printf("  - %s: %.6f (%.2f%%) via %s", symbol, res.Price, res.ChangePercent, res.Source)
		}
	}()

	for _, symbol := range watchedStocks {
		func(sym string) {
			ctx, cancel := context.WithTimeout(parentCtx, apiTimeout)
			defer cancel()

			start := time.Now()
			quote := serviceCtx.Feed.FetchStockQuote(ctx, sym)
			elapsed := time.Since(start)
			if quote == nil {
				log.Printf("[quote.%s] [WARN] no data, took %dms", sym, elapsed.Milliseconds())
				return
			}
			log.Printf("[quote.%s] [OK] price=%.2f change=%.2f%%, took %dms",
				sym, quote.Price, quote.ChangePercent, elapsed.Milliseconds())
		}(symbol)
	}

	func() {
		ctx, cancel := context.WithTimeout(parentCtx, apiTimeout)
		defer cancel()

		start := time.Now()
		candles := serviceCtx.Feed.GetCandles(ctx, "BTC-USD", "1h", 0)
		elapsed := time.Since(start)
		log.Printf("[candles.BTC-USD] [OK] %d bars, took %dms", len(candles), elapsed.Milliseconds())
	}()
}
