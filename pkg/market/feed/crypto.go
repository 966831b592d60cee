package feed

import (
	"context"
	"strings"
	"sync"

	"github.com/zeromicro/go-zero/core/logx"

	"marketfeed/pkg/market"
)

// GetCryptoPrice resolves one crypto price. Majors go through the primary
// provider's trade/quote/snapshot tiers; everything else (and any major the
// primary cannot answer) runs the meme-coin pipeline. Returns nil when every
// tier fails.
func (f *Feed) GetCryptoPrice(ctx context.Context, symbol string) *market.PriceResult {
	base := baseSymbol(symbol)
	if _, ok := majorSymbols[base]; ok {
		if res, err := f.majorPrice(ctx, symbol); err == nil {
			return res
		}
		// Silent fallthrough to the secondary pipeline.
	}
	return f.memePrice(ctx, base)
}

// GetManyCryptoPrices resolves a batch. Majors are fetched concurrently, one
// call each; a single symbol's failure never fails the batch. The rest go
// through the batched meme-coin pipeline in one sweep, with index-price
// backfill for misses.
func (f *Feed) GetManyCryptoPrices(ctx context.Context, symbols []string) map[string]market.PriceResult {
	majors := make([]string, 0, len(symbols))
	others := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if _, ok := majorSymbols[baseSymbol(symbol)]; ok {
			majors = append(majors, symbol)
		} else {
			others = append(others, symbol)
		}
	}

	results := make(map[string]market.PriceResult, len(symbols))
	var resultsMu sync.Mutex

	var wg sync.WaitGroup
	for _, symbol := range majors {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			if res := f.GetCryptoPrice(ctx, sym); res != nil {
				resultsMu.Lock()
				results[sym] = *res
				resultsMu.Unlock()
			}
		}(symbol)
	}

	if len(others) > 0 {
		bases := make([]string, 0, len(others))
		baseFor := make(map[string]string, len(others))
		for _, symbol := range others {
			base := baseSymbol(symbol)
			bases = append(bases, base)
			baseFor[symbol] = base
		}
		batch, err := f.jupiter.PricesBySymbols(ctx, bases)
		if err != nil {
			logx.WithContext(ctx).Slowf("feed: batched meme prices: %v", err)
			batch = map[string]market.PriceResult{}
		}
		for _, symbol := range others {
			if res, ok := batch[baseFor[symbol]]; ok {
				res.Symbol = symbol
				resultsMu.Lock()
				results[symbol] = res
				resultsMu.Unlock()
				continue
			}
			if res, err := f.coingecko.SimplePrice(ctx, baseFor[symbol]); err == nil {
				res.Symbol = symbol
				resultsMu.Lock()
				results[symbol] = *res
				resultsMu.Unlock()
			}
		}
	}

	wg.Wait()
	return results
}

// majorPrice runs the primary provider tiers: latest trade, then quote
// midpoint, then snapshot-derived change.
func (f *Feed) majorPrice(ctx context.Context, symbol string) (*market.PriceResult, error) {
	res, err := f.polygon.LastTradePrice(ctx, symbol)
	if err == nil {
		return res, nil
	}
	res, err = f.polygon.QuoteMidPrice(ctx, symbol)
	if err == nil {
		return res, nil
	}
	res, err = f.polygon.Snapshot(ctx, symbol)
	if err == nil {
		return res, nil
	}
	logx.WithContext(ctx).Slowf("feed: primary crypto tiers failed for %s: %v", symbol, err)
	return nil, err
}

// memePrice runs the secondary pipeline: DEX quote provider first, index
// price fallback second.
func (f *Feed) memePrice(ctx context.Context, base string) *market.PriceResult {
	res, err := f.jupiter.PriceBySymbol(ctx, base)
	if err == nil {
		return res
	}
	res, err = f.coingecko.SimplePrice(ctx, base)
	if err == nil {
		return res
	}
	logx.WithContext(ctx).Slowf("feed: no crypto price for %s: %v", base, err)
	return nil
}

// baseSymbol strips pair formatting down to the bare base ticker, so
// "X:BTCUSD" and "BTC-USD" both route as "BTC".
func baseSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.TrimPrefix(s, "X:")
	for _, sep := range []string{"-", "/", ":"} {
		s = strings.ReplaceAll(s, sep, "")
	}
	for _, q := range []string{"USDT", "USDC", "USD"} {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return s[:len(s)-len(q)]
		}
	}
	return s
}
