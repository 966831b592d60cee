package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/zeromicro/go-zero/core/logx"

	"marketfeed/pkg/market"
)

// tokenIndex maintains the symbol -> mint mapping built from the token list.
// The raw list rides the fetcher's 24h TTL cache; the decoded index is kept
// here under its own lock so repeated lookups skip re-decoding.
type tokenIndex struct {
	client *Client

	mu     sync.RWMutex
	bySym  map[string]Token
	loaded bool
}

func newTokenIndex(client *Client) *tokenIndex {
	return &tokenIndex{client: client}
}

// TokenList returns the full token list, served from cache within 24 hours.
func (c *Client) TokenList(ctx context.Context) ([]Token, error) {
	u := fmt.Sprintf("%s/all", c.tokenBaseURL)
	body, err := c.fetcher.GetJSON(ctx, "jupiter:tokenlist", u, ttlTokenList)
	if err != nil {
		return nil, err
	}
	var tokens []Token
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("jupiter: decode token list: %w", err)
	}
	return tokens, nil
}

// RefreshTokenList forces a token list reload and index rebuild.
func (c *Client) RefreshTokenList(ctx context.Context) error {
	c.fetcher.Invalidate("jupiter:tokenlist")
	c.tokens.mu.Lock()
	c.tokens.loaded = false
	c.tokens.mu.Unlock()
	return c.tokens.ensure(ctx)
}

// StartTokenRefresh schedules periodic token list refreshes on the given cron
// expression (e.g. "@every 12h"). The returned function stops the schedule.
func (c *Client) StartTokenRefresh(spec string) (func(), error) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(spec, func() {
		if err := c.RefreshTokenList(context.Background()); err != nil {
			logx.Errorf("jupiter: token list refresh failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("jupiter: schedule token refresh: %w", err)
	}
	scheduler.Start()
	return func() { scheduler.Stop() }, nil
}

// resolve maps an upper-cased ticker onto a mint, loading the index on first
// use. Quote-pair suffixes are stripped the same way the polygon path does.
func (t *tokenIndex) resolve(ctx context.Context, symbol string) (string, error) {
	if err := t.ensure(ctx); err != nil {
		return "", err
	}
	base := normalizeSymbol(symbol)
	t.mu.RLock()
	token, ok := t.bySym[base]
	t.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("jupiter: token %s: %w", symbol, market.ErrNoData)
	}
	return token.Address, nil
}

func (t *tokenIndex) ensure(ctx context.Context) error {
	t.mu.RLock()
	loaded := t.loaded
	t.mu.RUnlock()
	if loaded {
		return nil
	}

	tokens, err := t.client.TokenList(ctx)
	if err != nil {
		return err
	}

	// Verified tokens win symbol collisions; otherwise first entry stays.
	index := make(map[string]Token, len(tokens))
	for _, token := range tokens {
		sym := strings.ToUpper(strings.TrimSpace(token.Symbol))
		if sym == "" || token.Address == "" {
			continue
		}
		existing, ok := index[sym]
		if !ok || (token.Verified && !existing.Verified) {
			index[sym] = token
		}
	}

	t.mu.Lock()
	t.bySym = index
	t.loaded = true
	t.mu.Unlock()
	return nil
}

func normalizeSymbol(symbol string) string {
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
