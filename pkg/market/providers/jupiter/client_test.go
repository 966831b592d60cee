package jupiter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketfeed/pkg/fetch"
	"marketfeed/pkg/market"
)

const (
	wifMint  = "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm"
	bonkMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

func tokenListJSON() string {
	return fmt.Sprintf(`[
		{"address":"%s","symbol":"WIF","name":"dogwifhat","decimals":6,"verified":true},
		{"address":"%s","symbol":"BONK","name":"Bonk","decimals":5,"verified":true},
		{"address":"FakeMint1111111111111111111111111111111111","symbol":"WIF","name":"impostor","decimals":9,"verified":false}
	]`, wifMint, bonkMint)
}

func newTestClient(t *testing.T, priceHandler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/all", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		fmt.Fprint(w, tokenListJSON())
	})
	mux.HandleFunc("/price/v3", priceHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	fetcher := fetch.New(fetch.WithDispatchGap(0), fetch.WithBaseDelay(time.Millisecond))
	client := NewClient(fetcher, WithPriceBaseURL(srv.URL), WithTokenBaseURL(srv.URL))
	return client, &tokenCalls
}

func TestPriceBySymbol(t *testing.T) {
	client, tokenCalls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, wifMint, r.URL.Query().Get("ids"))
		fmt.Fprintf(w, `{"%s":{"usdPrice":2.41,"priceChange24h":5.3,"blockId":123}}`, wifMint)
	})

	res, err := client.PriceBySymbol(context.Background(), "WIF")
	require.NoError(t, err)
	require.Equal(t, "WIF", res.Symbol)
	require.Equal(t, 2.41, res.Price)
	require.Equal(t, 5.3, res.ChangePercent)
	require.Equal(t, "jupiter", res.Source)

	// Second lookup reuses the decoded index.
	_, err = client.PriceBySymbol(context.Background(), "WIF")
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(tokenCalls))
}

func TestPriceBySymbol_VerifiedWinsCollision(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	mint, err := client.ResolveMint(context.Background(), "WIF")
	require.NoError(t, err)
	require.Equal(t, wifMint, mint, "verified token must win the symbol collision")
}

func TestPriceBySymbol_UnknownToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no price request expected for unknown tokens")
	})

	_, err := client.PriceBySymbol(context.Background(), "NOTLISTED")
	require.ErrorIs(t, err, market.ErrNoData)
}

func TestPriceBySymbol_StripsPairFormatting(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"%s":{"usdPrice":0.00002}}`, bonkMint)
	})

	res, err := client.PriceBySymbol(context.Background(), "BONK-USD")
	require.NoError(t, err)
	require.Equal(t, 0.00002, res.Price)
}

func TestPricesBySymbols(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		require.Len(t, ids, 2)
		fmt.Fprintf(w, `{"%s":{"usdPrice":2.5},"%s":{"usdPrice":0}}`, wifMint, bonkMint)
	})

	prices, err := client.PricesBySymbols(context.Background(), []string{"WIF", "BONK", "MISSING"})
	require.NoError(t, err)
	// BONK priced at zero and the unknown symbol are both omitted.
	require.Len(t, prices, 1)
	require.Equal(t, 2.5, prices["WIF"].Price)
}

func TestPrices_BatchesAtLimit(t *testing.T) {
	var priceCalls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&priceCalls, 1)
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		require.LessOrEqual(t, len(ids), 50)
		fmt.Fprint(w, `{}`)
	})

	mints := make([]string, 120)
	for i := range mints {
		mints[i] = fmt.Sprintf("Mint%d", i)
	}
	_, err := client.Prices(context.Background(), mints)
	require.NoError(t, err)
	require.EqualValues(t, 3, atomic.LoadInt32(&priceCalls))
}

func TestRefreshTokenList(t *testing.T) {
	client, tokenCalls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	_, err := client.ResolveMint(context.Background(), "WIF")
	require.NoError(t, err)
	require.NoError(t, client.RefreshTokenList(context.Background()))
	require.EqualValues(t, 2, atomic.LoadInt32(tokenCalls))
}

func TestStartTokenRefresh_BadSpec(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := client.StartTokenRefresh("not a cron spec")
	require.Error(t, err)

	stop, err := client.StartTokenRefresh("@every 12h")
	require.NoError(t, err)
	stop()
}
