package coingecko

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketfeed/pkg/fetch"
	"marketfeed/pkg/market"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	fetcher := fetch.New(fetch.WithDispatchGap(0), fetch.WithBaseDelay(time.Millisecond))
	return NewClient(fetcher, WithBaseURL(srv.URL))
}

func TestSimplePrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/simple/price", r.URL.Path)
		require.Equal(t, "dogwifcoin", r.URL.Query().Get("ids"))
		require.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		fmt.Fprint(w, `{"dogwifcoin":{"usd":2.35,"usd_24h_change":-4.2}}`)
	})

	res, err := client.SimplePrice(context.Background(), "WIF")
	require.NoError(t, err)
	require.Equal(t, "WIF", res.Symbol)
	require.Equal(t, 2.35, res.Price)
	require.Equal(t, -4.2, res.ChangePercent)
	require.Equal(t, "coingecko", res.Source)
}

func TestSimplePrice_UnmappedSymbol(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for unmapped symbols")
	})

	_, err := client.SimplePrice(context.Background(), "NOTACOIN")
	require.ErrorIs(t, err, market.ErrNoData)
}

func TestSimplePrice_EmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	_, err := client.SimplePrice(context.Background(), "BTC")
	require.ErrorIs(t, err, market.ErrNoData)
}
