package finnhub

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
	return NewClient(fetcher, WithBaseURL(srv.URL), WithAPIKey("test-token"))
}

func TestQuote(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quote", r.URL.Path)
		require.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		require.Equal(t, "test-token", r.URL.Query().Get("token"))
		fmt.Fprint(w, `{"c":190.5,"d":1.25,"dp":0.66,"h":191,"l":188,"o":189,"pc":189.25,"t":1718000000}`)
	})

	quote, err := client.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, "AAPL", quote.Symbol)
	require.Equal(t, 190.5, quote.Price)
	require.Equal(t, 1.25, quote.Change)
	require.Equal(t, 0.66, quote.ChangePercent)
}

func TestQuote_ZeroPriceIsNoData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"c":0,"d":null,"dp":null}`)
	})

	_, err := client.Quote(context.Background(), "NOSUCH")
	require.ErrorIs(t, err, market.ErrNoData)
}

func TestQuote_MissingAPIKey(t *testing.T) {
	fetcher := fetch.New(fetch.WithDispatchGap(0))
	client := NewClient(fetcher)

	_, err := client.Quote(context.Background(), "AAPL")
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestCompanyNews(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/company-news", r.URL.Path)
		require.Equal(t, "2025-06-08", r.URL.Query().Get("from"))
		require.Equal(t, "2025-06-15", r.URL.Query().Get("to"))
		fmt.Fprint(w, `[
			{"headline":"Apple ships","summary":"s1","source":"wire","url":"https://example.com/1","datetime":1718000000},
			{"headline":"","summary":"dropped"},
			{"headline":"Second story","datetime":1718003600}]`)
	})

	items, err := client.CompanyNews(context.Background(), "AAPL", "2025-06-08", "2025-06-15")
	require.NoError(t, err)
	require.Len(t, items, 2, "entries without a headline are dropped")
	require.Equal(t, "Apple ships", items[0].Headline)
	require.Equal(t, time.Unix(1718000000, 0), items[0].Datetime)
}

func TestFetchQuote_Contract(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"c":42}`)
	})

	require.Equal(t, "finnhub", client.Name())
	quote, err := client.FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, 42.0, quote.Price)
}
