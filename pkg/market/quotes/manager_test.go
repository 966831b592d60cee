package quotes

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketfeed/pkg/fetch"
	"marketfeed/pkg/market"
)

// fakeSource is a scriptable quote source counting its calls.
type fakeSource struct {
	name    string
	mu      sync.Mutex
	calls   map[string]int
	handler func(symbol string, call int) (*market.Quote, error)
	block   chan struct{}
}

func newFakeSource(name string, handler func(symbol string, call int) (*market.Quote, error)) *fakeSource {
	return &fakeSource{name: name, calls: make(map[string]int), handler: handler}
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) FetchQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	s.mu.Lock()
	s.calls[symbol]++
	call := s.calls[symbol]
	block := s.block
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	return s.handler(symbol, call)
}

func (s *fakeSource) callCount(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[symbol]
}

func okQuote(symbol string, price float64) *market.Quote {
	return &market.Quote{Symbol: symbol, Price: price, Timestamp: time.Now()}
}

func fastOpts(opts ...Option) []Option {
	base := []Option{
		WithSpacing(0),
		WithRetryBackoff(5 * time.Millisecond),
		WithCallTimeout(time.Second),
	}
	return append(base, opts...)
}

func TestFetchStockQuote_Success(t *testing.T) {
	src := newFakeSource("primary", func(symbol string, call int) (*market.Quote, error) {
		return okQuote(symbol, 123.45), nil
	})
	m := NewManager(src, fastOpts()...)
	defer m.Close()

	quote, err := m.FetchStockQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, quote)
	require.Equal(t, 123.45, quote.Price)
	require.Equal(t, StatusConnected, m.ProviderStatuses()["primary"])
}

func TestFetchStockQuote_CacheHit(t *testing.T) {
	src := newFakeSource("primary", func(symbol string, call int) (*market.Quote, error) {
		return okQuote(symbol, 10), nil
	})
	m := NewManager(src, fastOpts()...)
	defer m.Close()

	_, err := m.FetchStockQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	_, err = m.FetchStockQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	require.Equal(t, 1, src.callCount("AAPL"))
}

func TestFetchStockQuote_NoData(t *testing.T) {
	src := newFakeSource("primary", func(symbol string, call int) (*market.Quote, error) {
		return nil, market.ErrNoData
	})
	m := NewManager(src, fastOpts()...)
	defer m.Close()

	quote, err := m.FetchStockQuote(context.Background(), "UNKNOWN")
	require.NoError(t, err)
	require.Nil(t, quote)
	// An empty answer is still a healthy upstream.
	require.Equal(t, StatusConnected, m.ProviderStatuses()["primary"])
	require.Equal(t, 1, src.callCount("UNKNOWN"))
}

func TestFetchStockQuote_DeduplicatesPending(t *testing.T) {
	src := newFakeSource("primary", func(symbol string, call int) (*market.Quote, error) {
		return okQuote(symbol, 5), nil
	})
	src.block = make(chan struct{})
	m := NewManager(src, fastOpts()...)
	defer m.Close()

	// First request occupies the processor; the rest pile up behind it and
	// must collapse into one queued item per symbol.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = m.FetchStockQuote(context.Background(), "HEAD")
	}()
	time.Sleep(20 * time.Millisecond)

	const waiters = 5
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			quote, err := m.FetchStockQuote(context.Background(), "TSLA")
			require.NoError(t, err)
			require.NotNil(t, quote)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(src.block)
	wg.Wait()

	require.Equal(t, 1, src.callCount("TSLA"))
}

func TestFetchStockQuote_RetriesThenSucceeds(t *testing.T) {
	src := newFakeSource("primary", func(symbol string, call int) (*market.Quote, error) {
		if call < 3 {
			return nil, errors.New("upstream flake")
		}
		return okQuote(symbol, 99), nil
	})
	m := NewManager(src, fastOpts(WithMaxRetries(3))...)
	defer m.Close()

	quote, err := m.FetchStockQuote(context.Background(), "NVDA")
	require.NoError(t, err)
	require.NotNil(t, quote)
	require.Equal(t, 99.0, quote.Price)
	require.Equal(t, 3, src.callCount("NVDA"))
	require.Equal(t, StatusConnected, m.ProviderStatuses()["primary"])
}

func TestFetchStockQuote_FallbackAfterExhaustion(t *testing.T) {
	primary := newFakeSource("primary", func(symbol string, call int) (*market.Quote, error) {
		return nil, errors.New("down")
	})
	fallback := newFakeSource("fallback", func(symbol string, call int) (*market.Quote, error) {
		return okQuote(symbol, 50), nil
	})
	m := NewManager(primary, fastOpts(WithMaxRetries(1), WithFallback(fallback))...)
	defer m.Close()

	quote, err := m.FetchStockQuote(context.Background(), "AMD")
	require.NoError(t, err)
	require.NotNil(t, quote)
	require.Equal(t, 50.0, quote.Price)
	require.Equal(t, 2, primary.callCount("AMD"))
	require.Equal(t, 1, fallback.callCount("AMD"))

	statuses := m.ProviderStatuses()
	require.Equal(t, StatusOffline, statuses["primary"])
	require.Equal(t, StatusConnected, statuses["fallback"])
}

func TestFetchStockQuote_StaleCacheFallback(t *testing.T) {
	var failing atomic.Bool
	src := newFakeSource("primary", func(symbol string, call int) (*market.Quote, error) {
		if failing.Load() {
			return nil, errors.New("down")
		}
		return okQuote(symbol, 77), nil
	})
	m := NewManager(src, fastOpts(WithMaxRetries(0), WithCacheTTL(30*time.Millisecond))...)
	defer m.Close()

	quote, err := m.FetchStockQuote(context.Background(), "META")
	require.NoError(t, err)
	require.Equal(t, 77.0, quote.Price)

	failing.Store(true)
	time.Sleep(50 * time.Millisecond)

	stale, err := m.FetchStockQuote(context.Background(), "META")
	require.NoError(t, err)
	require.NotNil(t, stale)
	require.Equal(t, 77.0, stale.Price)
}

func TestFetchStockQuote_ErrorWithoutCache(t *testing.T) {
	src := newFakeSource("primary", func(symbol string, call int) (*market.Quote, error) {
		return nil, errors.New("down")
	})
	m := NewManager(src, fastOpts(WithMaxRetries(0))...)
	defer m.Close()

	quote, err := m.FetchStockQuote(context.Background(), "MISSING")
	require.Error(t, err)
	require.Nil(t, quote)
}

func TestFetchStockQuote_RateLimitedStatus(t *testing.T) {
	src := newFakeSource("primary", func(symbol string, call int) (*market.Quote, error) {
		return nil, fetch.ErrRateLimited
	})
	m := NewManager(src, fastOpts(WithMaxRetries(0))...)
	defer m.Close()

	_, err := m.FetchStockQuote(context.Background(), "AAPL")
	require.Error(t, err)
	require.Equal(t, StatusRateLimited, m.ProviderStatuses()["primary"])
}

func TestFetchMultipleQuotes(t *testing.T) {
	src := newFakeSource("primary", func(symbol string, call int) (*market.Quote, error) {
		if symbol == "BAD" {
			return nil, market.ErrNoData
		}
		return okQuote(symbol, 1), nil
	})
	m := NewManager(src, fastOpts()...)
	defer m.Close()

	results, err := m.FetchMultipleQuotes(context.Background(), []string{"AAPL", "BAD", "MSFT"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.NotNil(t, results[0])
	require.Nil(t, results[1])
	require.NotNil(t, results[2])
	require.Equal(t, "AAPL", results[0].Symbol)
	require.Equal(t, "MSFT", results[2].Symbol)
}

func TestGetLastKnownPrices(t *testing.T) {
	src := newFakeSource("primary", func(symbol string, call int) (*market.Quote, error) {
		return okQuote(symbol, 12), nil
	})
	m := NewManager(src, fastOpts(WithCacheTTL(10*time.Millisecond))...)
	defer m.Close()

	_, err := m.FetchStockQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	known := m.GetLastKnownPrices([]string{"AAPL", "NEVER"})
	require.Len(t, known, 2)
	require.NotNil(t, known[0], "expired entries still count as last known")
	require.Equal(t, 12.0, known[0].Price)
	require.Nil(t, known[1])
}

func TestOnStatusChange(t *testing.T) {
	var failing atomic.Bool
	src := newFakeSource("primary", func(symbol string, call int) (*market.Quote, error) {
		if failing.Load() {
			return nil, errors.New("down")
		}
		return okQuote(symbol, 1), nil
	})
	m := NewManager(src, fastOpts(WithMaxRetries(0))...)
	defer m.Close()

	var mu sync.Mutex
	var seen []ProviderStatus
	unsubscribe := m.OnStatusChange(func(provider string, status ProviderStatus) {
		mu.Lock()
		seen = append(seen, status)
		mu.Unlock()
	})
	defer unsubscribe()

	_, err := m.FetchStockQuote(context.Background(), "A")
	require.NoError(t, err)
	failing.Store(true)
	_, _ = m.FetchStockQuote(context.Background(), "B")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []ProviderStatus{StatusConnected, StatusOffline}, seen)
}

func TestClose_FailsOutstandingCallers(t *testing.T) {
	src := newFakeSource("primary", func(symbol string, call int) (*market.Quote, error) {
		return okQuote(symbol, 1), nil
	})
	src.block = make(chan struct{})
	m := NewManager(src, fastOpts()...)

	errCh := make(chan error, 1)
	go func() {
		_, err := m.FetchStockQuote(context.Background(), "SLOW")
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)

	go m.Close()
	time.Sleep(20 * time.Millisecond)
	close(src.block)

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("caller not released on close")
	}
}
