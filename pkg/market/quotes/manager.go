// Package quotes implements the deduplicating, retrying quote request queue
// that sits above the provider-level fetch layer. It serializes dispatch with
// a coarse global throttle, collapses duplicate pending requests, retries
// failures with exponential backoff through an explicit priority tier, and
// keeps a longer-lived quote cache for stale fallback.
package quotes

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"marketfeed/pkg/market"
)

const (
	defaultSpacing     = 1000 * time.Millisecond
	defaultCacheTTL    = 30 * time.Second
	defaultMaxRetries  = 3
	defaultCallTimeout = 10 * time.Second
	retryBackoffUnit   = 1000 * time.Millisecond
)

// ErrClosed is returned to callers when the manager shuts down while their
// request is outstanding.
var ErrClosed = errors.New("quotes: manager closed")

// QuoteSource is an upstream capable of serving stock quotes.
type QuoteSource interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (*market.Quote, error)
}

type requestKey struct {
	Symbol string
	Type   string
}

type result struct {
	quote *market.Quote
	err   error
}

// queuedRequest is one pending queue item. Callers arriving while the item is
// queued attach as additional waiters instead of enqueueing a duplicate.
type queuedRequest struct {
	id         string
	key        requestKey
	retryCount int
	notBefore  time.Time
	waiters    []chan result
}

// Manager owns the request queue and its single processor goroutine.
type Manager struct {
	primary     QuoteSource
	fallback    QuoteSource
	spacing     time.Duration
	cacheTTL    time.Duration
	maxRetries  int
	callTimeout time.Duration
	retryUnit   time.Duration

	mu      sync.Mutex
	retryQ  []*queuedRequest
	normalQ []*queuedRequest
	pending map[requestKey]*queuedRequest
	cache   map[string]cachedQuote

	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	statusMu       sync.Mutex
	statuses       map[string]ProviderStatus
	nextListenerID int
	listeners      map[int]func(string, ProviderStatus)

	lastDispatch time.Time
}

type cachedQuote struct {
	quote   *market.Quote
	fetched time.Time
}

// Option configures a new Manager.
type Option func(*Manager)

// WithFallback sets a secondary source consulted once the primary exhausts
// its retries.
func WithFallback(source QuoteSource) Option {
	return func(m *Manager) {
		m.fallback = source
	}
}

// WithSpacing overrides the minimum gap between dispatches.
func WithSpacing(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.spacing = d
		}
	}
}

// WithCacheTTL overrides the quote cache freshness window.
func WithCacheTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.cacheTTL = d
		}
	}
}

// WithMaxRetries adjusts the retry budget per request.
func WithMaxRetries(max int) Option {
	return func(m *Manager) {
		if max >= 0 {
			m.maxRetries = max
		}
	}
}

// WithCallTimeout bounds each upstream call made by the processor.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.callTimeout = d
		}
	}
}

// WithRetryBackoff overrides the base unit of the retry backoff curve.
func WithRetryBackoff(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retryUnit = d
		}
	}
}

// NewManager constructs a Manager and starts its processor goroutine.
func NewManager(primary QuoteSource, opts ...Option) *Manager {
	m := &Manager{
		primary:     primary,
		spacing:     defaultSpacing,
		cacheTTL:    defaultCacheTTL,
		maxRetries:  defaultMaxRetries,
		callTimeout: defaultCallTimeout,
		retryUnit:   retryBackoffUnit,
		pending:     make(map[requestKey]*queuedRequest),
		cache:       make(map[string]cachedQuote),
		wake:        make(chan struct{}, 1),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.run()
	return m
}

// Close stops the processor. Outstanding callers receive ErrClosed.
func (m *Manager) Close() {
	close(m.quit)
	<-m.done
}

// FetchStockQuote returns the quote for symbol, serving from the 30s cache
// when fresh. A "no data" answer resolves to (nil, nil); after retry
// exhaustion a stale cached quote is returned when one exists.
func (m *Manager) FetchStockQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	if quote, ok := m.freshQuote(symbol); ok {
		return quote, nil
	}
	ch := m.enqueue(symbol, "quote")
	select {
	case res := <-ch:
		return res.quote, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.quit:
		return nil, ErrClosed
	}
}

// FetchMultipleQuotes resolves a batch of symbols. All requests are enqueued
// up front so duplicates collapse, then awaited in order. Result slots line
// up with the input; failed symbols are nil.
func (m *Manager) FetchMultipleQuotes(ctx context.Context, symbols []string) ([]*market.Quote, error) {
	results := make([]*market.Quote, len(symbols))
	channels := make([]chan result, len(symbols))
	for i, symbol := range symbols {
		if quote, ok := m.freshQuote(symbol); ok {
			results[i] = quote
			continue
		}
		channels[i] = m.enqueue(symbol, "quote")
	}
	for i, ch := range channels {
		if ch == nil {
			continue
		}
		select {
		case res := <-ch:
			results[i] = res.quote
		case <-ctx.Done():
			return results, ctx.Err()
		case <-m.quit:
			return results, ErrClosed
		}
	}
	return results, nil
}

// GetLastKnownPrices returns cached quotes regardless of age, for instant UI
// paint before the network resolves. Unknown symbols yield nil slots.
func (m *Manager) GetLastKnownPrices(symbols []string) []*market.Quote {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := make([]*market.Quote, len(symbols))
	for i, symbol := range symbols {
		if entry, ok := m.cache[symbol]; ok {
			results[i] = entry.quote
		}
	}
	return results
}

func (m *Manager) freshQuote(symbol string) (*market.Quote, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.cache[symbol]
	if !ok || time.Since(entry.fetched) > m.cacheTTL {
		return nil, false
	}
	return entry.quote, true
}

func (m *Manager) staleQuote(symbol string) (*market.Quote, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.cache[symbol]
	return entry.quote, ok
}

func (m *Manager) storeQuote(symbol string, quote *market.Quote) {
	m.mu.Lock()
	m.cache[symbol] = cachedQuote{quote: quote, fetched: time.Now()}
	m.mu.Unlock()
}

// enqueue registers interest in (symbol, type). If the pair is already
// queued the caller attaches to the existing item.
func (m *Manager) enqueue(symbol, requestType string) chan result {
	key := requestKey{Symbol: symbol, Type: requestType}
	ch := make(chan result, 1)

	m.mu.Lock()
	if req, ok := m.pending[key]; ok {
		req.waiters = append(req.waiters, ch)
		m.mu.Unlock()
		return ch
	}
	req := &queuedRequest{
		id:      uuid.NewString(),
		key:     key,
		waiters: []chan result{ch},
	}
	m.normalQ = append(m.normalQ, req)
	m.pending[key] = req
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return ch
}

// run is the single processor draining the queue one request at a time with
// the configured spacing between dispatches.
func (m *Manager) run() {
	defer close(m.done)
	for {
		req, ok := m.nextRequest()
		if !ok {
			return
		}
		if wait := m.spacing - time.Since(m.lastDispatch); wait > 0 {
			select {
			case <-time.After(wait):
			case <-m.quit:
				m.deliver(req, result{err: ErrClosed})
				return
			}
		}
		m.lastDispatch = time.Now()
		m.execute(req)
	}
}

// nextRequest blocks until a request is eligible. The retry tier has strict
// priority over new arrivals: while a retry is pending its backoff, new
// requests wait behind it. This favors liveness of already-pending work over
// fairness to newcomers.
func (m *Manager) nextRequest() (*queuedRequest, bool) {
	for {
		m.mu.Lock()
		now := time.Now()
		var req *queuedRequest
		var sleep time.Duration
		if len(m.retryQ) > 0 {
			head := m.retryQ[0]
			if head.notBefore.After(now) {
				sleep = head.notBefore.Sub(now)
			} else {
				req = head
				m.retryQ = m.retryQ[1:]
			}
		} else if len(m.normalQ) > 0 {
			req = m.normalQ[0]
			m.normalQ = m.normalQ[1:]
		}
		if req != nil {
			delete(m.pending, req.key)
			m.mu.Unlock()
			return req, true
		}
		m.mu.Unlock()

		if sleep > 0 {
			select {
			case <-time.After(sleep):
			case <-m.quit:
				return nil, false
			}
			continue
		}
		select {
		case <-m.wake:
		case <-m.quit:
			return nil, false
		}
	}
}

func (m *Manager) execute(req *queuedRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), m.callTimeout)
	quote, err := m.primary.FetchQuote(ctx, req.key.Symbol)
	cancel()

	if err == nil {
		m.setStatus(m.primary.Name(), StatusConnected)
		m.storeQuote(req.key.Symbol, quote)
		m.deliver(req, result{quote: quote})
		return
	}

	if errors.Is(err, market.ErrNoData) {
		// Upstream answered without data; nothing a retry can fix.
		m.setStatus(m.primary.Name(), StatusConnected)
		m.deliver(req, result{})
		return
	}

	m.observeFailure(m.primary.Name(), err)

	if req.retryCount < m.maxRetries {
		req.retryCount++
		req.notBefore = time.Now().Add(m.retryUnit << req.retryCount)
		logx.Slowf("quotes: request %s %s failed (attempt %d/%d), backing off: %v",
			req.id, req.key.Symbol, req.retryCount, m.maxRetries, err)
		m.requeue(req)
		return
	}

	if m.fallback != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.callTimeout)
		quote, fbErr := m.fallback.FetchQuote(ctx, req.key.Symbol)
		cancel()
		if fbErr == nil {
			m.setStatus(m.fallback.Name(), StatusConnected)
			m.storeQuote(req.key.Symbol, quote)
			m.deliver(req, result{quote: quote})
			return
		}
		m.observeFailure(m.fallback.Name(), fbErr)
	}

	if stale, ok := m.staleQuote(req.key.Symbol); ok {
		logx.Slowf("quotes: request %s %s exhausted retries, serving stale cache: %v",
			req.id, req.key.Symbol, err)
		m.deliver(req, result{quote: stale})
		return
	}
	logx.Errorf("quotes: request %s %s exhausted retries with no cached fallback: %v",
		req.id, req.key.Symbol, err)
	m.deliver(req, result{err: err})
}

// requeue places a failed request at the head of the retry tier and restores
// its pending entry so new callers keep attaching to it.
func (m *Manager) requeue(req *queuedRequest) {
	m.mu.Lock()
	m.retryQ = append([]*queuedRequest{req}, m.retryQ...)
	if _, ok := m.pending[req.key]; !ok {
		m.pending[req.key] = req
	}
	m.mu.Unlock()
}

func (m *Manager) deliver(req *queuedRequest, res result) {
	for _, ch := range req.waiters {
		ch <- res
	}
}
