// Package fetch provides the shared HTTP access layer for market data
// providers: an in-memory TTL cache over raw JSON bodies, coalescing of
// concurrent requests for the same key, a bounded-concurrency dispatch queue
// with enforced spacing, and 429-aware exponential backoff.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	defaultHTTPTimeout   = 10 * time.Second
	defaultMaxRetries    = 3
	defaultBaseDelay     = 800 * time.Millisecond
	defaultTTL           = 15 * time.Second
	defaultMaxConcurrent = 3
	defaultDispatchGap   = 150 * time.Millisecond
)

// Fetcher is the shared cache-and-backoff HTTP fetcher. One instance is
// constructed per process and passed by reference to every provider adapter.
type Fetcher struct {
	httpClient    *http.Client
	maxRetries    int
	baseDelay     time.Duration
	defaultTTL    time.Duration
	dispatchGap   time.Duration
	maxConcurrent int
	logger        *log.Logger

	sem chan struct{}

	mu       sync.Mutex
	cache    map[string]cacheEntry
	inflight map[string]*call

	statusMu  sync.Mutex
	status    Status
	nextSubID int
	subs      map[int]func(Status)
}

type cacheEntry struct {
	body      []byte
	expiresAt time.Time
}

// call tracks one in-flight request. Waiters for the same key block on done
// and read body/err afterwards.
type call struct {
	done chan struct{}
	body []byte
	err  error
}

// Option configures a new Fetcher.
type Option func(*Fetcher)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) {
		if hc != nil {
			f.httpClient = hc
		}
	}
}

// WithMaxRetries adjusts the 429 retry budget.
func WithMaxRetries(max int) Option {
	return func(f *Fetcher) {
		if max >= 0 {
			f.maxRetries = max
		}
	}
}

// WithBaseDelay overrides the initial backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.baseDelay = d
		}
	}
}

// WithDefaultTTL overrides the cache TTL used when callers pass zero.
func WithDefaultTTL(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.defaultTTL = d
		}
	}
}

// WithMaxConcurrent bounds the number of simultaneous upstream requests.
func WithMaxConcurrent(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxConcurrent = n
		}
	}
}

// WithDispatchGap sets the pause enforced after each request completes before
// its concurrency slot is handed to the next waiter.
func WithDispatchGap(d time.Duration) Option {
	return func(f *Fetcher) {
		if d >= 0 {
			f.dispatchGap = d
		}
	}
}

// WithLogger injects a custom logger (defaults to log.Default()).
func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// New constructs a Fetcher with bounded concurrency and backoff defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
		maxRetries:    defaultMaxRetries,
		baseDelay:     defaultBaseDelay,
		defaultTTL:    defaultTTL,
		dispatchGap:   defaultDispatchGap,
		maxConcurrent: defaultMaxConcurrent,
		logger:        log.Default(),
		status:        StatusOK,
		cache:         make(map[string]cacheEntry),
		inflight:      make(map[string]*call),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.sem = make(chan struct{}, f.maxConcurrent)
	return f
}

// GetJSON returns the raw JSON body for url, serving from cache while the
// entry for key is live. Concurrent callers with the same key share a single
// upstream request. The key must uniquely encode provider and parameters.
func (f *Fetcher) GetJSON(ctx context.Context, key, url string, ttl time.Duration) ([]byte, error) {
	if ttl <= 0 {
		ttl = f.defaultTTL
	}

	f.mu.Lock()
	if entry, ok := f.cache[key]; ok && time.Now().Before(entry.expiresAt) {
		f.mu.Unlock()
		return entry.body, nil
	}
	if pending, ok := f.inflight[key]; ok {
		f.mu.Unlock()
		select {
		case <-pending.done:
			return pending.body, pending.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	f.inflight[key] = c
	f.mu.Unlock()

	body, err := f.dispatch(ctx, url)

	f.mu.Lock()
	c.body, c.err = body, err
	if err == nil {
		f.cache[key] = cacheEntry{body: body, expiresAt: time.Now().Add(ttl)}
	}
	delete(f.inflight, key)
	f.mu.Unlock()
	close(c.done)

	return body, err
}

// Invalidate drops the cached entry for key, if any.
func (f *Fetcher) Invalidate(key string) {
	f.mu.Lock()
	delete(f.cache, key)
	f.mu.Unlock()
}

// dispatch acquires a concurrency slot, runs the backoff-aware fetch and
// releases the slot after the configured gap.
func (f *Fetcher) dispatch(ctx context.Context, url string) ([]byte, error) {
	select {
	case f.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() {
		if f.dispatchGap > 0 {
			time.AfterFunc(f.dispatchGap, func() { <-f.sem })
		} else {
			<-f.sem
		}
	}()
	return f.fetchWithBackoff(ctx, url)
}

func (f *Fetcher) fetchWithBackoff(ctx context.Context, url string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch: build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := f.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("fetch: %w", err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt >= f.maxRetries {
				f.setStatus(StatusLimited)
				return nil, fmt.Errorf("%w: %d attempts for %s", ErrRateLimited, attempt+1, url)
			}
			delay := f.baseDelay << attempt
			if after := retryAfter(resp); after > 0 {
				delay = after
			}
			f.logger.Printf("fetch: 429 from %s, retrying in %s (attempt %d/%d)", url, delay, attempt+1, f.maxRetries)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		if readErr != nil {
			return nil, fmt.Errorf("fetch: read response: %w", readErr)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			f.setStatus(StatusError)
			return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
		}

		f.setStatus(StatusOK)
		return body, nil
	}
}

// retryAfter reads the Retry-After header, supporting both delta-seconds and
// HTTP-date forms.
func retryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
