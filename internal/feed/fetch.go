package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	appLog "cityevents/internal/log"
	"cityevents/internal/metrics"
	"cityevents/internal/model"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "cityevents/1.0"
	maxBodyBytes     = 32 << 20
)

// Source represents a single delimited-text feed.
type Source struct {
	// Name identifies the feed in logs and metrics (e.g. "events").
	Name string
	// URL is the feed endpoint.
	URL string
}

// FetchResult contains the body of one successfully fetched feed.
type FetchResult struct {
	Source Source
	Body   []byte
}

// Options tunes the Fetcher. Zero values get defaults.
type Options struct {
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	UserAgent     string
	Client        *http.Client
}

// Fetcher downloads feeds over HTTP. Each feed name gets its own circuit
// breaker; all feeds share one outbound rate limiter.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	limiter   *rate.Limiter

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

// NewFetcher creates a new feed Fetcher.
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Fetcher{
		client:    client,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		limiter:   rate.NewLimiter(limit, opts.Burst),
		breakers:  make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}
}

// Fetch downloads a single feed. Any failure (network error, non-2xx status,
// open breaker, timeout) is returned wrapped in model.ErrFetchFailure.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, fmt.Errorf("%w: %s: source URL is empty", model.ErrFetchFailure, src.Name)
	}

	started := time.Now()
	body, err := f.breaker(src.Name).Execute(func() ([]byte, error) {
		return f.get(ctx, src)
	})
	metrics.FeedFetchDuration.WithLabelValues(src.Name).Observe(time.Since(started).Seconds())

	if err != nil {
		result := "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
		metrics.FeedFetches.WithLabelValues(src.Name, result).Inc()
		if errors.Is(err, model.ErrFetchFailure) {
			return FetchResult{}, err
		}
		return FetchResult{}, fmt.Errorf("%w: %s: %v", model.ErrFetchFailure, src.Name, err)
	}

	metrics.FeedFetches.WithLabelValues(src.Name, "success").Inc()
	appLog.Info("feed fetch success", "feed", src.Name, "url", redactURL(src.URL), "bytes", len(body), "elapsed", time.Since(started))
	return FetchResult{Source: src, Body: body}, nil
}

func (f *Fetcher) get(ctx context.Context, src Source) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

	appLog.Debug("feed fetch start", "feed", src.Name, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, fmt.Errorf("%w: %s: unexpected status %s", model.ErrFetchFailure, src.Name, resp.Status)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

func (f *Fetcher) breaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[name]; ok {
		return cb
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "feed-" + name,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     time.Minute,
		// Feeds are fetched a few times per hour, so a short run of
		// consecutive failures is enough signal.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			appLog.Warn("feed circuit breaker state change", "feed", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	f.breakers[name] = cb
	return cb
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// redactURL hides sensitive parts of a feed URL for logging purposes.
// Published spreadsheet URLs carry their access key in the path.
//
//	https://docs.example.com/spreadsheets/d/KEY/export?format=csv
//	-> https://docs.example.com/...(redacted)
func redactURL(raw string) string {
	const redactedSuffix = "/...(redacted)"

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "feed:/" + redactedSuffix
	}
	return u.Scheme + "://" + u.Host + redactedSuffix
}
