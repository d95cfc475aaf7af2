package fetcher

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/mars-cli/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// MaxRetries is the total number of attempts. 1 disables retries.
	MaxRetries   int
	RateLimiters map[string]*rate.Limiter
	// BaseBackoff is the delay before the first retry. Default: 1s.
	BaseBackoff time.Duration
}

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = min(a.currentRate*1.2, a.maxRate)
	a.limiter.SetLimit(a.currentRate)
}

// OnRateLimit halves the rate on 429 responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = max(a.currentRate*0.5, a.minRate)
	a.limiter.SetLimit(a.currentRate)
	zap.L().Warn("adaptive rate limit: reducing rate after 429",
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher implements Fetcher using net/http with rate limiting and
// optional retries on transient failures.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	limiters map[string]*rate.Limiter

	mu       sync.Mutex
	adaptive map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "mars-cli/1.0"
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = time.Second
	}
	limiters := make(map[string]*rate.Limiter, len(opts.RateLimiters))
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: limiters,
		adaptive: make(map[string]*AdaptiveLimiter),
	}
}

// wait blocks on the fixed limiter for the host if one is configured,
// otherwise on the host's adaptive limiter.
func (f *HTTPFetcher) wait(ctx context.Context, host string) (*AdaptiveLimiter, error) {
	if lim, ok := f.limiters[host]; ok {
		return nil, eris.Wrap(lim.Wait(ctx), "rate limiter wait")
	}

	f.mu.Lock()
	a, ok := f.adaptive[host]
	if !ok {
		a = NewAdaptiveLimiter(2, 2)
		f.adaptive[host] = a
	}
	f.mu.Unlock()

	return a, eris.Wrap(a.Wait(ctx), "rate limiter wait")
}

func (f *HTTPFetcher) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	adaptive, err := f.wait(ctx, req.URL.Host)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req.Clone(ctx))
	if err != nil {
		return nil, eris.Wrapf(err, "fetch %s", req.URL.Redacted())
	}

	if resp.StatusCode == http.StatusTooManyRequests && adaptive != nil {
		adaptive.OnRateLimit()
	}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		_ = resp.Body.Close()
		return nil, resilience.NewTransientError(
			eris.Errorf("http %d from %s", resp.StatusCode, req.URL.Redacted()), resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		_ = resp.Body.Close()
		return nil, eris.Errorf("http %d from %s", resp.StatusCode, req.URL.Redacted())
	}

	if adaptive != nil {
		adaptive.OnSuccess()
	}
	return resp, nil
}

func (f *HTTPFetcher) backoff(attempt int) time.Duration {
	d := time.Duration(float64(f.opts.BaseBackoff) * math.Pow(2, float64(attempt)))
	d = min(d, 30*time.Second)
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, eris.Wrap(err, "download: parse url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "download: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts:    f.opts.MaxRetries,
		InitialBackoff: f.opts.BaseBackoff,
		OnRetry:        resilience.RetryLogger("fetcher", rawURL),
		Backoff:        f.backoff,
	}, func(ctx context.Context) (*http.Response, error) {
		return f.do(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	return resp.Body, nil
}
