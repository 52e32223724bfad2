package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/tripgeo/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	Retry     resilience.RetryConfig
	// Limiter paces requests. Defaults to 5 requests per second.
	Limiter *rate.Limiter
}

// HTTPFetcher implements Fetcher using net/http with retry and rate limiting.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "tripgeo/1.0"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("dataset download")
	}
	lim := opts.Limiter
	if lim == nil {
		lim = rate.NewLimiter(5, 5)
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:    opts,
		limiter: lim,
	}
}

type conditionalResult struct {
	body    io.ReadCloser
	etag    string
	changed bool
}

// DownloadIfChanged fetches the URL only if the ETag has changed. Transient
// failures (timeouts, 429 and 5xx responses) are retried with backoff.
func (f *HTTPFetcher) DownloadIfChanged(ctx context.Context, rawURL string, etag string) (io.ReadCloser, string, bool, error) {
	res, err := resilience.DoVal(ctx, f.opts.Retry, func(ctx context.Context) (conditionalResult, error) {
		return f.get(ctx, rawURL, etag)
	})
	if err != nil {
		return nil, "", false, err
	}
	return res.body, res.etag, res.changed, nil
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL, etag string) (conditionalResult, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return conditionalResult{}, eris.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return conditionalResult{}, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return conditionalResult{}, eris.Wrap(err, "http get")
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		_ = resp.Body.Close()
		return conditionalResult{etag: etag}, nil
	case resp.StatusCode == http.StatusOK:
		return conditionalResult{body: resp.Body, etag: resp.Header.Get("ETag"), changed: true}, nil
	default:
		_ = resp.Body.Close()
		statusErr := eris.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return conditionalResult{}, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return conditionalResult{}, statusErr
	}
}
