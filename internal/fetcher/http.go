package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/classifieds-cli/internal/dom"
)

const (
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	defaultAcceptLanguage = "de-DE,de;q=0.9,en-US;q=0.8,en;q=0.7"
	defaultCharset        = "utf-8"

	maxPageBytes  = 8 << 20
	maxImageBytes = 25 << 20
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent      string
	AcceptLanguage string
	// Charset is applied to every page body regardless of what the
	// response declares.
	Charset string
	// Timeout of 0 leaves the transport default in place.
	Timeout           time.Duration
	RequestsPerSecond float64
	Transport         http.RoundTripper
	// Body size caps; 0 means the built-in limit. Larger bodies fail.
	MaxPageBytes  int64
	MaxImageBytes int64
}

// AdaptiveLimiter wraps a rate.Limiter that slows down when the source
// site pushes back. On success it recovers by 20% (up to the initial rate).
// On 429/503 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive limiter starting at initialRate.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		initialRate: initialRate,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess moves the rate back toward the initial rate.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.currentRate >= a.initialRate {
		return
	}
	newRate := a.currentRate * 1.2
	if newRate > a.initialRate {
		newRate = a.initialRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
}

// OnPushback halves the rate after a 429 or 503.
func (a *AdaptiveLimiter) OnPushback() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 0.5
	if newRate < a.minRate {
		newRate = a.minRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
	zap.L().Warn("fetcher: source pushed back, reducing request rate",
		zap.Float64("new_rate", float64(newRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher implements Fetcher with net/http.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = defaultAcceptLanguage
	}
	if opts.Charset == "" {
		opts.Charset = defaultCharset
	}
	if opts.MaxPageBytes <= 0 {
		opts.MaxPageBytes = maxPageBytes
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = maxImageBytes
	}
	client := &http.Client{Timeout: opts.Timeout}
	if opts.Transport != nil {
		client.Transport = opts.Transport
	}
	return &HTTPFetcher{
		client:   client,
		opts:     opts,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *AdaptiveLimiter {
	if f.opts.RequestsPerSecond <= 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[u.Host]
	if !ok {
		lim = NewAdaptiveLimiter(rate.Limit(f.opts.RequestsPerSecond), 1)
		f.limiters[u.Host] = lim
	}
	return lim
}

// get issues one GET with the fixed header set and reads a 200 response
// body. Bodies over limit bytes fail with ErrBodyTooLarge.
func (f *HTTPFetcher) get(ctx context.Context, rawURL, accept string, limit int64) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, &FetchError{URL: rawURL, Err: eris.Wrap(err, "fetcher: create request")}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept-Language", f.opts.AcceptLanguage)
	req.Header.Set("Accept", accept)

	lim := f.limiterFor(rawURL)
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, nil, &FetchError{URL: rawURL, Err: eris.Wrap(err, "fetcher: rate limiter wait")}
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, &FetchError{URL: rawURL, Err: eris.Wrap(err, "fetcher: do request")}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if lim != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
			lim.OnPushback()
		}
		return resp, nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return resp, nil, &FetchError{URL: rawURL, Err: eris.Wrap(err, "fetcher: read body")}
	}
	if int64(len(body)) > limit {
		return resp, nil, &FetchError{URL: rawURL, Err: eris.Wrapf(ErrBodyTooLarge, "limit %d bytes", limit)}
	}
	if lim != nil {
		lim.OnSuccess()
	}
	return resp, body, nil
}

// Fetch retrieves and parses an HTML page.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (dom.Document, error) {
	resp, body, err := f.get(ctx, rawURL, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8", f.opts.MaxPageBytes)
	if err != nil {
		return nil, err
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		zap.L().Warn("fetcher: page looks like an anti-bot response",
			zap.String("url", rawURL),
			zap.String("block_type", string(kind)),
		)
	}

	decoded, err := decodeCharset(body, f.opts.Charset)
	if err != nil {
		return nil, err
	}

	doc, err := dom.Parse(decoded)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse %s", rawURL)
	}
	return doc, nil
}

// Download retrieves raw bytes, e.g. a gallery image.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (*Download, error) {
	resp, body, err := f.get(ctx, rawURL, "image/avif,image/webp,image/apng,image/*,*/*;q=0.8", f.opts.MaxImageBytes)
	if err != nil {
		return nil, err
	}
	return &Download{
		URL:         rawURL,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// decodeCharset decodes body as charset, ignoring any declared encoding.
func decodeCharset(body []byte, charset string) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(bytes.NewReader(body)), nil
}
