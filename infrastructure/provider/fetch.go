package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Fetcher defaults.
const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxBodyBytes = 32 << 20
)

// ErrFetch indicates a remote image could not be downloaded.
var ErrFetch = errors.New("fetch failed")

// HTTPFetcher downloads remote images with a bounded timeout.
type HTTPFetcher struct {
	client  *http.Client
	maxBody int64
	logger  *slog.Logger
}

// FetchOption is a functional option for HTTPFetcher.
type FetchOption func(*HTTPFetcher)

// WithFetchTimeout sets the per-request timeout.
func WithFetchTimeout(d time.Duration) FetchOption {
	return func(f *HTTPFetcher) { f.client.Timeout = d }
}

// WithTransport sets the round tripper, e.g. a CachingTransport.
func WithTransport(rt http.RoundTripper) FetchOption {
	return func(f *HTTPFetcher) { f.client.Transport = rt }
}

// WithMaxBodyBytes caps the size of a downloaded image.
func WithMaxBodyBytes(n int64) FetchOption {
	return func(f *HTTPFetcher) { f.maxBody = n }
}

// WithFetchLogger sets the logger.
func WithFetchLogger(l *slog.Logger) FetchOption {
	return func(f *HTTPFetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts ...FetchOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:  &http.Client{Timeout: DefaultFetchTimeout},
		maxBody: DefaultMaxBodyBytes,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the body of a GET to url. Non-2xx responses and bodies
// over the size cap are errors wrapping ErrFetch.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, url, err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %w", ErrFetch, url, err)
	}
	if int64(len(data)) > f.maxBody {
		return nil, fmt.Errorf("%w: %s: body exceeds %d bytes", ErrFetch, url, f.maxBody)
	}

	f.logger.Debug("fetched image",
		slog.String("url", url),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", time.Since(start)),
	)
	return data, nil
}
