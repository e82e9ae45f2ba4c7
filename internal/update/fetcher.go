package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds a single provider API request.
	DefaultTimeout = 30 * time.Second

	// maxResponseBytes caps provider API responses (10 MB).
	maxResponseBytes = 10 << 20
)

// Response is the part of an HTTP response the resolver looks at.
type Response struct {
	StatusCode int
	// FinalURL is the URL of the last request after following redirects.
	FinalURL string
	Body     []byte
}

// Fetcher performs GET requests.
type Fetcher interface {
	Get(ctx context.Context, url string) (*Response, error)
}

// HTTPFetcher is the default Fetcher, backed by net/http.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	headers   map[string]string
}

// FetcherOption configures an HTTPFetcher during construction.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy configurations.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.headers[key] = value
	}
}

// NewHTTPFetcher creates an HTTPFetcher with the given request timeout.
// A zero timeout uses DefaultTimeout.
func NewHTTPFetcher(timeout time.Duration, opts ...FetcherOption) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	f := &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: "appimageupdate/dev",
		headers:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get issues a GET request, following redirects, and reads the whole body.
// Non-2xx statuses are not errors; callers inspect StatusCode.
func (f *HTTPFetcher) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		Body:       body,
	}, nil
}
