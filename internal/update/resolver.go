// Package update turns AppImage update information into a transfer URL.
package update

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
)

// Default provider endpoints.
const (
	DefaultGitHubAPIURL       = "https://api.github.com"
	DefaultBintrayURL         = "https://bintray.com"
	DefaultBintrayDownloadURL = "https://dl.bintray.com"
)

// Resolver resolves update information through provider APIs.
type Resolver struct {
	fetcher            Fetcher
	githubFetcher      Fetcher
	githubAPIURL       string
	bintrayURL         string
	bintrayDownloadURL string
	logger             *log.Logger
}

// ResolverOption configures a Resolver during construction.
type ResolverOption func(*Resolver)

// WithFetcher sets the Fetcher used for all provider requests.
func WithFetcher(f Fetcher) ResolverOption {
	return func(r *Resolver) {
		r.fetcher = f
	}
}

// WithGitHubFetcher sets a separate Fetcher for GitHub API requests,
// e.g. one that carries an access token.
func WithGitHubFetcher(f Fetcher) ResolverOption {
	return func(r *Resolver) {
		r.githubFetcher = f
	}
}

// WithGitHubAPIURL overrides the GitHub API base URL, primarily for test servers.
func WithGitHubAPIURL(base string) ResolverOption {
	return func(r *Resolver) {
		r.githubAPIURL = strings.TrimRight(base, "/")
	}
}

// WithBintrayURLs overrides the Bintray redirector and download base URLs.
func WithBintrayURLs(base, download string) ResolverOption {
	return func(r *Resolver) {
		r.bintrayURL = strings.TrimRight(base, "/")
		r.bintrayDownloadURL = strings.TrimRight(download, "/")
	}
}

// WithLogger sets the logger for resolution diagnostics.
func WithLogger(l *log.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a Resolver talking to the public provider endpoints.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		githubAPIURL:       DefaultGitHubAPIURL,
		bintrayURL:         DefaultBintrayURL,
		bintrayDownloadURL: DefaultBintrayDownloadURL,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fetcher == nil {
		r.fetcher = NewHTTPFetcher(DefaultTimeout)
	}
	if r.githubFetcher == nil {
		r.githubFetcher = r.fetcher
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}
	return r
}

// Resolve parses raw update information and resolves it to a transfer URL.
// On failure the returned Source has KindInvalid and the error wraps ErrResolution.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Source, error) {
	info, err := Parse(raw)
	if err != nil {
		return Source{Kind: KindInvalid}, err
	}

	r.logger.Debug("resolving update information", "type", info.Kind(), "raw", raw)

	transferURL, err := info.resolve(ctx, r)
	if err != nil {
		return Source{Kind: KindInvalid}, err
	}

	u, err := url.Parse(transferURL)
	if err != nil || !u.IsAbs() {
		return Source{Kind: KindInvalid}, fmt.Errorf("%w: %s resolved to non-absolute URL %q", ErrResolution, info.Kind(), transferURL)
	}

	r.logger.Debug("resolved update source", "type", info.Kind(), "url", transferURL)

	return Source{Kind: info.Kind(), TransferURL: transferURL}, nil
}
