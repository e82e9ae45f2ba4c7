package update

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// latestVersionPlaceholder is replaced by the resolved package version.
const latestVersionPlaceholder = "_latestVersion"

// redirectorURL returns the Bintray URL that redirects to the latest package version.
func (i BintrayInfo) redirectorURL(base string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", base, i.Username, i.Repository, i.PackageName, latestVersionPlaceholder)
}

// downloadTemplate returns the download URL with the version placeholder in it.
func (i BintrayInfo) downloadTemplate(base string) string {
	if strings.Contains(i.Filename, latestVersionPlaceholder) {
		return fmt.Sprintf("%s/%s/%s/%s", base, i.Username, i.Repository, i.Filename)
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s", base, i.Username, i.Repository, latestVersionPlaceholder, i.Filename)
}

func (i BintrayInfo) resolve(ctx context.Context, r *Resolver) (string, error) {
	redirector := i.redirectorURL(r.bintrayURL)

	resp, err := r.fetcher.Get(ctx, redirector)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolution, err)
	}

	// The client follows the redirect, so success shows as a changed URL
	// rather than a 3xx status.
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: Bintray returned status %d for %s", ErrResolution, resp.StatusCode, redirector)
	}
	if resp.FinalURL == redirector {
		return "", fmt.Errorf("%w: Bintray did not redirect %s to a version", ErrResolution, redirector)
	}

	version, err := lastPathSegment(resp.FinalURL)
	if err != nil {
		return "", err
	}

	r.logger.Debug("resolved Bintray version", "package", i.PackageName, "version", version)

	return strings.Replace(i.downloadTemplate(r.bintrayDownloadURL), latestVersionPlaceholder, version, 1), nil
}

func lastPathSegment(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid redirect URL %q: %w", ErrResolution, rawURL, err)
	}

	segment := path.Base(strings.TrimRight(u.Path, "/"))
	if segment == "" || segment == "." || segment == "/" || segment == latestVersionPlaceholder {
		return "", fmt.Errorf("%w: no version in redirect URL %q", ErrResolution, rawURL)
	}
	return segment, nil
}
