package update

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// downloadURLMarker identifies asset URL lines in a GitHub release response.
const downloadURLMarker = "browser_download_url"

// releaseURL returns the GitHub API URL for the configured tag.
// Any tag mentioning "latest" selects the latest release.
func (i GitHubReleasesInfo) releaseURL(apiBase string) string {
	base := fmt.Sprintf("%s/repos/%s/%s/releases/", apiBase, i.Username, i.Repository)
	if strings.Contains(i.Tag, "latest") {
		return base + "latest"
	}
	return base + "tags/" + i.Tag
}

func (i GitHubReleasesInfo) resolve(ctx context.Context, r *Resolver) (string, error) {
	releaseURL := i.releaseURL(r.githubAPIURL)

	resp, err := r.githubFetcher.Get(ctx, releaseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolution, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: GitHub API returned status %d for %s", ErrResolution, resp.StatusCode, releaseURL)
	}

	// The filename may contain shell wildcards; it is matched against the
	// whole response line, so it is wrapped in '*' on both sides.
	pattern, err := glob.Compile("*" + literalBraces(i.Filename) + "*")
	if err != nil {
		return "", fmt.Errorf("%w: invalid filename pattern %q: %w", ErrResolution, i.Filename, err)
	}

	assetURL := matchDownloadURL(resp.Body, pattern)
	if assetURL == "" {
		return "", fmt.Errorf("%w: no release asset matches %q", ErrResolution, i.Filename)
	}

	r.logger.Debug("matched release asset", "pattern", i.Filename, "url", assetURL)

	return assetURL, nil
}

// literalBraces escapes '{' and '}' so they match themselves, as in
// fnmatch, instead of starting a glob alternation.
func literalBraces(pattern string) string {
	return strings.NewReplacer("{", `\{`, "}", `\}`).Replace(pattern)
}

// matchDownloadURL scans a release response line by line and returns the URL
// of the last download line matching pattern. The response is not parsed as
// JSON; this relies on the API's one-field-per-line formatting.
func matchDownloadURL(body []byte, pattern glob.Glob) string {
	var match string

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 64*1024), maxResponseBytes)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, downloadURLMarker) {
			continue
		}
		if !pattern.Match(line) {
			continue
		}
		if u := lastQuoted(line); u != "" {
			match = u
		}
	}

	return match
}

// lastQuoted returns the last complete double-quoted string on a line.
func lastQuoted(line string) string {
	parts := strings.Split(line, `"`)
	// Quoted strings sit at odd indexes; a trailing odd part has no closing quote.
	last := len(parts) - 2
	if last%2 == 0 {
		last--
	}
	if last < 1 {
		return ""
	}
	return parts[last]
}
