package update

import (
	"context"
	"fmt"
	"strings"
)

// Parse splits raw update information into its provider variant.
//
// Supported formats:
//   - zsync|<url>
//   - gh-releases-zsync|<username>|<repository>|<tag>|<filename pattern>
//   - bintray-zsync|<username>|<repository>|<package>|<filename>
func Parse(raw string) (Info, error) {
	parts := strings.Split(raw, "|")

	switch parts[0] {
	case "zsync":
		if len(parts) != 2 {
			return nil, tokenCountError(parts, 2)
		}
		return ZsyncInfo{URL: parts[1]}, nil

	case "gh-releases-zsync":
		if len(parts) != 5 {
			return nil, tokenCountError(parts, 5)
		}
		return GitHubReleasesInfo{
			Username:   parts[1],
			Repository: parts[2],
			Tag:        parts[3],
			Filename:   parts[4],
		}, nil

	case "bintray-zsync":
		if len(parts) != 5 {
			return nil, tokenCountError(parts, 5)
		}
		return BintrayInfo{
			Username:    parts[1],
			Repository:  parts[2],
			PackageName: parts[3],
			Filename:    parts[4],
		}, nil

	case "":
		return nil, fmt.Errorf("%w: no update information", ErrResolution)

	default:
		return nil, fmt.Errorf("%w: unknown update information type %q", ErrResolution, parts[0])
	}
}

func tokenCountError(parts []string, want int) error {
	return fmt.Errorf("%w: %s expects %d fields, got %d", ErrResolution, parts[0], want, len(parts))
}

func (i ZsyncInfo) resolve(ctx context.Context, r *Resolver) (string, error) {
	return i.URL, nil
}
