package update

import (
	"context"
	"errors"
)

// ErrResolution is wrapped by every resolution failure.
var ErrResolution = errors.New("failed to resolve update information")

// Kind identifies the provider an update Source was resolved from.
type Kind int

const (
	KindInvalid Kind = iota
	KindGeneric
	KindGitHubReleases
	KindBintray
)

// String returns the update information type name for the kind.
func (k Kind) String() string {
	switch k {
	case KindGeneric:
		return "zsync"
	case KindGitHubReleases:
		return "gh-releases-zsync"
	case KindBintray:
		return "bintray-zsync"
	default:
		return "invalid"
	}
}

// MarshalText renders the kind by name in JSON and YAML output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Source is a resolved transfer endpoint.
// Only valid kinds carry a TransferURL.
type Source struct {
	Kind        Kind   `json:"kind" yaml:"kind"`
	TransferURL string `json:"transfer_url,omitempty" yaml:"transfer_url,omitempty"`
}

// Valid reports whether the source can be transferred from.
func (s Source) Valid() bool {
	return s.Kind != KindInvalid && s.TransferURL != ""
}

// Info is parsed, unresolved update information.
// Implementations: ZsyncInfo, GitHubReleasesInfo, BintrayInfo.
type Info interface {
	Kind() Kind
	resolve(ctx context.Context, r *Resolver) (string, error)
}

// ZsyncInfo points directly at a zsync control file.
type ZsyncInfo struct {
	URL string
}

// GitHubReleasesInfo selects a release asset by tag and filename pattern.
type GitHubReleasesInfo struct {
	Username   string
	Repository string
	Tag        string
	Filename   string
}

// BintrayInfo selects the latest version of a Bintray package.
type BintrayInfo struct {
	Username    string
	Repository  string
	PackageName string
	Filename    string
}

func (ZsyncInfo) Kind() Kind          { return KindGeneric }
func (GitHubReleasesInfo) Kind() Kind { return KindGitHubReleases }
func (BintrayInfo) Kind() Kind        { return KindBintray }
