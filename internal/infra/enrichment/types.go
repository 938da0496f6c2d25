// Package enrichment fetches album covers from web services.
package enrichment

import (
	"context"
	"errors"
)

// Common errors
var (
	// ErrArtworkNotFound indicates artwork was not found (permanent failure)
	ErrArtworkNotFound = errors.New("artwork not found")

	// ErrTemporaryFailure indicates a temporary failure (should retry)
	ErrTemporaryFailure = errors.New("temporary failure")

	// ErrRateLimited indicates rate limit was exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrNotConfigured indicates a client is missing credentials
	ErrNotConfigured = errors.New("client not configured")
)

// Source indicates where the artwork was fetched from
type Source string

const (
	SourceCoverArtArchive Source = "cover_art_archive"
	SourceFanartTV        Source = "fanarttv"
	SourceQobuz           Source = "qobuz"
)

// FetchResult contains the result of an artwork fetch operation
type FetchResult struct {
	Data     []byte
	MimeType string
	Source   Source
}

// ArtworkProvider fetches a front cover for a MusicBrainz release
type ArtworkProvider interface {
	FetchAlbumArt(ctx context.Context, mbid string) (*FetchResult, error)
}

// ReleaseGroupProvider is implemented by providers that also serve covers
// for whole release groups.
type ReleaseGroupProvider interface {
	FetchReleaseGroupArt(ctx context.Context, mbid string) (*FetchResult, error)
}

// IsPermanentError returns true if the error indicates a permanent failure
func IsPermanentError(err error) bool {
	return errors.Is(err, ErrArtworkNotFound) || errors.Is(err, ErrNotConfigured)
}

// IsTemporaryError returns true if the error indicates a temporary failure
func IsTemporaryError(err error) bool {
	return errors.Is(err, ErrTemporaryFailure) || errors.Is(err, ErrRateLimited)
}
