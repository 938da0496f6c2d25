package enrichment

import (
	"bytes"
	"context"
	"io"

	"github.com/rs/zerolog/log"
)

// The FetchCover methods below share one shape: every image found is handed
// to save until it returns false, fail reports a search that found nothing,
// and a returned error is an unexpected fault.

// DefaultReleaseCandidates is how many MusicBrainz releases are inspected per
// album.
const DefaultReleaseCandidates = 5

// coverSink forwards downloads to a save callback and remembers the last
// failure.
type coverSink struct {
	save    func(io.Reader) bool
	saved   int
	lastErr error
}

// offer reports whether the caller should keep looking for images.
func (s *coverSink) offer(ctx context.Context, result *FetchResult, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		if !IsPermanentError(err) {
			s.lastErr = err
		}
		return true
	}
	s.saved++
	return s.save(bytes.NewReader(result.Data))
}

// finish settles the plugin outcome once the search is exhausted.
func (s *coverSink) finish(ctx context.Context, fail func(error)) error {
	if s.saved > 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.lastErr != nil {
		return s.lastErr
	}
	fail(ErrArtworkNotFound)
	return nil
}

// CoverArtFetcher looks albums up on MusicBrainz and downloads their front
// covers from the Cover Art Archive.
type CoverArtFetcher struct {
	mb         *MusicBrainzClient
	covers     ArtworkProvider
	candidates int
}

// NewCoverArtFetcher creates a fetcher over a MusicBrainz client and a cover
// provider, usually a *CAAClient.
func NewCoverArtFetcher(mb *MusicBrainzClient, covers ArtworkProvider) *CoverArtFetcher {
	return &CoverArtFetcher{mb: mb, covers: covers, candidates: DefaultReleaseCandidates}
}

// FetchCover offers the front cover of each matching release. When the
// provider is a ReleaseGroupProvider, a release without its own cover falls
// back once to its release group cover.
func (f *CoverArtFetcher) FetchCover(ctx context.Context, artist, album string, save func(io.Reader) bool, fail func(error)) error {
	releases, err := f.mb.SearchReleases(ctx, artist, album, f.candidates)
	if err != nil {
		return err
	}
	if len(releases) == 0 {
		fail(ErrArtworkNotFound)
		return nil
	}

	groups, _ := f.covers.(ReleaseGroupProvider)
	sink := &coverSink{save: save}
	triedGroups := make(map[string]bool)
	for _, release := range releases {
		result, err := f.covers.FetchAlbumArt(ctx, release.ID)
		if groups != nil && IsPermanentError(err) && release.ReleaseGroup.ID != "" && !triedGroups[release.ReleaseGroup.ID] {
			triedGroups[release.ReleaseGroup.ID] = true
			result, err = groups.FetchReleaseGroupArt(ctx, release.ReleaseGroup.ID)
		}
		if !sink.offer(ctx, result, err) {
			break
		}
	}
	return sink.finish(ctx, fail)
}

// FanartFetcher resolves release groups on MusicBrainz and downloads their
// album covers from Fanart.tv.
type FanartFetcher struct {
	mb     *MusicBrainzClient
	fanart *FanartClient
}

// NewFanartFetcher creates a fetcher from its two clients.
func NewFanartFetcher(mb *MusicBrainzClient, fanart *FanartClient) *FanartFetcher {
	return &FanartFetcher{mb: mb, fanart: fanart}
}

// FetchCover offers Fanart.tv album covers, most liked first.
func (f *FanartFetcher) FetchCover(ctx context.Context, artist, album string, save func(io.Reader) bool, fail func(error)) error {
	if !f.fanart.IsConfigured() {
		fail(ErrNotConfigured)
		return nil
	}

	releases, err := f.mb.SearchReleases(ctx, artist, album, DefaultReleaseCandidates)
	if err != nil {
		return err
	}

	sink := &coverSink{save: save}
	seen := make(map[string]bool)
	for _, release := range releases {
		group := release.ReleaseGroup.ID
		if group == "" || seen[group] {
			continue
		}
		seen[group] = true

		images, err := f.fanart.AlbumCovers(ctx, group)
		if err != nil {
			if !sink.offer(ctx, nil, err) {
				break
			}
			continue
		}
		for _, image := range images {
			result, err := f.fanart.Download(ctx, image)
			if !sink.offer(ctx, result, err) {
				return sink.finish(ctx, fail)
			}
		}
	}
	return sink.finish(ctx, fail)
}

// FetchCover offers the covers of matching Qobuz catalog albums.
func (c *QobuzClient) FetchCover(ctx context.Context, artist, album string, save func(io.Reader) bool, fail func(error)) error {
	matches, err := c.FindAlbums(ctx, artist, album)
	if err != nil {
		if IsPermanentError(err) {
			fail(err)
			return nil
		}
		return err
	}

	sink := &coverSink{save: save}
	for _, match := range matches {
		result, err := c.Download(ctx, match)
		if err != nil {
			log.Debug().Err(err).Str("url", match.ImageURL).Msg("Qobuz cover download failed")
		}
		if !sink.offer(ctx, result, err) {
			break
		}
	}
	return sink.finish(ctx, fail)
}
