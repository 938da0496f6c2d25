// Package tagart extracts cover pictures embedded in audio file tags.
package tagart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/rs/zerolog/log"
)

// ErrNoPicture is returned when none of an album's tracks embeds a picture.
var ErrNoPicture = errors.New("no embedded picture")

// DefaultMaxTracks bounds how many tracks are opened per album.
const DefaultMaxTracks = 4

// audioExtensions are the files worth opening for tags.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".mp4":  true,
	".ogg":  true,
	".opus": true,
	".dsf":  true,
}

// TrackFinder lists an album's tracks relative to the music root.
type TrackFinder interface {
	AlbumTrackFiles(artist, album string) ([]string, error)
}

// Fetcher reads embedded pictures from an album's tracks.
type Fetcher struct {
	finder    TrackFinder
	musicDir  func() string
	maxTracks int
}

// NewFetcher creates a fetcher. musicDir returns the current music root that
// finder paths are relative to.
func NewFetcher(finder TrackFinder, musicDir func() string) *Fetcher {
	return &Fetcher{
		finder:    finder,
		musicDir:  musicDir,
		maxTracks: DefaultMaxTracks,
	}
}

// FetchCover hands the first embedded picture found to save.
func (f *Fetcher) FetchCover(ctx context.Context, artist, album string, save func(io.Reader) bool, fail func(error)) error {
	files, err := f.finder.AlbumTrackFiles(artist, album)
	if err != nil {
		return fmt.Errorf("list album tracks: %w", err)
	}

	root := f.musicDir()
	tried := 0
	for _, file := range files {
		if tried >= f.maxTracks {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !audioExtensions[strings.ToLower(filepath.Ext(file))] {
			continue
		}
		tried++

		path := filepath.Join(root, file)
		data, err := ReadPicture(path)
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("No embedded picture")
			continue
		}

		log.Debug().
			Str("path", path).
			Int("bytes", len(data)).
			Msg("Found embedded picture")
		save(bytes.NewReader(data))
		return nil
	}

	fail(ErrNoPicture)
	return nil
}

// ReadPicture returns the picture embedded in the audio file at path.
func ReadPicture(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	picture := metadata.Picture()
	if picture == nil || len(picture.Data) == 0 {
		return nil, ErrNoPicture
	}
	return picture.Data, nil
}
