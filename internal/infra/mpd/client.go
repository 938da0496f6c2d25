// Package mpd provides a wrapper around the gompd MPD client.
package mpd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

// ErrNoTracks is returned when MPD knows no track of the requested album.
var ErrNoTracks = errors.New("no tracks found in MPD database")

// ErrNoPicture is returned when MPD has no picture for any album track.
var ErrNoPicture = errors.New("no picture available from MPD")

// maxPictureTracks bounds how many tracks of an album are asked for a picture.
const maxPictureTracks = 3

// Client wraps the MPD client with reconnection logic.
type Client struct {
	mu       sync.RWMutex
	client   *mpd.Client
	host     string
	port     int
	password string
}

// NewClient creates a new MPD client wrapper.
func NewClient(host string, port int, password string) *Client {
	return &Client{
		host:     host,
		port:     port,
		password: password,
	}
}

// Connect establishes connection to MPD.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked()
}

// connectLocked establishes connection (must hold lock).
func (c *Client) connectLocked() error {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	log.Info().Str("addr", addr).Msg("Connecting to MPD")

	client, err := mpd.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to MPD: %w", err)
	}

	if c.password != "" {
		if err := client.Command("password %s", c.password).OK(); err != nil {
			client.Close()
			return fmt.Errorf("MPD authentication failed: %w", err)
		}
	}

	c.client = client
	log.Info().Msg("Connected to MPD")
	return nil
}

// ensureConnected checks connection and reconnects if needed.
func (c *Client) ensureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return c.connectLocked()
	}

	// Try a ping to check if connection is alive
	if err := c.client.Ping(); err != nil {
		log.Warn().Err(err).Msg("MPD connection lost, reconnecting...")
		c.client.Close()
		c.client = nil
		return c.connectLocked()
	}

	return nil
}

// Close closes the MPD connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// Ping checks if the connection is alive.
func (c *Client) Ping() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.client == nil {
		return fmt.Errorf("not connected")
	}
	return c.client.Ping()
}

// ReadPicture retrieves embedded album art for a song.
func (c *Client) ReadPicture(uri string) ([]byte, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.client.ReadPicture(uri)
}

// AlbumArt retrieves album art from the music directory (cover.jpg, etc).
func (c *Client) AlbumArt(uri string) ([]byte, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.client.AlbumArt(uri)
}

// FindAlbumTracks finds all tracks for a specific album and optionally album artist.
func (c *Client) FindAlbumTracks(album string, albumArtist string) ([]mpd.Attrs, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	// Format: find album "album name" albumartist "artist name"
	var cmd *mpd.Command
	if albumArtist != "" {
		cmd = c.client.Command("find album %s albumartist %s", album, albumArtist)
	} else {
		cmd = c.client.Command("find album %s", album)
	}

	// AttrsList("file") tells the parser each song starts with "file:" key
	return cmd.AttrsList("file")
}

// findArtistTracks matches on the track artist tag instead of albumartist.
func (c *Client) findArtistTracks(album, artist string) ([]mpd.Attrs, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.client.Command("find album %s artist %s", album, artist).AttrsList("file")
}

// AlbumTrackFiles returns the database URIs of an album's tracks, matching the
// album artist first and the track artist second.
func (c *Client) AlbumTrackFiles(artist, album string) ([]string, error) {
	tracks, err := c.FindAlbumTracks(album, artist)
	if err != nil {
		return nil, fmt.Errorf("find album tracks: %w", err)
	}
	if len(tracks) == 0 && artist != "" {
		tracks, err = c.findArtistTracks(album, artist)
		if err != nil {
			return nil, fmt.Errorf("find artist tracks: %w", err)
		}
	}

	files := make([]string, 0, len(tracks))
	for _, track := range tracks {
		if file := track["file"]; file != "" {
			files = append(files, file)
		}
	}
	return files, nil
}

// FetchCover asks MPD for the album's picture: the embedded picture of one of
// its tracks first, then the cover file MPD finds next to it.
func (c *Client) FetchCover(ctx context.Context, artist, album string, save func(io.Reader) bool, fail func(error)) error {
	files, err := c.AlbumTrackFiles(artist, album)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fail(ErrNoTracks)
		return nil
	}
	if len(files) > maxPictureTracks {
		files = files[:maxPictureTracks]
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := c.picture(file)
		if err != nil {
			log.Debug().Err(err).Str("file", file).Msg("MPD has no picture for track")
			continue
		}

		log.Debug().
			Str("file", file).
			Int("bytes", len(data)).
			Msg("Got cover from MPD")
		save(bytes.NewReader(data))
		return nil
	}

	fail(ErrNoPicture)
	return nil
}

func (c *Client) picture(file string) ([]byte, error) {
	data, err := c.ReadPicture(file)
	if err == nil && len(data) > 0 {
		return data, nil
	}

	data, artErr := c.AlbumArt(file)
	if artErr == nil && len(data) > 0 {
		return data, nil
	}
	if artErr == nil {
		artErr = ErrNoPicture
	}
	return nil, errors.Join(err, artErr)
}
