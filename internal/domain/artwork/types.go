// Package artwork resolves cover art for album identities and keeps the
// results in a durable cache.
package artwork

import (
	"errors"
	"fmt"
)

var (
	// ErrNoArtwork is returned when no artwork is found.
	ErrNoArtwork = errors.New("no artwork found")

	// ErrQueueClosed is returned by Queue.Next once the queue has been closed.
	ErrQueueClosed = errors.New("request queue closed")

	// ErrCoversDisabled is returned by operations that need covers enabled.
	ErrCoversDisabled = errors.New("covers disabled")
)

// Key identifies one artwork lookup target. Two songs sharing artist, album
// and directory share one cache entry and one in-flight request.
type Key struct {
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Path   string `json:"path"` // song directory relative to the music root
}

// NewKey builds a Key.
func NewKey(artist, album, path string) Key {
	return Key{Artist: artist, Album: album, Path: path}
}

// IsZero reports whether the key carries neither artist nor album.
func (k Key) IsZero() bool {
	return k.Artist == "" && k.Album == ""
}

func (k Key) String() string {
	return fmt.Sprintf("%s - %s (%s)", k.Artist, k.Album, k.Path)
}

// Record is one cache entry as handed to a durable store. An empty File is a
// negative entry: resolution was attempted and no artwork exists.
type Record struct {
	Key  Key
	File string
}

// Found reports whether the record points at a file.
func (r Record) Found() bool {
	return r.File != ""
}

// Store persists the full cache mapping. Load and Save are wholesale.
type Store interface {
	Load() ([]Record, error)
	Save(records []Record) error
}

// Request is a queued lookup.
type Request struct {
	Key      Key
	Priority int
	seq      uint64
}

// Priorities used by callers. Lower values are served first.
const (
	PriorityNowPlaying = 0
	PriorityBreadcrumb = 9
	PriorityDefault    = 10
)

// Location identifies which step of the local fallback chain produced a file.
type Location int

const (
	LocationNone Location = iota
	LocationHomeCovers
	LocationCover
	LocationAlbum
	LocationFolder
	LocationCustom
	LocationMisc
	LocationSingle
)

var locationNames = map[Location]string{
	LocationNone:       "none",
	LocationHomeCovers: "homecovers",
	LocationCover:      "cover",
	LocationAlbum:      "album",
	LocationFolder:     "folder",
	LocationCustom:     "custom",
	LocationMisc:       "misc",
	LocationSingle:     "single",
}

func (l Location) String() string {
	if name, ok := locationNames[l]; ok {
		return name
	}
	return fmt.Sprintf("location(%d)", int(l))
}

// ParseLocation maps a configured location name to a Location. Only the kinds
// a user can choose as a save target are accepted.
func ParseLocation(name string) (Location, error) {
	switch name {
	case "homecovers", "":
		return LocationHomeCovers, nil
	case "cover":
		return LocationCover, nil
	case "album":
		return LocationAlbum, nil
	case "folder":
		return LocationFolder, nil
	case "custom":
		return LocationCustom, nil
	}
	return LocationNone, fmt.Errorf("unknown art location %q", name)
}

// Settings is the read-only configuration the engine consumes.
type Settings struct {
	MusicDir       string   // active music root
	CoversDir      string   // home covers directory (e.g. ~/.covers)
	ArtLocation    Location // preferred save/lookup location
	CustomFilename string   // used when ArtLocation is LocationCustom
	CoversEnabled  bool
	MaxImages      int // candidates fetched by the chooser flow
}

// SettingsProvider supplies the current settings. It is consulted on every
// lookup so configuration changes apply to subsequent requests.
type SettingsProvider interface {
	ArtworkSettings() Settings
}

// FixedSettings is a SettingsProvider that never changes.
type FixedSettings Settings

// ArtworkSettings implements SettingsProvider.
func (s FixedSettings) ArtworkSettings() Settings {
	return Settings(s)
}
