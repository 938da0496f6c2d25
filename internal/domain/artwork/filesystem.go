package artwork

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ImageNumPlaceholder is replaced by the 1-based candidate index in
// multi-image download targets.
const ImageNumPlaceholder = "<imagenum>"

// conventionalLocations are checked in order after the configured location.
var conventionalLocations = []Location{
	LocationHomeCovers,
	LocationCover,
	LocationAlbum,
	LocationFolder,
}

// MiscFilenames are other well-known cover names, checked in order.
var MiscFilenames = []string{
	"front.jpg",
	"front.png",
	".folder.jpg",
	".folder.png",
	"AlbumArt.jpg",
	"AlbumArtSmall.jpg",
	"artwork.jpg",
}

// ImageExtensions are the extensions counted by the single-image heuristic.
var ImageExtensions = []string{
	".jpg",
	".jpeg",
	".png",
	".gif",
	".bmp",
	".webp",
}

// LocalResolver walks the local fallback chain for a song directory.
type LocalResolver struct {
	settings SettingsProvider
}

// NewLocalResolver creates a resolver reading its configuration from settings.
func NewLocalResolver(settings SettingsProvider) *LocalResolver {
	return &LocalResolver{settings: settings}
}

// Locate returns the first existing artwork file for the song directory dir
// (relative to the music root), or (LocationNone, "") when every candidate fails.
// Only existence is checked. Order:
//  1. the configured art location
//  2. home covers, cover.jpg, album.jpg, folder.jpg
//  3. the custom filename, when custom mode is configured
//  4. MiscFilenames
//  5. the only image file in the directory, if there is exactly one
func (r *LocalResolver) Locate(dir, artist, album string) (Location, string) {
	s := r.settings.ArtworkSettings()
	p := newDirIndex()

	if pref := r.targetFile(s, s.ArtLocation, dir, artist, album); pref != "" {
		if found := p.exists(pref); found != "" {
			return s.ArtLocation, found
		}
	}

	for _, loc := range conventionalLocations {
		if found := p.exists(r.targetFile(s, loc, dir, artist, album)); found != "" {
			return loc, found
		}
	}

	if s.ArtLocation == LocationCustom && s.CustomFilename != "" {
		if found := p.exists(r.targetFile(s, LocationCustom, dir, artist, album)); found != "" {
			return LocationCustom, found
		}
	}

	songDir := filepath.Join(s.MusicDir, dir)
	for _, name := range MiscFilenames {
		if found := p.exists(filepath.Join(songDir, name)); found != "" {
			return LocationMisc, found
		}
	}

	if found := p.singleImage(songDir); found != "" {
		return LocationSingle, found
	}

	return LocationNone, ""
}

// TargetFile returns the path artwork for the given location kind would be
// stored at. It returns "" for kinds that have no fixed path.
func (r *LocalResolver) TargetFile(loc Location, dir, artist, album string) string {
	return r.targetFile(r.settings.ArtworkSettings(), loc, dir, artist, album)
}

// RemoteTarget returns the destination a downloaded cover is written to: the
// configured location, or home covers when that has no fixed path.
func (r *LocalResolver) RemoteTarget(dir, artist, album string) string {
	s := r.settings.ArtworkSettings()
	if target := r.targetFile(s, s.ArtLocation, dir, artist, album); target != "" {
		return target
	}
	return r.targetFile(s, LocationHomeCovers, dir, artist, album)
}

// CandidateTarget returns the templated destination for multi-image searches.
func (r *LocalResolver) CandidateTarget() string {
	s := r.settings.ArtworkSettings()
	return filepath.Join(s.CoversDir, "temp", ImageNumPlaceholder+".jpg")
}

func (r *LocalResolver) targetFile(s Settings, loc Location, dir, artist, album string) string {
	songDir := filepath.Join(s.MusicDir, dir)

	switch loc {
	case LocationHomeCovers:
		name := fmt.Sprintf("%s-%s.jpg", sanitizeName(artist), sanitizeName(album))
		return filepath.Join(s.CoversDir, name)
	case LocationCover:
		return filepath.Join(songDir, "cover.jpg")
	case LocationAlbum:
		return filepath.Join(songDir, "album.jpg")
	case LocationFolder:
		return filepath.Join(songDir, "folder.jpg")
	case LocationCustom:
		if s.CustomFilename == "" {
			return ""
		}
		return filepath.Join(songDir, s.CustomFilename)
	}
	return ""
}

// sanitizeName strips path separators so a tag value stays one path element.
func sanitizeName(s string) string {
	return strings.ReplaceAll(s, "/", "")
}

// dirIndex answers existence checks, falling back to a case-insensitive match
// within the same directory. Listings are read at most once per directory.
type dirIndex struct {
	listings map[string]map[string]string // dir -> lower(name) -> name
}

func newDirIndex() *dirIndex {
	return &dirIndex{listings: make(map[string]map[string]string)}
}

// exists returns the actual path of a regular file matching path, or "".
func (p *dirIndex) exists(path string) string {
	if path == "" {
		return ""
	}
	if fileExists(path) {
		return path
	}

	dir, name := filepath.Split(path)
	listing := p.listing(filepath.Clean(dir))
	actual, ok := listing[strings.ToLower(name)]
	if !ok {
		return ""
	}
	candidate := filepath.Join(dir, actual)
	if fileExists(candidate) {
		return candidate
	}
	return ""
}

func (p *dirIndex) listing(dir string) map[string]string {
	if l, ok := p.listings[dir]; ok {
		return l
	}

	l := make(map[string]string)
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		log.Debug().Err(err).Str("dir", dir).Msg("Failed to list directory")
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		lower := strings.ToLower(entry.Name())
		if _, dup := l[lower]; !dup {
			l[lower] = entry.Name()
		}
	}
	p.listings[dir] = l
	return l
}

// singleImage returns the directory's only image file, or "".
func (p *dirIndex) singleImage(dir string) string {
	var found string
	count := 0
	for _, name := range p.listing(dir) {
		// Skip macOS AppleDouble resource fork files (._filename)
		if strings.HasPrefix(name, "._") || !isImageFile(name) {
			continue
		}
		count++
		if count > 1 {
			return ""
		}
		found = name
	}
	if count != 1 {
		return ""
	}
	return filepath.Join(dir, found)
}

func isImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, valid := range ImageExtensions {
		if ext == valid {
			return true
		}
	}
	return false
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
