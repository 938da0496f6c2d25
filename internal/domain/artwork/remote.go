package artwork

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	natomic "github.com/natefinch/atomic"
	"github.com/rs/zerolog/log"
)

// AllImages is the candidate limit used by the artwork chooser.
const AllImages = 50

// FetchFunc produces cover images for an album. Each image is handed to save,
// which returns whether the fetcher should keep producing more. fail reports
// why the fetcher gave up; it always ends that fetcher's attempt. A returned
// error is an unexpected fault and counts as zero images.
type FetchFunc func(ctx context.Context, artist, album string, save func(io.Reader) bool, fail func(error)) error

// Plugin is a named cover fetcher.
type Plugin struct {
	Name  string
	Fetch FetchFunc
}

// Registry exposes the cover fetchers in the order they should be tried.
type Registry interface {
	CoverFetchers() []Plugin
}

// Plugins is a fixed, ordered Registry.
type Plugins []Plugin

// CoverFetchers implements Registry.
func (p Plugins) CoverFetchers() []Plugin {
	return p
}

// RemoteResolver runs the registered fetchers until one of them saves an image.
type RemoteResolver struct {
	registry    Registry
	stop        atomic.Bool
	downloading atomic.Int32
}

// NewRemoteResolver creates a resolver over registry. A nil registry never
// finds anything.
func NewRemoteResolver(registry Registry) *RemoteResolver {
	if registry == nil {
		registry = Plugins(nil)
	}
	return &RemoteResolver{registry: registry}
}

// StopUpdating asks in-progress multi-image downloads to stop requesting more
// images. It does not abort a download already running.
func (r *RemoteResolver) StopUpdating() {
	r.stop.Store(true)
}

// ResumeUpdating clears the stop flag.
func (r *RemoteResolver) ResumeUpdating() {
	r.stop.Store(false)
}

// Downloading reports whether a remote lookup is running.
func (r *RemoteResolver) Downloading() bool {
	return r.downloading.Load() > 0
}

// Resolve tries every fetcher in order, writing images to dest, and reports
// whether at least one image was saved. With maxImages > 1 each image goes to
// dest with ImageNumPlaceholder replaced by its 1-based index.
func (r *RemoteResolver) Resolve(ctx context.Context, artist, album, dest string, maxImages int) bool {
	return len(r.fetch(ctx, artist, album, dest, maxImages)) > 0
}

// Search fetches up to limit candidates into the templated dest and returns
// the files written, in order.
func (r *RemoteResolver) Search(ctx context.Context, artist, album, dest string, limit int) []string {
	if limit < 1 {
		limit = AllImages
	}
	if limit > 1 && !strings.Contains(dest, ImageNumPlaceholder) {
		ext := filepath.Ext(dest)
		dest = strings.TrimSuffix(dest, ext) + "-" + ImageNumPlaceholder + ext
	}
	return r.fetch(ctx, artist, album, dest, limit)
}

func (r *RemoteResolver) fetch(ctx context.Context, artist, album, dest string, maxImages int) []string {
	r.downloading.Add(1)
	defer r.downloading.Add(-1)

	d := &downloader{
		dest:      dest,
		maxImages: max(maxImages, 1),
		stop:      &r.stop,
		ctx:       ctx,
	}

	for _, plugin := range r.registry.CoverFetchers() {
		if ctx.Err() != nil {
			break
		}

		log.Info().
			Str("plugin", plugin.Name).
			Str("artist", artist).
			Str("album", album).
			Msg("Looking for covers")

		before := d.count()
		if err := runPlugin(ctx, plugin, artist, album, d); err != nil {
			log.Warn().Err(err).Str("plugin", plugin.Name).Msg("Error while downloading covers")
		}
		d.close()

		if d.count() > before {
			log.Debug().
				Str("plugin", plugin.Name).
				Int("images", d.count()-before).
				Msg("Covers downloaded")
		}
		if d.count() > 0 {
			break
		}
		d.reopen()
	}

	return d.files()
}

// runPlugin invokes one fetcher, converting a panic into an error.
func runPlugin(ctx context.Context, plugin Plugin, artist, album string, d *downloader) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("plugin %s panicked: %v", plugin.Name, rec)
		}
	}()

	if plugin.Fetch == nil {
		return fmt.Errorf("plugin %s has no fetch function", plugin.Name)
	}

	fail := func(reason error) {
		d.close()
		log.Debug().Err(reason).Str("plugin", plugin.Name).Msg("Fetcher gave up")
	}
	return plugin.Fetch(ctx, artist, album, d.save, fail)
}

// downloader writes the images a fetcher produces.
type downloader struct {
	mu        sync.Mutex
	dest      string
	maxImages int
	stop      *atomic.Bool
	ctx       context.Context
	written   []string
	closed    bool
}

// save copies one image to its destination and reports whether more are
// wanted. Once it has answered false, later calls are ignored.
func (d *downloader) save(content io.Reader) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	more := d.saveLocked(content)
	if !more {
		d.closed = true
	}
	return more
}

func (d *downloader) saveLocked(content io.Reader) bool {
	if len(d.written) >= d.maxImages {
		return false
	}

	path := d.dest
	if d.maxImages > 1 {
		path = strings.ReplaceAll(d.dest, ImageNumPlaceholder, strconv.Itoa(len(d.written)+1))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to create artwork directory")
		return false
	}
	if err := natomic.WriteFile(path, content); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to write artwork file")
		return false
	}
	d.written = append(d.written, path)

	if d.maxImages == 1 || len(d.written) >= d.maxImages {
		return false
	}
	if d.stop.Load() || d.ctx.Err() != nil {
		return false
	}
	return true
}

// close rejects further saves from the current fetcher.
func (d *downloader) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

func (d *downloader) reopen() {
	d.mu.Lock()
	d.closed = false
	d.mu.Unlock()
}

func (d *downloader) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.written)
}

func (d *downloader) files() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.written...)
}
