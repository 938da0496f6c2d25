package artwork

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	natomic "github.com/natefinch/atomic"
	"github.com/rs/zerolog/log"
)

// DefaultAutosaveInterval is how often a dirty cache is written back while
// the service runs.
const DefaultAutosaveInterval = 30 * time.Second

// Service ties the cache, queue, resolvers, worker and notifier together and
// is the entry point used by the transports.
type Service struct {
	settings SettingsProvider
	cache    *Cache
	queue    *Queue
	local    *LocalResolver
	remote   *RemoteResolver
	notifier *Notifier
	worker   *Worker
	autosave time.Duration
	loaded   chan struct{}
	loadOnce sync.Once
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAutosave sets the autosave interval. Zero disables periodic saves; the
// cache is still written when Run returns.
func WithAutosave(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.autosave = d
	}
}

// WithNotifier makes the service publish on an existing notifier.
func WithNotifier(n *Notifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// NewService creates a service. store may be nil for an in-memory cache and
// registry may be nil when no remote fetchers are configured.
func NewService(settings SettingsProvider, store Store, registry Registry, opts ...ServiceOption) *Service {
	s := &Service{
		settings: settings,
		cache:    NewCache(store),
		queue:    NewQueue(),
		local:    NewLocalResolver(settings),
		remote:   NewRemoteResolver(registry),
		notifier: NewNotifier(),
		autosave: DefaultAutosaveInterval,
		loaded:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.worker = NewWorker(s.queue, s.cache, s.local, s.remote, s.notifier)
	return s
}

// Cache returns the underlying cache.
func (s *Service) Cache() *Cache { return s.cache }

// Notifier returns the notifier ready events are published on.
func (s *Service) Notifier() *Notifier { return s.notifier }

// Remote returns the remote resolver.
func (s *Service) Remote() *RemoteResolver { return s.remote }

// Loaded is closed once Run has loaded the cache from the durable store.
func (s *Service) Loaded() <-chan struct{} { return s.loaded }

// Lookup returns the cached result for key. ok reports whether the key has
// been resolved; a resolved key with an empty file has no artwork. An
// unresolved key is queued at priority and a ready event follows once the
// worker is done with it.
func (s *Service) Lookup(key Key, priority int) (file string, ok bool) {
	if !s.settings.ArtworkSettings().CoversEnabled || key.IsZero() {
		return "", false
	}

	if file, ok := s.cache.Get(key); ok {
		return file, true
	}

	if s.queue.Submit(key, priority) {
		log.Debug().Str("key", key.String()).Int("priority", priority).Msg("Artwork lookup queued")
	}
	return "", false
}

// Refresh drops any cached result for key and queues a fresh lookup. It
// reports whether a request was queued; a key already pending is left alone.
func (s *Service) Refresh(key Key, priority int) bool {
	if !s.settings.ArtworkSettings().CoversEnabled || key.IsZero() {
		return false
	}
	if s.queue.Pending(key) {
		return false
	}
	s.cache.Forget(key)
	return s.queue.Submit(key, priority)
}

// Reset clears the artwork for key: the configured and home covers files are
// removed and replaced by a zero-length home covers placeholder, which later
// lookups treat as "no artwork" without going remote.
func (s *Service) Reset(key Key) error {
	if key.IsZero() {
		return ErrNoArtwork
	}

	for _, loc := range []Location{s.settings.ArtworkSettings().ArtLocation, LocationHomeCovers} {
		target := s.local.TargetFile(loc, key.Path, key.Artist, key.Album)
		if target == "" {
			continue
		}
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", target).Msg("Failed to remove artwork file")
		}
	}

	placeholder := s.local.TargetFile(LocationHomeCovers, key.Path, key.Artist, key.Album)
	if err := os.MkdirAll(filepath.Dir(placeholder), 0755); err != nil {
		return fmt.Errorf("failed to create covers directory: %w", err)
	}
	if err := os.WriteFile(placeholder, nil, 0644); err != nil {
		return fmt.Errorf("failed to write artwork placeholder: %w", err)
	}

	s.cache.Put(key, "")
	s.notifier.Publish(key)

	log.Info().Str("key", key.String()).Msg("Artwork reset")
	return nil
}

// Search downloads up to limit candidate images for key into the covers temp
// directory and returns their paths. limit <= 0 uses the configured maximum.
// Candidates from a previous search are removed first.
func (s *Service) Search(ctx context.Context, key Key, limit int) ([]string, error) {
	settings := s.settings.ArtworkSettings()
	if !settings.CoversEnabled {
		return nil, ErrCoversDisabled
	}
	if limit <= 0 {
		limit = settings.MaxImages
	}
	if limit <= 0 {
		limit = AllImages
	}

	dest := s.local.CandidateTarget()
	clearCandidates(filepath.Dir(dest))
	s.remote.ResumeUpdating()

	files := s.remote.Search(ctx, key.Artist, key.Album, dest, limit)
	if len(files) == 0 {
		return nil, ErrNoArtwork
	}
	return files, nil
}

// StopSearch makes a running Search return with the candidates saved so far.
// The next Search clears the request.
func (s *Service) StopSearch() {
	s.remote.StopUpdating()
	log.Debug().Msg("Artwork search stop requested")
}

// CoversEnabled reports whether lookups are served at all.
func (s *Service) CoversEnabled() bool {
	return s.settings.ArtworkSettings().CoversEnabled
}

// Choose installs candidate as the artwork for key at the configured location
// and records it in the cache.
func (s *Service) Choose(key Key, candidate string) error {
	if Inspect(candidate) != VerdictValid {
		return fmt.Errorf("candidate %s: %w", candidate, ErrNoArtwork)
	}

	src, err := os.Open(candidate)
	if err != nil {
		return fmt.Errorf("failed to open candidate: %w", err)
	}
	defer src.Close()

	dest := s.local.RemoteTarget(key.Path, key.Artist, key.Album)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create artwork directory: %w", err)
	}
	if err := natomic.WriteFile(dest, src); err != nil {
		return fmt.Errorf("failed to write artwork: %w", err)
	}

	s.cache.Put(key, dest)
	s.notifier.Publish(key)

	log.Info().Str("key", key.String()).Str("path", dest).Msg("Artwork chosen")
	return nil
}

// Stats summarises the engine state.
type Stats struct {
	Worker      WorkerStats `json:"worker"`
	Entries     int         `json:"entries"`
	Queued      int         `json:"queued"`
	Downloading bool        `json:"downloading"`
	Dirty       bool        `json:"dirty"`
	Running     bool        `json:"running"`
}

// Stats returns a snapshot of the engine state.
func (s *Service) Stats() Stats {
	return Stats{
		Worker:      s.worker.Stats(),
		Entries:     s.cache.Len(),
		Queued:      s.queue.Len(),
		Downloading: s.remote.Downloading(),
		Dirty:       s.cache.Dirty(),
		Running:     s.worker.IsRunning(),
	}
}

// Run loads the cache, runs the worker and autosaves until ctx is cancelled.
// The cache is saved one last time before Run returns.
func (s *Service) Run(ctx context.Context) error {
	s.cache.Load()
	s.loadOnce.Do(func() { close(s.loaded) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.worker.Start(ctx)
	}()

	var tick <-chan time.Time
	if s.autosave > 0 {
		ticker := time.NewTicker(s.autosave)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.worker.Stop()
			<-done
			s.queue.Close()
			if err := s.cache.Save(); err != nil {
				return fmt.Errorf("failed to save artwork cache: %w", err)
			}
			return nil
		case <-tick:
			_ = s.cache.Save()
		}
	}
}

// clearCandidates removes image files left in the candidate directory.
func clearCandidates(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isImageFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Debug().Err(err).Str("path", path).Msg("Failed to remove old candidate")
		}
	}
}
