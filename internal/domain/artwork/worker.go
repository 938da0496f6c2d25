package artwork

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// maxCorruptRemovals bounds how many corrupt files one lookup deletes before
// giving up on local artwork.
const maxCorruptRemovals = 8

// Worker drains the request queue on a single goroutine. For each request it
// consults the cache, walks the local fallback chain, falls back to the remote
// fetchers, records the result and publishes a ready event.
type Worker struct {
	queue    *Queue
	cache    *Cache
	local    *LocalResolver
	remote   *RemoteResolver
	notifier *Notifier

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	stats   workerStats
}

// WorkerStats are cumulative counters since the worker was created.
type WorkerStats struct {
	Processed int64 `json:"processed"`
	Found     int64 `json:"found"`
	NotFound  int64 `json:"notFound"`
	Skipped   int64 `json:"skipped"` // already resolved when dequeued
	Faults    int64 `json:"faults"`
	Corrupt   int64 `json:"corrupt"`   // corrupt files removed
	Cancelled int64 `json:"cancelled"` // interrupted by shutdown
}

type workerStats struct {
	processed, found, notFound, skipped, faults, corrupt, cancelled atomic.Int64
}

// NewWorker creates a worker. notifier may be nil.
func NewWorker(queue *Queue, cache *Cache, local *LocalResolver, remote *RemoteResolver, notifier *Notifier) *Worker {
	if notifier == nil {
		notifier = NewNotifier()
	}
	return &Worker{
		queue:    queue,
		cache:    cache,
		local:    local,
		remote:   remote,
		notifier: notifier,
		stopCh:   make(chan struct{}),
	}
}

// Start processes requests until ctx is cancelled, Stop is called or the
// queue is closed. It blocks.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Info().Msg("Artwork worker started")

	for {
		req, err := w.queue.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, ErrQueueClosed):
				log.Info().Msg("Artwork worker stopping (queue closed)")
			default:
				log.Info().Msg("Artwork worker stopping (context cancelled)")
			}
			return
		}
		w.process(ctx, req)
	}
}

// Stop stops the worker. A remote lookup in progress is interrupted and its
// key is left unresolved.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		select {
		case <-w.stopCh:
		default:
			close(w.stopCh)
		}
	}
}

// IsRunning returns whether the worker loop is active.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stats returns a snapshot of the worker counters.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Processed: w.stats.processed.Load(),
		Found:     w.stats.found.Load(),
		NotFound:  w.stats.notFound.Load(),
		Skipped:   w.stats.skipped.Load(),
		Faults:    w.stats.faults.Load(),
		Corrupt:   w.stats.corrupt.Load(),
		Cancelled: w.stats.cancelled.Load(),
	}
}

// process resolves one request. The key leaves the pending set only after the
// cache is updated and the ready event has been published.
func (w *Worker) process(ctx context.Context, req Request) {
	key := req.Key
	defer w.queue.Done(key)
	defer func() {
		if rec := recover(); rec != nil {
			w.stats.faults.Add(1)
			log.Error().
				Interface("panic", rec).
				Str("key", key.String()).
				Msg("Artwork lookup failed")
		}
	}()

	w.stats.processed.Add(1)
	log.Info().
		Str("artist", key.Artist).
		Str("album", key.Album).
		Int("priority", req.Priority).
		Msg("Getting artwork")

	// A duplicate request at a better priority may already have resolved it.
	if _, ok := w.cache.Get(key); ok {
		w.stats.skipped.Add(1)
		w.notifier.Publish(key)
		return
	}

	file, outcome := w.findLocal(key)
	if outcome == localMissing {
		dest := w.local.RemoteTarget(key.Path, key.Artist, key.Album)
		if w.remote.Resolve(ctx, key.Artist, key.Album, dest, 1) {
			log.Debug().Str("key", key.String()).Str("dest", dest).Msg("Remote artwork saved")
		}
		file, _ = w.findLocal(key)

		// An interrupted remote lookup proves nothing; leave the key unresolved.
		if file == "" && ctx.Err() != nil {
			w.stats.cancelled.Add(1)
			log.Info().Str("key", key.String()).Msg("Artwork lookup interrupted, not recorded")
			return
		}
	}

	if file != "" {
		w.stats.found.Add(1)
	} else {
		w.stats.notFound.Add(1)
	}

	w.cache.Put(key, file)
	w.notifier.Publish(key)

	log.Debug().
		Str("key", key.String()).
		Str("path", file).
		Bool("found", file != "").
		Msg("Artwork resolved")
}

type localOutcome int

const (
	localMissing localOutcome = iota
	localFound
	localBlank
)

// findLocal locates and validates local artwork. A zero-length file is a
// deliberate blank; a non-empty file that does not decode is removed and the
// chain is walked again.
func (w *Worker) findLocal(key Key) (string, localOutcome) {
	for removed := 0; removed <= maxCorruptRemovals; removed++ {
		loc, file := w.local.Locate(key.Path, key.Artist, key.Album)
		if file == "" {
			return "", localMissing
		}

		switch Inspect(file) {
		case VerdictValid:
			log.Debug().Str("location", loc.String()).Str("path", file).Msg("Found local artwork")
			return file, localFound
		case VerdictBlank:
			log.Debug().Str("path", file).Msg("Artwork cleared by user")
			return "", localBlank
		case VerdictCorrupt:
			w.stats.corrupt.Add(1)
			log.Warn().Str("path", file).Msg("Removing corrupt artwork file")
			if err := os.Remove(file); err != nil {
				log.Warn().Err(err).Str("path", file).Msg("Failed to remove corrupt artwork file")
				return "", localMissing
			}
		default:
			// Possibly still being written; not found for now.
			return "", localMissing
		}
	}
	return "", localMissing
}
