package socketio

import (
	"sync"
	"time"

	"github.com/edumarques81/stellar-artwork/internal/domain/artwork"
)

// ReadyDebouncer collapses bursts of artwork ready events into batched
// broadcasts. Every key reported within the window is flushed once, in the
// order it was first seen.
type ReadyDebouncer struct {
	window   time.Duration
	callback func([]artwork.Key)

	mu      sync.Mutex
	pending []artwork.Key
	seen    map[artwork.Key]bool
	timer   *time.Timer
	stopped bool
}

// NewReadyDebouncer creates a debouncer with the given window duration.
func NewReadyDebouncer(window time.Duration, callback func([]artwork.Key)) *ReadyDebouncer {
	return &ReadyDebouncer{
		window:   window,
		callback: callback,
		seen:     make(map[artwork.Key]bool),
	}
}

// Trigger records that key has been resolved. The callback is deferred until
// the window elapses without further triggers.
func (d *ReadyDebouncer) Trigger(key artwork.Key) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if !d.seen[key] {
		d.seen[key] = true
		d.pending = append(d.pending, key)
	}

	// Reset the timer
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush fires the callback for pending keys and resets them.
func (d *ReadyDebouncer) flush() {
	d.mu.Lock()
	keys := d.pending
	d.pending = nil
	d.seen = make(map[artwork.Key]bool)
	stopped := d.stopped
	d.mu.Unlock()

	if len(keys) > 0 && !stopped && d.callback != nil {
		d.callback(keys)
	}
}

// Stop prevents any further callbacks from firing.
func (d *ReadyDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = nil
}
