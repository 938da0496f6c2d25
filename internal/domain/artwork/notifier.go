package artwork

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReadyFunc receives the key of a completed lookup.
type ReadyFunc func(Key)

// Subscription identifies a registered ReadyFunc.
type Subscription struct {
	ID string
}

type subscriber struct {
	id string
	fn ReadyFunc
}

// Notifier fans ready events out to subscribers, in subscription order.
// Subscribers run on the publishing goroutine and should not block.
type Notifier struct {
	mu          sync.RWMutex
	subscribers []subscriber
}

// NewNotifier creates a notifier with no subscribers.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers fn for every ready event.
func (n *Notifier) Subscribe(fn ReadyFunc) Subscription {
	id := uuid.NewString()

	n.mu.Lock()
	n.subscribers = append(n.subscribers, subscriber{id: id, fn: fn})
	n.mu.Unlock()

	return Subscription{ID: id}
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (n *Notifier) Unsubscribe(sub Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, s := range n.subscribers {
		if s.id == sub.ID {
			n.subscribers = append(n.subscribers[:i:i], n.subscribers[i+1:]...)
			return
		}
	}
}

// Publish delivers key to every subscriber. A panicking subscriber is logged
// and does not prevent delivery to the others.
func (n *Notifier) Publish(key Key) {
	n.mu.RLock()
	subs := make([]subscriber, len(n.subscribers))
	copy(subs, n.subscribers)
	n.mu.RUnlock()

	for _, s := range subs {
		deliver(s, key)
	}
}

func deliver(s subscriber, key Key) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Str("subscription", s.id).
				Str("key", key.String()).
				Msg("Artwork ready subscriber panicked")
		}
	}()
	s.fn(key)
}
