package artwork

import (
	"container/heap"
	"context"
	"sync"
)

// Queue is a priority queue of pending lookups with in-flight deduplication.
// A key stays pending from Submit until Done, so a lookup that is already
// being resolved is never scheduled twice.
type Queue struct {
	mu      sync.Mutex
	items   requestHeap
	pending map[Key]int
	seq     uint64
	wake    chan struct{}
	closed  bool
	done    chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		pending: make(map[Key]int),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Submit schedules key at priority and reports whether a new request was
// queued. A key that is already pending is left untouched: the first
// priority wins.
func (q *Queue) Submit(key Key, priority int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if _, ok := q.pending[key]; ok {
		return false
	}

	q.seq++
	q.pending[key] = priority
	heap.Push(&q.items, Request{Key: key, Priority: priority, seq: q.seq})

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until a request is available and returns the one with the
// lowest priority value, oldest first among equals. The key remains pending
// until Done is called.
func (q *Queue) Next(ctx context.Context) (Request, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return Request{}, ErrQueueClosed
		}
		if q.items.Len() > 0 {
			req := heap.Pop(&q.items).(Request)
			q.mu.Unlock()
			return req, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Request{}, ctx.Err()
		case <-q.done:
			return Request{}, ErrQueueClosed
		case <-q.wake:
		}
	}
}

// Done marks key as no longer pending.
func (q *Queue) Done(key Key) {
	q.mu.Lock()
	delete(q.pending, key)
	q.mu.Unlock()
}

// Pending reports whether key is queued or being resolved.
func (q *Queue) Pending(key Key) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[key]
	return ok
}

// Len returns the number of requests waiting to be dequeued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close wakes any blocked Next and rejects further submissions.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// requestHeap orders by (priority, seq).
type requestHeap []Request

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) { *h = append(*h, x.(Request)) }

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
