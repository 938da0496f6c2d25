package artwork_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edumarques81/stellar-artwork/internal/domain/artwork"
)

func TestQueue_PriorityThenFIFO(t *testing.T) {
	q := artwork.NewQueue()
	a := artwork.NewKey("A", "a", "a")
	b := artwork.NewKey("B", "b", "b")
	c := artwork.NewKey("C", "c", "c")
	d := artwork.NewKey("D", "d", "d")

	q.Submit(a, artwork.PriorityDefault)
	q.Submit(b, artwork.PriorityBreadcrumb)
	q.Submit(c, artwork.PriorityDefault)
	q.Submit(d, artwork.PriorityNowPlaying)

	want := []artwork.Key{d, b, a, c}
	ctx := context.Background()
	for i, key := range want {
		req, err := q.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if req.Key != key {
			t.Errorf("Next() #%d = %s, want %s", i, req.Key, key)
		}
	}
}

func TestQueue_Dedup(t *testing.T) {
	q := artwork.NewQueue()
	key := artwork.NewKey("Air", "Moon Safari", "Air/Moon Safari")

	if !q.Submit(key, artwork.PriorityDefault) {
		t.Fatal("First Submit() should queue")
	}
	if q.Submit(key, artwork.PriorityNowPlaying) {
		t.Error("Duplicate Submit() should be ignored")
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}

	req, err := q.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	// First priority wins.
	if req.Priority != artwork.PriorityDefault {
		t.Errorf("Priority = %d, want %d", req.Priority, artwork.PriorityDefault)
	}

	// Still pending while being resolved.
	if q.Submit(key, artwork.PriorityDefault) {
		t.Error("Submit() while in flight should be ignored")
	}
	q.Done(key)
	if q.Pending(key) {
		t.Error("Key should not be pending after Done")
	}
	if !q.Submit(key, artwork.PriorityDefault) {
		t.Error("Submit() after Done should queue again")
	}
}

func TestQueue_NextBlocksUntilSubmit(t *testing.T) {
	q := artwork.NewQueue()
	key := artwork.NewKey("A", "B", "c")

	got := make(chan artwork.Request, 1)
	go func() {
		req, err := q.Next(context.Background())
		if err == nil {
			got <- req
		}
	}()

	select {
	case <-got:
		t.Fatal("Next() returned before anything was submitted")
	case <-time.After(20 * time.Millisecond):
	}

	q.Submit(key, artwork.PriorityDefault)

	select {
	case req := <-got:
		if req.Key != key {
			t.Errorf("Next() = %s, want %s", req.Key, key)
		}
	case <-time.After(time.Second):
		t.Fatal("Next() did not wake up")
	}
}

func TestQueue_NextContextCancelled(t *testing.T) {
	q := artwork.NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := q.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() error = %v, want deadline exceeded", err)
	}
}

func TestQueue_Close(t *testing.T) {
	q := artwork.NewQueue()

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Next(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()
	q.Close() // idempotent

	select {
	case err := <-errCh:
		if !errors.Is(err, artwork.ErrQueueClosed) {
			t.Errorf("Next() error = %v, want ErrQueueClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close() did not wake Next()")
	}

	if q.Submit(artwork.NewKey("A", "B", "c"), artwork.PriorityDefault) {
		t.Error("Submit() after Close should be rejected")
	}
}
