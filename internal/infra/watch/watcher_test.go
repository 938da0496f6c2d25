package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestWatcher_ReportsChangedDirectory(t *testing.T) {
	root := t.TempDir()
	album := filepath.Join(root, "Air", "Moon Safari")
	if err := os.MkdirAll(album, 0755); err != nil {
		t.Fatal(err)
	}

	changed := make(chan string, 16)
	w, err := New(root, func(dir string) { changed <- dir }, WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give Run time to register the watches.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(album, "cover.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	want := filepath.Join("Air", "Moon Safari")
	deadline := time.After(5 * time.Second)
	for {
		select {
		case dir := <-changed:
			if dir == want {
				return
			}
		case <-deadline:
			t.Fatalf("no change reported for %s", want)
		}
	}
}

func TestWatcher_MissingRoot(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"), func(string) {})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Run(context.Background()); err == nil {
		t.Error("Run should fail for a missing root")
	}
}

func TestWatcher_HandleMarksRelativeDirs(t *testing.T) {
	root := t.TempDir()
	var got []string
	w, err := New(root, func(dir string) { got = append(got, dir) })
	if err != nil {
		t.Fatal(err)
	}
	defer w.watcher.Close()

	w.handle(fsnotify.Event{Name: filepath.Join(root, "a", "b", "folder.jpg"), Op: fsnotify.Write})
	w.handle(fsnotify.Event{Name: filepath.Join(root, "song.mp3"), Op: fsnotify.Write})
	w.handle(fsnotify.Event{Name: filepath.Join(root, "x", "y.jpg"), Op: fsnotify.Chmod})
	w.flush()

	seen := make(map[string]bool)
	for _, dir := range got {
		seen[dir] = true
	}
	if !seen[filepath.Join("a", "b")] {
		t.Errorf("expected a/b to be reported, got %v", got)
	}
	if !seen[""] {
		t.Errorf("expected the root to be reported, got %v", got)
	}
	if seen["x"] {
		t.Errorf("chmod events should be ignored, got %v", got)
	}
}
