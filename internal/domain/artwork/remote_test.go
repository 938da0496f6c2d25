package artwork_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/edumarques81/stellar-artwork/internal/domain/artwork"
)

// imagePlugin returns a plugin that offers n images, stopping when save says so.
func imagePlugin(name string, data []byte, n int, calls *atomic.Int32) artwork.Plugin {
	return artwork.Plugin{
		Name: name,
		Fetch: func(ctx context.Context, artist, album string, save func(io.Reader) bool, fail func(error)) error {
			if calls != nil {
				calls.Add(1)
			}
			for i := 0; i < n; i++ {
				if !save(bytes.NewReader(data)) {
					return nil
				}
			}
			return nil
		},
	}
}

func failingPlugin(name string, calls *atomic.Int32) artwork.Plugin {
	return artwork.Plugin{
		Name: name,
		Fetch: func(ctx context.Context, artist, album string, save func(io.Reader) bool, fail func(error)) error {
			if calls != nil {
				calls.Add(1)
			}
			fail(errors.New("not found"))
			return nil
		},
	}
}

func panickingPlugin(name string) artwork.Plugin {
	return artwork.Plugin{
		Name: name,
		Fetch: func(ctx context.Context, artist, album string, save func(io.Reader) bool, fail func(error)) error {
			panic("boom")
		},
	}
}

func TestRemote_FirstSuccessfulPluginWins(t *testing.T) {
	data := pngBytes(t)
	dest := filepath.Join(t.TempDir(), "covers", "Air-Moon Safari.jpg")

	var first, second, third atomic.Int32
	r := artwork.NewRemoteResolver(artwork.Plugins{
		failingPlugin("empty", &first),
		imagePlugin("good", data, 3, &second),
		imagePlugin("never", data, 1, &third),
	})

	if !r.Resolve(context.Background(), "Air", "Moon Safari", dest, 1) {
		t.Fatal("Resolve() should report success")
	}
	if first.Load() != 1 || second.Load() != 1 {
		t.Errorf("Expected both leading plugins to run, got %d/%d", first.Load(), second.Load())
	}
	if third.Load() != 0 {
		t.Error("Plugins after a success must not run")
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("Expected image at dest: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Saved image content mismatch")
	}
	if r.Downloading() {
		t.Error("Downloading() should be false once Resolve returns")
	}
}

func TestRemote_PluginFaultIsolation(t *testing.T) {
	data := pngBytes(t)
	dest := filepath.Join(t.TempDir(), "cover.jpg")

	errPlugin := artwork.Plugin{
		Name: "erroring",
		Fetch: func(ctx context.Context, artist, album string, save func(io.Reader) bool, fail func(error)) error {
			return errors.New("connection reset")
		},
	}
	var calls atomic.Int32
	r := artwork.NewRemoteResolver(artwork.Plugins{
		panickingPlugin("panics"),
		errPlugin,
		{Name: "nil"},
		imagePlugin("good", data, 1, &calls),
	})

	if !r.Resolve(context.Background(), "A", "B", dest, 1) {
		t.Fatal("Resolve() should succeed despite faulty plugins")
	}
	if calls.Load() != 1 {
		t.Errorf("Good plugin calls = %d, want 1", calls.Load())
	}
}

func TestRemote_NothingFound(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "cover.jpg")
	r := artwork.NewRemoteResolver(artwork.Plugins{failingPlugin("a", nil), panickingPlugin("b")})

	if r.Resolve(context.Background(), "A", "B", dest, 1) {
		t.Error("Resolve() should report failure")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("No file should be written")
	}

	if artwork.NewRemoteResolver(nil).Resolve(context.Background(), "A", "B", dest, 1) {
		t.Error("Empty registry should never resolve")
	}
}

func TestRemote_SaveAfterFailIgnored(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "cover.jpg")
	data := pngBytes(t)

	var accepted atomic.Bool
	rogue := artwork.Plugin{
		Name: "rogue",
		Fetch: func(ctx context.Context, artist, album string, save func(io.Reader) bool, fail func(error)) error {
			fail(errors.New("gave up"))
			accepted.Store(save(bytes.NewReader(data)))
			return nil
		},
	}

	r := artwork.NewRemoteResolver(artwork.Plugins{rogue})
	if r.Resolve(context.Background(), "A", "B", dest, 1) {
		t.Error("Save after fail must not count")
	}
	if accepted.Load() {
		t.Error("save() should return false after fail()")
	}
}

func TestRemote_MultiImageSearch(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "temp", artwork.ImageNumPlaceholder+".jpg")
	data := pngBytes(t)

	r := artwork.NewRemoteResolver(artwork.Plugins{imagePlugin("many", data, 10, nil)})
	files := r.Search(context.Background(), "A", "B", dest, 3)

	want := []string{
		filepath.Join(dir, "temp", "1.jpg"),
		filepath.Join(dir, "temp", "2.jpg"),
		filepath.Join(dir, "temp", "3.jpg"),
	}
	if len(files) != len(want) {
		t.Fatalf("Search() returned %d files, want %d: %v", len(files), len(want), files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
		if _, err := os.Stat(want[i]); err != nil {
			t.Errorf("Expected %s to exist: %v", want[i], err)
		}
	}
}

func TestRemote_SearchAddsPlaceholder(t *testing.T) {
	dir := t.TempDir()
	data := pngBytes(t)

	r := artwork.NewRemoteResolver(artwork.Plugins{imagePlugin("many", data, 2, nil)})
	files := r.Search(context.Background(), "A", "B", filepath.Join(dir, "cand.jpg"), 5)

	if len(files) != 2 {
		t.Fatalf("Search() returned %d files, want 2", len(files))
	}
	if files[0] != filepath.Join(dir, "cand-1.jpg") {
		t.Errorf("files[0] = %s", files[0])
	}
}

func TestRemote_StopUpdating(t *testing.T) {
	dir := t.TempDir()
	data := pngBytes(t)

	var r *artwork.RemoteResolver
	stopper := artwork.Plugin{
		Name: "stopper",
		Fetch: func(ctx context.Context, artist, album string, save func(io.Reader) bool, fail func(error)) error {
			for i := 0; i < 10; i++ {
				if i == 1 {
					r.StopUpdating()
				}
				if !save(bytes.NewReader(data)) {
					return nil
				}
			}
			return nil
		},
	}
	r = artwork.NewRemoteResolver(artwork.Plugins{stopper})

	files := r.Search(context.Background(), "A", "B", filepath.Join(dir, artwork.ImageNumPlaceholder+".jpg"), artwork.AllImages)
	if len(files) != 2 {
		t.Errorf("Expected the download to stop after 2 images, got %d", len(files))
	}

	r.ResumeUpdating()
	files = r.Search(context.Background(), "A", "B", filepath.Join(dir, "again-"+artwork.ImageNumPlaceholder+".jpg"), 4)
	if len(files) != 2 {
		// stopper sets the flag again on its second image
		t.Errorf("Expected 2 images after resume, got %d", len(files))
	}
}

func TestRemote_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	r := artwork.NewRemoteResolver(artwork.Plugins{imagePlugin("a", pngBytes(t), 1, &calls)})
	if r.Resolve(ctx, "A", "B", filepath.Join(t.TempDir(), "c.jpg"), 1) {
		t.Error("Resolve() with a cancelled context should not succeed")
	}
	if calls.Load() != 0 {
		t.Error("No plugin should run with a cancelled context")
	}
}
