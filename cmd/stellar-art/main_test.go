package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testEnv struct {
	root       string
	musicDir   string
	coversDir  string
	configPath string
}

func newTestEnv(t *testing.T, backend string) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		root:       root,
		musicDir:   filepath.Join(root, "music"),
		coversDir:  filepath.Join(root, "covers"),
		configPath: filepath.Join(root, "config.toml"),
	}
	if err := os.MkdirAll(env.musicDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	cachePath := filepath.Join(root, "state", "artwork.json")
	if backend == "sqlite" {
		cachePath = filepath.Join(root, "state", "artwork.db")
	}

	content := fmt.Sprintf(`[library]
music_dirs = [%q]

[artwork]
covers_dir = %q
thumbnails_dir = %q
fetchers = []

[cache]
backend = %q
path = %q

[logging]
level = "error"
format = "json"
`, env.musicDir, env.coversDir, filepath.Join(root, "thumbs"), backend, cachePath)

	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return env
}

func (e *testEnv) writeCover(t *testing.T, rel string) string {
	t.Helper()
	path := filepath.Join(e.musicDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommandSkipsConfig(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "broken.toml"), "version"})

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), "stellar-art v") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestResolveFindsLocalCover(t *testing.T) {
	env := newTestEnv(t, "file")
	cover := env.writeCover(t, "Air/Moon Safari/cover.jpg")

	out, err := env.run(t, "resolve", "--artist", "Air", "--album", "Moon Safari", "--path", "Air/Moon Safari", "--timeout", "5s")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if strings.TrimSpace(out) != cover {
		t.Errorf("resolve output = %q, want %q", out, cover)
	}

	// The result is persisted and visible offline.
	out, err = env.run(t, "cache", "list")
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	if !strings.Contains(out, "Moon Safari") || !strings.Contains(out, "1 entries") {
		t.Errorf("cache list output missing entry:\n%s", out)
	}
}

func TestResolveRecordsMissingArtwork(t *testing.T) {
	env := newTestEnv(t, "sqlite")
	if err := os.MkdirAll(filepath.Join(env.musicDir, "Unknown/Demo"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	out, err := env.run(t, "resolve", "--artist", "Unknown", "--album", "Demo", "--path", "Unknown/Demo", "--timeout", "5s")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(out, "No artwork") {
		t.Errorf("resolve output = %q, want no artwork message", out)
	}

	out, err = env.run(t, "cache", "list", "--missing")
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	if !strings.Contains(out, "(none)") || !strings.Contains(out, "1 without artwork") {
		t.Errorf("cache list output:\n%s", out)
	}
}

func TestCacheForgetDir(t *testing.T) {
	env := newTestEnv(t, "file")
	env.writeCover(t, "Air/Moon Safari/folder.jpg")

	if _, err := env.run(t, "resolve", "--artist", "Air", "--album", "Moon Safari", "--path", "Air/Moon Safari"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	out, err := env.run(t, "cache", "forget", "--dir", "Air/Moon Safari")
	if err != nil {
		t.Fatalf("cache forget: %v", err)
	}
	if !strings.Contains(out, "Forgot 1 entries") {
		t.Errorf("forget output = %q", out)
	}

	out, err = env.run(t, "cache", "list")
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	if !strings.Contains(out, "No cache entries") {
		t.Errorf("cache list after forget:\n%s", out)
	}
}

func TestCommandsRequireKey(t *testing.T) {
	env := newTestEnv(t, "file")
	for _, args := range [][]string{
		{"resolve"},
		{"search"},
		{"choose", "--candidate", "x.jpg"},
		{"cache", "forget"},
	} {
		if _, err := env.run(t, args...); err == nil {
			t.Errorf("%v: expected error without --artist/--album", args)
		}
	}
}

func TestChooseInstallsCandidate(t *testing.T) {
	env := newTestEnv(t, "file")
	candidate := env.writeCover(t, "candidate.png")

	out, err := env.run(t, "choose", "--artist", "Air", "--album", "Moon Safari", "--path", "Air/Moon Safari", "--candidate", candidate)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}

	want := filepath.Join(env.coversDir, "Air-Moon Safari.jpg")
	if !strings.Contains(out, want) {
		t.Errorf("choose output = %q, want %q", out, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("installed cover missing: %v", err)
	}
}
