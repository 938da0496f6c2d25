package enrichment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

var jpegMagic = []byte{0xFF, 0xD8, 0xFF, 0xE0}

func TestCAA_FetchAlbumArt_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify request format: /release/{mbid}/front
		if r.URL.Path != "/release/test-mbid-1234/front" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpegMagic)
	}))
	defer server.Close()

	client := NewCAAClient(WithBaseURL(server.URL), WithRateLimit(100))

	result, err := client.FetchAlbumArt(context.Background(), "test-mbid-1234")
	if err != nil {
		t.Fatalf("FetchAlbumArt failed: %v", err)
	}

	if result.MimeType != "image/jpeg" {
		t.Errorf("expected mime type image/jpeg, got %s", result.MimeType)
	}
	if !bytes.Equal(result.Data, jpegMagic) {
		t.Errorf("unexpected data: %v", result.Data)
	}
	if result.Source != SourceCoverArtArchive {
		t.Errorf("expected source %s, got %s", SourceCoverArtArchive, result.Source)
	}
}

func TestCAA_FetchReleaseGroupArt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/release-group/rg-1/front" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		// No content type: detected from magic bytes
		w.Write(jpegMagic)
	}))
	defer server.Close()

	client := NewCAAClient(WithBaseURL(server.URL), WithRateLimit(100))

	result, err := client.FetchReleaseGroupArt(context.Background(), "rg-1")
	if err != nil {
		t.Fatalf("FetchReleaseGroupArt failed: %v", err)
	}
	if result.MimeType != "image/jpeg" {
		t.Errorf("expected detected mime type image/jpeg, got %s", result.MimeType)
	}
}

func TestCAA_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrArtworkNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusServiceUnavailable, ErrTemporaryFailure},
		{http.StatusBadGateway, ErrTemporaryFailure},
		{http.StatusForbidden, ErrNotConfigured},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewCAAClient(WithBaseURL(server.URL), WithRateLimit(100))
			_, err := client.FetchAlbumArt(context.Background(), "mbid")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCAA_FetchAlbumArt_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewCAAClient(WithBaseURL(server.URL))

	_, err := client.FetchAlbumArt(context.Background(), "test-mbid")
	if err == nil {
		t.Fatal("expected error for 500, got nil")
	}
	if IsPermanentError(err) || IsTemporaryError(err) {
		t.Errorf("500 should be neither permanent nor temporary, got %v", err)
	}
}

func TestCAA_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := NewCAAClient(WithBaseURL(server.URL))
	if _, err := client.FetchAlbumArt(context.Background(), "mbid"); !errors.Is(err, ErrArtworkNotFound) {
		t.Errorf("expected ErrArtworkNotFound, got %v", err)
	}
}

func TestCAA_TooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, MaxImageSize+10))
	}))
	defer server.Close()

	client := NewCAAClient(WithBaseURL(server.URL))
	if _, err := client.FetchAlbumArt(context.Background(), "mbid"); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestCAA_RateLimiting(t *testing.T) {
	requestCount := 0
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requestCount++
		mu.Unlock()
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpegMagic)
	}))
	defer server.Close()

	client := NewCAAClient(
		WithBaseURL(server.URL),
		WithRateLimit(4),
	)

	// 3 requests at 4/sec need at least two 250ms gaps
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.FetchAlbumArt(context.Background(), fmt.Sprintf("mbid-%d", i)); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	if elapsed < 450*time.Millisecond {
		t.Errorf("rate limiting not working: 3 requests completed in %v", elapsed)
	}

	mu.Lock()
	if requestCount != 3 {
		t.Errorf("expected 3 requests, got %d", requestCount)
	}
	mu.Unlock()
}

func TestCAA_RateLimiterRespectsContext(t *testing.T) {
	limiter := newRateLimiter(1)
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestCAA_UserAgent(t *testing.T) {
	var receivedUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedUserAgent = r.Header.Get("User-Agent")
		w.Write(jpegMagic)
	}))
	defer server.Close()

	client := NewCAAClient(
		WithBaseURL(server.URL),
		WithUserAgent("TestApp/1.0"),
	)

	client.FetchAlbumArt(context.Background(), "test-mbid")

	if receivedUserAgent != "TestApp/1.0" {
		t.Errorf("expected User-Agent 'TestApp/1.0', got '%s'", receivedUserAgent)
	}
}
