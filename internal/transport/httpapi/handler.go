// Package httpapi serves resolved artwork and engine status over HTTP.
package httpapi

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-artwork/internal/domain/artwork"
	"github.com/edumarques81/stellar-artwork/internal/version"
)

// ArtworkService is the part of the artwork engine the HTTP handlers use.
type ArtworkService interface {
	Lookup(key artwork.Key, priority int) (string, bool)
	Stats() artwork.Stats
	CoversEnabled() bool
}

// Pinger reports whether an upstream dependency is reachable.
type Pinger interface {
	Ping() error
}

// Options configures the router.
type Options struct {
	Service    ArtworkService
	Thumbnails *artwork.ThumbnailGenerator // optional; enables ?size=
	MPD        Pinger                      // optional; reported by /health
	Socket     http.Handler                // optional; mounted at /socket.io/
	CORSOrigin string
}

type handler struct {
	service    ArtworkService
	thumbnails *artwork.ThumbnailGenerator
	mpd        Pinger
}

// NewRouter returns the HTTP handler for all endpoints.
func NewRouter(opts Options) http.Handler {
	h := &handler{
		service:    opts.Service,
		thumbnails: opts.Thumbnails,
		mpd:        opts.MPD,
	}

	mux := http.NewServeMux()
	if opts.Socket != nil {
		mux.Handle("/socket.io/", opts.Socket)
	}
	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/api/v1/version", h.version)
	mux.HandleFunc("/api/v1/artwork/status", h.status)
	mux.HandleFunc("/albumart", h.albumArt)

	return corsMiddleware(opts.CORSOrigin, mux)
}

type healthResponse struct {
	Status string `json:"status"`
	Worker string `json:"worker"`
	MPD    string `json:"mpd,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Worker: "running"}
	code := http.StatusOK

	if !h.service.Stats().Running {
		resp.Status = "error"
		resp.Worker = "stopped"
		code = http.StatusServiceUnavailable
	}
	if h.mpd != nil {
		// MPD only feeds one fetcher, so losing it degrades but does not fail.
		if err := h.mpd.Ping(); err != nil {
			resp.MPD = "disconnected"
			if code == http.StatusOK {
				resp.Status = "degraded"
			}
		} else {
			resp.MPD = "connected"
		}
	}

	writeJSON(w, code, resp)
}

func (h *handler) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.GetInfo())
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Stats())
}

// albumArt serves the artwork for ?artist=&album=&path=. An unresolved key is
// queued and answered with 202 so the client can retry or wait for the
// socket push.
func (h *handler) albumArt(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := artwork.NewKey(q.Get("artist"), q.Get("album"), q.Get("path"))
	if key.IsZero() {
		http.Error(w, "artist or album parameter required", http.StatusBadRequest)
		return
	}

	var size artwork.ThumbnailSize
	if raw := q.Get("size"); raw != "" {
		parsed, err := artwork.ParseThumbnailSize(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		size = parsed
	}

	// Nothing is ever queued while covers are disabled.
	if !h.service.CoversEnabled() {
		http.Error(w, "album art disabled", http.StatusNotFound)
		return
	}

	file, ok := h.service.Lookup(key, artwork.PriorityNowPlaying)
	if !ok {
		w.Header().Set("Retry-After", "1")
		http.Error(w, "album art lookup queued", http.StatusAccepted)
		return
	}
	if file == "" {
		http.Error(w, "album art not found", http.StatusNotFound)
		return
	}

	if size != 0 && h.thumbnails != nil {
		thumb, err := h.thumbnails.GenerateThumbnail(file, key, size)
		if err != nil {
			log.Warn().Err(err).Str("file", file).Msg("Thumbnail generation failed, serving original")
		} else {
			file = thumb
		}
	}

	data, err := os.ReadFile(file)
	if err != nil {
		log.Debug().Err(err).Str("file", file).Msg("Album art file unreadable")
		http.Error(w, "album art not found", http.StatusNotFound)
		return
	}

	contentType := artwork.DetectMimeType(data)
	if contentType == "application/octet-stream" {
		contentType = "image/jpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400") // Cache for 1 day
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write JSON response")
	}
}
