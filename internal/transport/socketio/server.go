// Package socketio provides the Socket.io server for artwork clients.
package socketio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/edumarques81/stellar-artwork/internal/domain/artwork"
)

// ErrUnknownCandidate is returned when a client chooses a file that no search
// offered.
var ErrUnknownCandidate = errors.New("not a search candidate")

// DefaultReadyWindow is how long ready events are collected before being
// broadcast.
const DefaultReadyWindow = 100 * time.Millisecond

// ArtworkService is the part of the artwork engine the socket handlers use.
type ArtworkService interface {
	Lookup(key artwork.Key, priority int) (string, bool)
	Refresh(key artwork.Key, priority int) bool
	Reset(key artwork.Key) error
	Stats() artwork.Stats
	Notifier() *artwork.Notifier
	Search(ctx context.Context, key artwork.Key, limit int) ([]string, error)
	StopSearch()
	Choose(key artwork.Key, candidate string) error
}

// AlbumArt is the pushAlbumArt payload.
type AlbumArt struct {
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Path   string `json:"path"`
	Found  bool   `json:"found"`
	URL    string `json:"url,omitempty"`
}

// ArtSearch is the pushArtSearch payload.
type ArtSearch struct {
	Artist     string   `json:"artist"`
	Album      string   `json:"album"`
	Path       string   `json:"path"`
	Candidates []string `json:"candidates"`
	Error      string   `json:"error,omitempty"`
}

// Server handles Socket.io connections and events.
type Server struct {
	io           *socket.Server
	service      ArtworkService
	debouncer    *ReadyDebouncer
	subscription artwork.Subscription
	ctx          context.Context
	cancel       context.CancelFunc
	candidates   map[artwork.Key][]string // last search result per key
	mu           sync.RWMutex
	clients      map[string]*socket.Socket
}

// NewServer creates a new Socket.io server and subscribes it to ready events.
func NewServer(service ArtworkService, corsOrigin string) (*Server, error) {
	if corsOrigin == "" {
		corsOrigin = "*"
	}

	// Configure Socket.io server options
	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(20 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetCors(&types.Cors{
		Origin:      corsOrigin,
		Credentials: true,
	})

	server := socket.NewServer(nil, opts)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		io:         server,
		service:    service,
		clients:    make(map[string]*socket.Socket),
		ctx:        ctx,
		cancel:     cancel,
		candidates: make(map[artwork.Key][]string),
	}
	s.debouncer = NewReadyDebouncer(DefaultReadyWindow, s.BroadcastAlbumArt)
	s.subscription = service.Notifier().Subscribe(s.debouncer.Trigger)

	s.setupHandlers()

	return s, nil
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())

		log.Info().Str("id", clientID).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		// Handle disconnect
		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		client.On("getAlbumArt", func(args ...any) {
			key, priority, ok := parseRequest(args)
			if !ok {
				log.Debug().Str("id", clientID).Interface("data", args).Msg("getAlbumArt without artist or album")
				return
			}
			log.Debug().Str("id", clientID).Str("key", key.String()).Msg("getAlbumArt")

			// Unresolved keys are answered by the ready broadcast.
			if file, ok := s.service.Lookup(key, priority); ok {
				client.Emit("pushAlbumArt", newAlbumArt(key, file))
			}
		})

		client.On("refreshAlbumArt", func(args ...any) {
			key, priority, ok := parseRequest(args)
			if !ok {
				return
			}
			log.Debug().Str("id", clientID).Str("key", key.String()).Msg("refreshAlbumArt")
			s.service.Refresh(key, priority)
		})

		client.On("clearAlbumArt", func(args ...any) {
			key, _, ok := parseRequest(args)
			if !ok {
				return
			}
			log.Debug().Str("id", clientID).Str("key", key.String()).Msg("clearAlbumArt")
			if err := s.service.Reset(key); err != nil {
				log.Error().Err(err).Str("key", key.String()).Msg("Clear album art failed")
			}
		})

		client.On("searchAlbumArt", func(args ...any) {
			key, _, ok := parseRequest(args)
			if !ok {
				return
			}
			limit := parseLimit(args)
			log.Debug().Str("id", clientID).Str("key", key.String()).Int("limit", limit).Msg("searchAlbumArt")
			go func() {
				client.Emit("pushArtSearch", s.searchArt(key, limit))
			}()
		})

		client.On("stopArtSearch", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("stopArtSearch")
			s.service.StopSearch()
		})

		client.On("chooseAlbumArt", func(args ...any) {
			key, _, ok := parseRequest(args)
			if !ok {
				return
			}
			candidate := parseCandidate(args)
			log.Debug().Str("id", clientID).Str("key", key.String()).Str("candidate", candidate).Msg("chooseAlbumArt")
			if err := s.chooseArt(key, candidate); err != nil {
				log.Error().Err(err).Str("key", key.String()).Msg("Choose album art failed")
			}
		})

		client.On("getArtworkStatus", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getArtworkStatus")
			client.Emit("pushArtworkStatus", s.service.Stats())
		})
	})
}

// BroadcastAlbumArt sends the resolved artwork for keys to all clients.
func (s *Server) BroadcastAlbumArt(keys []artwork.Key) {
	for _, key := range keys {
		// A resolved key is a cache hit, so this never queues anything.
		file, ok := s.service.Lookup(key, artwork.PriorityDefault)
		if !ok {
			continue
		}
		s.io.Emit("pushAlbumArt", newAlbumArt(key, file))
	}

	s.mu.RLock()
	clientCount := len(s.clients)
	s.mu.RUnlock()
	log.Debug().Int("keys", len(keys)).Int("clients", clientCount).Msg("Broadcast album art")
}

// searchArt downloads candidates for key. Searches end when the server closes.
func (s *Server) searchArt(key artwork.Key, limit int) ArtSearch {
	res := ArtSearch{Artist: key.Artist, Album: key.Album, Path: key.Path, Candidates: []string{}}
	files, err := s.service.Search(s.ctx, key, limit)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Candidates = files

	s.mu.Lock()
	s.candidates[key] = files
	s.mu.Unlock()
	return res
}

// chooseArt installs one of the candidates the last search for key returned.
func (s *Server) chooseArt(key artwork.Key, candidate string) error {
	s.mu.Lock()
	offered := slices.Contains(s.candidates[key], candidate)
	if offered {
		delete(s.candidates, key)
	}
	s.mu.Unlock()

	if !offered {
		return fmt.Errorf("%w: %q", ErrUnknownCandidate, candidate)
	}
	return s.service.Choose(key, candidate)
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close unsubscribes from ready events and closes the Socket.io server.
func (s *Server) Close() error {
	s.cancel()
	s.service.Notifier().Unsubscribe(s.subscription)
	s.debouncer.Stop()
	s.io.Close(nil)
	return nil
}

func newAlbumArt(key artwork.Key, file string) AlbumArt {
	art := AlbumArt{
		Artist: key.Artist,
		Album:  key.Album,
		Path:   key.Path,
		Found:  file != "",
	}
	if art.Found {
		art.URL = AlbumArtURL(key)
	}
	return art
}

// AlbumArtURL returns the HTTP path serving the artwork for key.
func AlbumArtURL(key artwork.Key) string {
	q := url.Values{}
	q.Set("artist", key.Artist)
	q.Set("album", key.Album)
	if key.Path != "" {
		q.Set("path", key.Path)
	}
	return "/albumart?" + q.Encode()
}

// parseRequest reads {artist, album, path, priority} from an event payload.
func parseRequest(args []any) (artwork.Key, int, bool) {
	if len(args) == 0 {
		return artwork.Key{}, 0, false
	}
	m, ok := args[0].(map[string]interface{})
	if !ok {
		return artwork.Key{}, 0, false
	}

	artist, _ := m["artist"].(string)
	album, _ := m["album"].(string)
	path, _ := m["path"].(string)
	key := artwork.NewKey(artist, album, path)
	if key.IsZero() {
		return artwork.Key{}, 0, false
	}

	priority := artwork.PriorityDefault
	if v, ok := m["priority"].(float64); ok {
		priority = int(v)
	}
	return key, priority, true
}

func parseLimit(args []any) int {
	m, _ := args[0].(map[string]interface{})
	if v, ok := m["limit"].(float64); ok && v > 0 {
		return int(v)
	}
	return 0
}

func parseCandidate(args []any) string {
	m, _ := args[0].(map[string]interface{})
	candidate, _ := m["candidate"].(string)
	return candidate
}
