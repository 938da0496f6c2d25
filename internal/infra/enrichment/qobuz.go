package enrichment

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/markhc/gobuz"
	"github.com/rs/zerolog/log"
)

// QobuzAlbum is the part of a Qobuz catalog album the cover fetcher needs.
type QobuzAlbum struct {
	Title    string
	Artist   string
	ImageURL string
}

type albumSearchFunc func(ctx context.Context, query string, limit int) ([]QobuzAlbum, error)

// QobuzClient finds album covers in the Qobuz catalog.
type QobuzClient struct {
	search     albumSearchFunc
	userAgent  string
	httpClient *http.Client
	limit      int
}

// QobuzOption is a functional option for configuring the Qobuz client.
type QobuzOption func(*QobuzClient)

// WithQobuzHTTPClient sets the HTTP client used for image downloads.
func WithQobuzHTTPClient(client *http.Client) QobuzOption {
	return func(c *QobuzClient) {
		c.httpClient = client
	}
}

// WithQobuzSearchLimit sets how many catalog results are inspected.
func WithQobuzSearchLimit(n int) QobuzOption {
	return func(c *QobuzClient) {
		if n > 0 {
			c.limit = n
		}
	}
}

// withQobuzSearch replaces the catalog search (tests).
func withQobuzSearch(fn albumSearchFunc) QobuzOption {
	return func(c *QobuzClient) {
		c.search = fn
	}
}

// NewQobuzClient creates a client using application credentials extracted
// from the Qobuz web player.
func NewQobuzClient(appID, appSecret string, opts ...QobuzOption) *QobuzClient {
	c := &QobuzClient{
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limit: 10,
	}
	if appID != "" {
		api := gobuz.NewQobuzAPI(gobuz.WithApplicationCredentials(appID, appSecret))
		c.search = gobuzSearch(api)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsConfigured returns true if the client has application credentials.
func (c *QobuzClient) IsConfigured() bool {
	return c.search != nil
}

func gobuzSearch(api *gobuz.QobuzAPI) albumSearchFunc {
	return func(ctx context.Context, query string, limit int) ([]QobuzAlbum, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results, err := api.SearchAlbums(query).WithLimit(limit).Run()
		if err != nil {
			return nil, fmt.Errorf("qobuz search: %w", err)
		}
		if results == nil {
			return nil, nil
		}

		albums := make([]QobuzAlbum, 0, len(results.Albums.Items))
		for _, album := range results.Albums.Items {
			artistName := ""
			if album.Artist != nil {
				artistName = album.Artist.Name
			}
			albums = append(albums, QobuzAlbum{
				Title:    album.Title,
				Artist:   artistName,
				ImageURL: album.Image.Large,
			})
		}
		return albums, nil
	}
}

// FindAlbums searches the catalog and keeps the albums whose artist and title
// match, in catalog order.
func (c *QobuzClient) FindAlbums(ctx context.Context, artist, album string) ([]QobuzAlbum, error) {
	if c.search == nil {
		return nil, fmt.Errorf("qobuz credentials: %w", ErrNotConfigured)
	}

	candidates, err := c.search(ctx, artist+" "+album, c.limit)
	if err != nil {
		return nil, err
	}

	var matches []QobuzAlbum
	for _, candidate := range candidates {
		if candidate.ImageURL == "" {
			continue
		}
		if normalizeTitle(candidate.Artist) != normalizeTitle(artist) {
			continue
		}
		if !titleMatches(candidate.Title, album) {
			continue
		}
		matches = append(matches, candidate)
	}

	log.Debug().
		Str("artist", artist).
		Str("album", album).
		Int("candidates", len(candidates)).
		Int("matches", len(matches)).
		Msg("Searched Qobuz catalog")

	if len(matches) == 0 {
		return nil, ErrArtworkNotFound
	}
	return matches, nil
}

// Download fetches the cover of a matched album.
func (c *QobuzClient) Download(ctx context.Context, album QobuzAlbum) (*FetchResult, error) {
	result, err := downloadImage(ctx, c.httpClient, c.userAgent, album.ImageURL)
	if err != nil {
		return nil, err
	}
	result.Source = SourceQobuz
	return result, nil
}

// titleMatches accepts exact matches and editions such as
// "Moon Safari (Remastered)".
func titleMatches(candidate, want string) bool {
	c, w := normalizeTitle(candidate), normalizeTitle(want)
	if c == w {
		return true
	}
	return w != "" && strings.HasPrefix(c, w+" ")
}

// normalizeTitle lowercases s and folds punctuation and runs of spaces into
// single spaces.
func normalizeTitle(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
			continue
		}
		space = true
	}
	return b.String()
}
