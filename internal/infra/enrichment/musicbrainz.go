package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultMBBaseURL is the MusicBrainz API base URL
	DefaultMBBaseURL = "https://musicbrainz.org/ws/2"

	// DefaultMBRateLimit is 1 request per second (MusicBrainz guideline)
	DefaultMBRateLimit = 1

	// DefaultMBTimeout for HTTP requests
	DefaultMBTimeout = 30 * time.Second

	// mbHighScore is the score above which a release is taken as a match.
	mbHighScore = 80
	// mbMinScore is the lowest score still considered.
	mbMinScore = 50
)

// MusicBrainzClient searches for releases using the MusicBrainz API.
type MusicBrainzClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rateLimiter
}

// MBOption is a functional option for configuring the MusicBrainz client.
type MBOption func(*MusicBrainzClient)

// WithMBBaseURL sets a custom base URL (useful for testing).
func WithMBBaseURL(url string) MBOption {
	return func(c *MusicBrainzClient) {
		c.baseURL = url
	}
}

// WithMBUserAgent sets a custom User-Agent header.
func WithMBUserAgent(ua string) MBOption {
	return func(c *MusicBrainzClient) {
		c.userAgent = ua
	}
}

// WithMBHTTPClient sets a custom HTTP client.
func WithMBHTTPClient(client *http.Client) MBOption {
	return func(c *MusicBrainzClient) {
		c.httpClient = client
	}
}

// WithMBRateLimit sets the rate limit in requests per second.
func WithMBRateLimit(rps int) MBOption {
	return func(c *MusicBrainzClient) {
		c.limiter = newRateLimiter(rps)
	}
}

// NewMusicBrainzClient creates a new MusicBrainz API client.
func NewMusicBrainzClient(opts ...MBOption) *MusicBrainzClient {
	c := &MusicBrainzClient{
		baseURL:   DefaultMBBaseURL,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultMBTimeout,
		},
		limiter: newRateLimiter(DefaultMBRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// MBRelease represents a release from MusicBrainz API.
type MBRelease struct {
	ID           string         `json:"id"`     // MusicBrainz Release ID (MBID)
	Title        string         `json:"title"`  // Release title
	Score        int            `json:"score"`  // Search relevance score (0-100)
	Status       string         `json:"status"` // Release status (e.g., "Official")
	ReleaseGroup MBReleaseGroup `json:"release-group"`
}

// MBReleaseGroup is the release group a release belongs to.
type MBReleaseGroup struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// MBSearchResponse represents the MusicBrainz search API response.
type MBSearchResponse struct {
	Releases []MBRelease `json:"releases"`
	Count    int         `json:"count"`
	Offset   int         `json:"offset"`
}

// SearchRelease searches for a release by artist and album name.
// Returns the best matching release MBID or empty string if not found.
func (c *MusicBrainzClient) SearchRelease(ctx context.Context, artist, album string) (string, error) {
	releases, err := c.SearchReleases(ctx, artist, album, 5)
	if err != nil || len(releases) == 0 {
		return "", err
	}
	return releases[0].ID, nil
}

// SearchReleases returns up to limit releases matching artist and album,
// best first. Releases scoring mbHighScore or more are returned when any
// exist; otherwise only the top result is kept, and only if its score
// exceeds mbMinScore.
func (c *MusicBrainzClient) SearchReleases(ctx context.Context, artist, album string, limit int) ([]MBRelease, error) {
	if limit <= 0 {
		limit = 5
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	// Query: artist:"Artist Name" AND release:"Album Name"
	query := fmt.Sprintf(`artist:"%s" AND release:"%s"`, escapeQuery(artist), escapeQuery(album))
	reqURL := fmt.Sprintf("%s/release?query=%s&fmt=json&limit=%d",
		c.baseURL, url.QueryEscape(query), limit)

	log.Debug().
		Str("artist", artist).
		Str("album", album).
		Msg("Searching MusicBrainz for release")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, reqURL); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var searchResp MBSearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	releases := filterReleases(searchResp.Releases)
	if len(releases) == 0 {
		log.Debug().
			Str("artist", artist).
			Str("album", album).
			Int("candidates", len(searchResp.Releases)).
			Msg("No confident MusicBrainz match")
		return nil, nil
	}

	log.Debug().
		Str("artist", artist).
		Str("album", album).
		Str("mbid", releases[0].ID).
		Int("score", releases[0].Score).
		Int("matches", len(releases)).
		Msg("Found MusicBrainz release")
	return releases, nil
}

func filterReleases(candidates []MBRelease) []MBRelease {
	if len(candidates) == 0 {
		return nil
	}

	sorted := append([]MBRelease(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	var high []MBRelease
	for _, r := range sorted {
		if r.Score >= mbHighScore {
			high = append(high, r)
		}
	}
	if len(high) > 0 {
		return high
	}

	if sorted[0].Score > mbMinScore {
		return sorted[:1]
	}
	return nil
}

// escapeQuery escapes special characters in Lucene query.
func escapeQuery(s string) string {
	// Escape Lucene special characters: + - && || ! ( ) { } [ ] ^ " ~ * ? : \ /
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		`+`, `\+`,
		`-`, `\-`,
		`!`, `\!`,
		`(`, `\(`,
		`)`, `\)`,
		`{`, `\{`,
		`}`, `\}`,
		`[`, `\[`,
		`]`, `\]`,
		`^`, `\^`,
		`~`, `\~`,
		`*`, `\*`,
		`?`, `\?`,
		`:`, `\:`,
		`/`, `\/`,
	)
	return replacer.Replace(s)
}
