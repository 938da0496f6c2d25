package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultFanartBaseURL is the Fanart.tv API base URL
	DefaultFanartBaseURL = "https://webservice.fanart.tv/v3/music"

	// DefaultFanartTimeout for HTTP requests
	DefaultFanartTimeout = 30 * time.Second
)

// FanartClient fetches album covers from the Fanart.tv API.
type FanartClient struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	limiter    *rateLimiter
}

// FanartOption is a functional option for configuring the Fanart.tv client.
type FanartOption func(*FanartClient)

// WithFanartBaseURL sets a custom base URL (useful for testing).
func WithFanartBaseURL(url string) FanartOption {
	return func(c *FanartClient) {
		c.baseURL = url
	}
}

// WithFanartUserAgent sets a custom User-Agent header.
func WithFanartUserAgent(ua string) FanartOption {
	return func(c *FanartClient) {
		c.userAgent = ua
	}
}

// WithFanartHTTPClient sets a custom HTTP client.
func WithFanartHTTPClient(client *http.Client) FanartOption {
	return func(c *FanartClient) {
		c.httpClient = client
	}
}

// NewFanartClient creates a new Fanart.tv client.
// Requires API key (free registration at fanart.tv).
func NewFanartClient(apiKey string, opts ...FanartOption) *FanartClient {
	c := &FanartClient{
		baseURL:   DefaultFanartBaseURL,
		apiKey:    apiKey,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultFanartTimeout,
		},
		limiter: newRateLimiter(1), // 1 request per second to be safe
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FanartAlbumResponse represents the Fanart.tv album response, keyed by
// release group MBID.
type FanartAlbumResponse struct {
	Name   string                 `json:"name"`
	MBID   string                 `json:"mbid_id"`
	Albums map[string]FanartAlbum `json:"albums"`
}

// FanartAlbum holds the images of one release group.
type FanartAlbum struct {
	AlbumCover []FanartImage `json:"albumcover"`
	CDArt      []FanartImage `json:"cdart"`
}

// FanartImage represents an image from Fanart.tv.
type FanartImage struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Likes string `json:"likes"`
}

// getLikes returns the likes count as an integer.
func (i FanartImage) getLikes() int {
	likes, _ := strconv.Atoi(i.Likes)
	return likes
}

// AlbumCovers lists the album covers for a release group, most liked first.
func (c *FanartClient) AlbumCovers(ctx context.Context, releaseGroupID string) ([]FanartImage, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("fanart.tv API key: %w", ErrNotConfigured)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := fmt.Sprintf("%s/albums/%s?api_key=%s", c.baseURL, releaseGroupID, c.apiKey)

	log.Debug().
		Str("mbid", releaseGroupID).
		Msg("Fetching album covers from Fanart.tv")

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

	// Keep the API key out of logs.
	if err := checkStatus(resp, c.baseURL+"/albums/"+releaseGroupID); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var albumResp FanartAlbumResponse
	if err := json.Unmarshal(body, &albumResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	images := albumResp.Albums[releaseGroupID].AlbumCover
	if len(images) == 0 {
		log.Debug().Str("mbid", releaseGroupID).Msg("No album covers in Fanart.tv response")
		return nil, ErrArtworkNotFound
	}

	sort.SliceStable(images, func(i, j int) bool {
		return images[i].getLikes() > images[j].getLikes()
	})
	return images, nil
}

// Download fetches one image listed by AlbumCovers.
func (c *FanartClient) Download(ctx context.Context, image FanartImage) (*FetchResult, error) {
	result, err := downloadImage(ctx, c.httpClient, c.userAgent, image.URL)
	if err != nil {
		return nil, err
	}
	result.Source = SourceFanartTV
	return result, nil
}

// IsConfigured returns true if the client has an API key configured.
func (c *FanartClient) IsConfigured() bool {
	return c.apiKey != ""
}
