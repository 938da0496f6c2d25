package enrichment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultCAABaseURL is the Cover Art Archive API base URL
	DefaultCAABaseURL = "https://coverartarchive.org"

	// DefaultUserAgent follows MusicBrainz guidelines
	DefaultUserAgent = "StellarArtwork/0.1.0 (https://github.com/edumarques81/stellar-artwork)"

	// DefaultRateLimit is 1 request per second (MusicBrainz guideline)
	DefaultRateLimit = 1

	// DefaultTimeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// MaxImageSize is the maximum image size to download (10MB)
	MaxImageSize = 10 * 1024 * 1024
)

// ErrImageTooLarge is returned when a download exceeds MaxImageSize.
var ErrImageTooLarge = errors.New("image exceeds size limit")

// CAAClient is a client for the Cover Art Archive API
type CAAClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	rateLimit  int
	limiter    *rateLimiter
}

// CAAOption is a functional option for configuring the CAA client
type CAAOption func(*CAAClient)

// WithBaseURL sets a custom base URL (useful for testing)
func WithBaseURL(url string) CAAOption {
	return func(c *CAAClient) {
		c.baseURL = url
	}
}

// WithUserAgent sets a custom User-Agent header
func WithUserAgent(ua string) CAAOption {
	return func(c *CAAClient) {
		c.userAgent = ua
	}
}

// WithRateLimit sets the rate limit in requests per second
func WithRateLimit(rps int) CAAOption {
	return func(c *CAAClient) {
		c.rateLimit = rps
		c.limiter = newRateLimiter(rps)
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) CAAOption {
	return func(c *CAAClient) {
		c.httpClient = client
	}
}

// NewCAAClient creates a new Cover Art Archive client
func NewCAAClient(opts ...CAAOption) *CAAClient {
	c := &CAAClient{
		baseURL:   DefaultCAABaseURL,
		userAgent: DefaultUserAgent,
		rateLimit: DefaultRateLimit,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.limiter == nil {
		c.limiter = newRateLimiter(c.rateLimit)
	}

	return c
}

// FetchAlbumArt fetches the front cover of a release.
func (c *CAAClient) FetchAlbumArt(ctx context.Context, mbid string) (*FetchResult, error) {
	return c.fetchFront(ctx, "release", mbid)
}

// FetchReleaseGroupArt fetches the front cover chosen for a release group.
func (c *CAAClient) FetchReleaseGroupArt(ctx context.Context, mbid string) (*FetchResult, error) {
	return c.fetchFront(ctx, "release-group", mbid)
}

func (c *CAAClient) fetchFront(ctx context.Context, entity, mbid string) (*FetchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/front", c.baseURL, entity, mbid)

	log.Debug().
		Str("entity", entity).
		Str("mbid", mbid).
		Msg("Fetching front cover from CAA")

	result, err := downloadImage(ctx, c.httpClient, c.userAgent, url)
	if err != nil {
		if errors.Is(err, ErrArtworkNotFound) {
			log.Debug().Str("mbid", mbid).Msg("Front cover not found in CAA")
		}
		return nil, err
	}
	result.Source = SourceCoverArtArchive
	return result, nil
}

// downloadImage GETs an image URL, mapping HTTP status codes onto the
// package errors.
func downloadImage(ctx context.Context, client *http.Client, userAgent, url string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, url); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, ErrArtworkNotFound
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = detectMimeType(data)
	}

	return &FetchResult{
		Data:     data,
		MimeType: contentType,
	}, nil
}

// checkStatus classifies a response status.
func checkStatus(resp *http.Response, url string) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrArtworkNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		log.Warn().Str("url", url).Int("status", resp.StatusCode).Msg("Request rejected")
		return ErrNotConfigured
	case http.StatusTooManyRequests:
		log.Warn().Str("url", url).Msg("Rate limit exceeded")
		return ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		log.Warn().Str("url", url).Int("status", resp.StatusCode).Msg("Temporary error")
		return ErrTemporaryFailure
	default:
		log.Warn().Str("url", url).Int("status", resp.StatusCode).Msg("Unexpected status")
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}

// detectMimeType detects the MIME type from image data
func detectMimeType(data []byte) string {
	if len(data) < 4 {
		return "application/octet-stream"
	}

	switch {
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46:
		return "image/gif"
	case data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46:
		// RIFF header - could be WebP
		if len(data) >= 12 && data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
			return "image/webp"
		}
	}

	return "application/octet-stream"
}

// rateLimiter spaces requests at least interval apart
type rateLimiter struct {
	mu          sync.Mutex
	interval    time.Duration
	lastRequest time.Time
}

func newRateLimiter(requestsPerSecond int) *rateLimiter {
	if requestsPerSecond <= 0 {
		return &rateLimiter{}
	}
	return &rateLimiter{
		interval: time.Second / time.Duration(requestsPerSecond),
	}
}

// Wait blocks until a request can be made
func (r *rateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	nextAllowed := r.lastRequest.Add(r.interval)

	if now.Before(nextAllowed) {
		select {
		case <-time.After(nextAllowed.Sub(now)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.lastRequest = time.Now()
	return nil
}
