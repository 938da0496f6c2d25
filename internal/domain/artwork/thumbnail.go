package artwork

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	natomic "github.com/natefinch/atomic"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// ThumbnailSize is the bounding box edge of a thumbnail in pixels.
type ThumbnailSize int

const (
	// ThumbSmall is 150x150 pixels - for list views
	ThumbSmall ThumbnailSize = 150
	// ThumbMedium is 300x300 pixels - for grid views
	ThumbMedium ThumbnailSize = 300
	// ThumbLarge is 500x500 pixels - for detail views
	ThumbLarge ThumbnailSize = 500

	minThumbSize ThumbnailSize = 16
	maxThumbSize ThumbnailSize = 1024
)

var thumbnailSizes = []ThumbnailSize{ThumbSmall, ThumbMedium, ThumbLarge}

// ParseThumbnailSize maps a size name or pixel count to a ThumbnailSize.
func ParseThumbnailSize(s string) (ThumbnailSize, error) {
	switch s {
	case "small":
		return ThumbSmall, nil
	case "medium":
		return ThumbMedium, nil
	case "large":
		return ThumbLarge, nil
	}

	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid thumbnail size %q", s)
	}
	size := ThumbnailSize(n)
	if size < minThumbSize || size > maxThumbSize {
		return 0, fmt.Errorf("thumbnail size %d out of range [%d, %d]", n, minThumbSize, maxThumbSize)
	}
	return size, nil
}

// ThumbnailGenerator creates scaled copies of resolved artwork.
type ThumbnailGenerator struct {
	cacheDir string
}

// NewThumbnailGenerator creates a generator writing under cacheDir/thumbs.
func NewThumbnailGenerator(cacheDir string) *ThumbnailGenerator {
	return &ThumbnailGenerator{
		cacheDir: cacheDir,
	}
}

// GenerateThumbnail returns a JPEG thumbnail of sourcePath that fits within
// size, creating it when missing or older than the source.
func (g *ThumbnailGenerator) GenerateThumbnail(sourcePath string, key Key, size ThumbnailSize) (string, error) {
	thumbDir := filepath.Join(g.cacheDir, "thumbs")
	if err := os.MkdirAll(thumbDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	thumbPath := g.thumbPath(key, size)

	srcInfo, err := os.Stat(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat source image: %w", err)
	}
	if info, err := os.Stat(thumbPath); err == nil && !info.ModTime().Before(srcInfo.ModTime()) {
		return thumbPath, nil
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to open source image: %w", err)
	}
	defer src.Close()

	img, format, err := image.Decode(src)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	log.Debug().
		Str("source", sourcePath).
		Str("format", format).
		Int("size", int(size)).
		Msg("Generating thumbnail")

	thumb := g.resize(img, int(size))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	if err := natomic.WriteFile(thumbPath, &buf); err != nil {
		return "", fmt.Errorf("failed to write thumbnail file: %w", err)
	}

	return thumbPath, nil
}

// resize scales an image to fit within the given size while maintaining aspect ratio.
// Images already smaller than size are left at their original dimensions.
func (g *ThumbnailGenerator) resize(src image.Image, maxSize int) image.Image {
	bounds := src.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	var newW, newH int
	switch {
	case srcW <= maxSize && srcH <= maxSize:
		newW, newH = srcW, srcH
	case srcW > srcH:
		newW = maxSize
		newH = max(1, int(float64(srcH)*float64(maxSize)/float64(srcW)))
	default:
		newH = maxSize
		newW = max(1, int(float64(srcW)*float64(maxSize)/float64(srcH)))
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))

	// Scale using CatmullRom (high quality)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	return dst
}

// CleanupThumbnails removes the standard-size thumbnails for key.
func (g *ThumbnailGenerator) CleanupThumbnails(key Key) {
	for _, size := range thumbnailSizes {
		thumbPath := g.thumbPath(key, size)
		if err := os.Remove(thumbPath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", thumbPath).Msg("Failed to remove thumbnail")
		}
	}
}

func (g *ThumbnailGenerator) thumbPath(key Key, size ThumbnailSize) string {
	sum := sha1.Sum([]byte(key.Artist + "\x00" + key.Album + "\x00" + key.Path))
	return filepath.Join(g.cacheDir, "thumbs", fmt.Sprintf("%s_%d.jpg", hex.EncodeToString(sum[:8]), size))
}
