package artwork

import (
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"os"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"  // BMP decoder
	_ "golang.org/x/image/webp" // WebP decoder
)

// Verdict classifies a located artwork file.
type Verdict int

const (
	// VerdictValid means the file decodes as an image.
	VerdictValid Verdict = iota
	// VerdictBlank is a zero-length placeholder: the user cleared the artwork.
	VerdictBlank
	// VerdictCorrupt is a non-empty file that does not decode.
	VerdictCorrupt
	// VerdictUnreadable means the file could not be opened or stat'ed, e.g.
	// because it vanished or is still being written.
	VerdictUnreadable
)

func (v Verdict) String() string {
	switch v {
	case VerdictValid:
		return "valid"
	case VerdictBlank:
		return "blank"
	case VerdictCorrupt:
		return "corrupt"
	default:
		return "unreadable"
	}
}

// Inspect reads just enough of path to classify it.
func Inspect(path string) Verdict {
	info, err := os.Stat(path)
	if err != nil {
		return VerdictUnreadable
	}
	if info.Size() == 0 {
		return VerdictBlank
	}

	f, err := os.Open(path)
	if err != nil {
		return VerdictUnreadable
	}
	defer f.Close()

	if _, _, err := image.DecodeConfig(f); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("Artwork file does not decode")
		return VerdictCorrupt
	}
	return VerdictValid
}

// DetectMimeType detects the MIME type from image data magic bytes.
func DetectMimeType(data []byte) string {
	if len(data) < 4 {
		return "application/octet-stream"
	}

	// JPEG: starts with FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}

	// PNG: starts with 89 50 4E 47 0D 0A 1A 0A
	if len(data) >= 8 &&
		data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G' &&
		data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A {
		return "image/png"
	}

	// GIF: starts with GIF87a or GIF89a
	if data[0] == 'G' && data[1] == 'I' && data[2] == 'F' && data[3] == '8' {
		return "image/gif"
	}

	// BMP: starts with BM
	if data[0] == 'B' && data[1] == 'M' {
		return "image/bmp"
	}

	// WebP: starts with RIFF....WEBP
	if len(data) >= 12 &&
		data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return "image/webp"
	}

	return "application/octet-stream"
}
