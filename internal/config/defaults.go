package config

const (
	defaultConfigPath      = "~/.config/stellar-art/config.toml"
	defaultMusicDir        = "~/Music"
	defaultCoversDir       = "~/.covers"
	defaultThumbnailsDir   = "~/.cache/stellar-art"
	defaultArtLocation     = "homecovers"
	defaultMaxImages       = 50
	defaultCacheBackend    = BackendFile
	defaultCachePath       = "~/.local/share/stellar-art/artwork.json"
	defaultSQLitePath      = "~/.local/share/stellar-art/artwork.db"
	defaultAutosaveSeconds = 30
	defaultMPDHost         = "localhost"
	defaultMPDPort         = 6600
	defaultRateLimit       = 1
	defaultServerPort      = 3002
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Cache backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Fetcher names accepted in artwork.fetchers, in their default order.
const (
	FetcherMPD             = "mpd"
	FetcherEmbedded        = "embedded"
	FetcherCoverArtArchive = "coverartarchive"
	FetcherFanartTV        = "fanarttv"
	FetcherQobuz           = "qobuz"
)

var knownFetchers = []string{
	FetcherMPD,
	FetcherEmbedded,
	FetcherCoverArtArchive,
	FetcherFanartTV,
	FetcherQobuz,
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Library: Library{
			MusicDirs: []string{defaultMusicDir},
		},
		Artwork: Artwork{
			CoversEnabled: true,
			ArtLocation:   defaultArtLocation,
			CoversDir:     defaultCoversDir,
			ThumbnailsDir: defaultThumbnailsDir,
			MaxImages:     defaultMaxImages,
			Fetchers:      append([]string(nil), knownFetchers...),
		},
		Cache: Cache{
			Backend:         defaultCacheBackend,
			AutosaveSeconds: defaultAutosaveSeconds,
		},
		MPD: MPD{
			Host: defaultMPDHost,
			Port: defaultMPDPort,
		},
		Enrichment: Enrichment{
			RateLimit: defaultRateLimit,
		},
		Server: Server{
			Port:  defaultServerPort,
			Watch: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
