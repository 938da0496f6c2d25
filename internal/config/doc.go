// Package config loads, normalizes, and validates stellar-art configuration.
//
// Defaults cover a single music directory with covers stored under
// ~/.covers. Files are TOML; credentials may also come from the environment
// (FANART_API_KEY, QOBUZ_APP_ID, QOBUZ_APP_SECRET, MPD_PASSWORD).
package config
