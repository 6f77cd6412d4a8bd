package testsupport

import (
	"path/filepath"
	"testing"

	"bookarr/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithAudiobookshelf points the test config at a stub library server.
func WithAudiobookshelf(baseURL, apiKey string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Audiobookshelf.BaseURL = baseURL
		cfg.Audiobookshelf.APIKey = apiKey
	}
}

// WithIndexer points the test config at a stub Torznab server.
func WithIndexer(url, apiKey string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Indexer.URL = url
		cfg.Indexer.APIKey = apiKey
	}
}

// WithDelugeURL points the test config at a stub download client.
func WithDelugeURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Deluge.URL = url
	}
}
