package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	DownloadDir string `toml:"download_dir"`
	LibraryDir  string `toml:"library_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
}

// Audiobookshelf contains configuration for the canonical library API.
type Audiobookshelf struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Library string `toml:"library"`
}

// OpenLibrary contains configuration for the bibliography provider.
type OpenLibrary struct {
	BaseURL   string `toml:"base_url"`
	CoversURL string `toml:"covers_url"`
}

// ITunes contains configuration for the missing-work candidate provider.
type ITunes struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
}

// Indexer contains configuration for the Torznab search indexer.
type Indexer struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// Deluge contains configuration for the download client.
type Deluge struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	URL      string `toml:"url"`
	Password string `toml:"password"`
	Label    string `toml:"label"`
}

// Selection tunes release candidate ranking for the dispatcher. The ordering
// (title tier, then seeders, then size) is fixed; these knobs adjust the ties.
type Selection struct {
	PreferExactMatch bool  `toml:"prefer_exact_match"`
	ExpectedSizeMB   int64 `toml:"expected_size_mb"`
}

// Autosync contains the scheduler defaults applied when no persisted state exists.
type Autosync struct {
	Enabled       bool `toml:"enabled"`
	IntervalHours int  `toml:"interval_hours"`
}

// Workflow contains daemon timing configuration.
type Workflow struct {
	ImportPollInterval    int `toml:"import_poll_interval"`
	RequestTimeoutSeconds int `toml:"request_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for bookarr.
//
// Configuration sections by subsystem:
//   - Paths: data/download/library directories and API bind address
//   - Audiobookshelf: canonical library API connection
//   - OpenLibrary: bibliography provider endpoints
//   - ITunes: missing-work cover candidate provider
//   - Indexer: Torznab search endpoint
//   - Deluge: download client connection and default label
//   - Selection: release candidate ranking policy
//   - Autosync: scheduler defaults
//   - Workflow: daemon polling intervals and per-call timeouts
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths          Paths          `toml:"paths"`
	Audiobookshelf Audiobookshelf `toml:"audiobookshelf"`
	OpenLibrary    OpenLibrary    `toml:"openlibrary"`
	ITunes         ITunes         `toml:"itunes"`
	Indexer        Indexer        `toml:"indexer"`
	Deluge         Deluge         `toml:"deluge"`
	Selection      Selection      `toml:"selection"`
	Autosync       Autosync       `toml:"autosync"`
	Workflow       Workflow       `toml:"workflow"`
	Notifications  Notifications  `toml:"notifications"`
	Logging        Logging        `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bookarr/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. It also reports the
// resolved path and whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bookarr.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir and DownloadDir are created on a best-effort basis so the daemon
// can start while external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.CoversDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, dir := range []string{c.Paths.LibraryDir, c.Paths.DownloadDir} {
		if strings.TrimSpace(dir) != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return nil
}

// CoversDir returns the directory used for locally cached cover images.
func (c *Config) CoversDir() string {
	return filepath.Join(c.Paths.DataDir, "covers")
}

// DatabasePath returns the location of the catalog database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "bookarr.db")
}

// DelugeEndpoint returns the JSON-RPC endpoint URL, honoring the full-URL
// override before falling back to host/port.
func (c *Config) DelugeEndpoint() string {
	if url := strings.TrimSpace(c.Deluge.URL); url != "" {
		return strings.TrimRight(url, "/") + "/json"
	}
	return fmt.Sprintf("http://%s:%d/json", c.Deluge.Host, c.Deluge.Port)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
