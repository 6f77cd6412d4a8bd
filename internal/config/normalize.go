package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEndpoints()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeEndpoints() {
	c.Audiobookshelf.BaseURL = strings.TrimRight(strings.TrimSpace(c.Audiobookshelf.BaseURL), "/")
	c.Audiobookshelf.APIKey = strings.TrimSpace(c.Audiobookshelf.APIKey)
	if strings.TrimSpace(c.Audiobookshelf.Library) == "" {
		c.Audiobookshelf.Library = defaultABSLibrary
	}
	c.OpenLibrary.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenLibrary.BaseURL), "/")
	c.OpenLibrary.CoversURL = strings.TrimRight(strings.TrimSpace(c.OpenLibrary.CoversURL), "/")
	c.ITunes.BaseURL = strings.TrimRight(strings.TrimSpace(c.ITunes.BaseURL), "/")
	c.Indexer.URL = strings.TrimRight(strings.TrimSpace(c.Indexer.URL), "/")
	c.Indexer.APIKey = strings.TrimSpace(c.Indexer.APIKey)
	c.Deluge.Host = strings.TrimSpace(c.Deluge.Host)
	c.Deluge.URL = strings.TrimSpace(c.Deluge.URL)
	c.Deluge.Label = strings.TrimSpace(c.Deluge.Label)
	if c.Workflow.ImportPollInterval <= 0 {
		c.Workflow.ImportPollInterval = defaultImportPollInterval
	}
	if c.Workflow.RequestTimeoutSeconds <= 0 {
		c.Workflow.RequestTimeoutSeconds = defaultRequestTimeout
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
