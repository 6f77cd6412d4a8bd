package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAutosync(); err != nil {
		return err
	}
	if err := c.validateDeluge(); err != nil {
		return err
	}
	if err := c.validateSelection(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		return errors.New("paths.download_dir must be set")
	}
	return nil
}

func (c *Config) validateAutosync() error {
	if !ValidAutosyncInterval(c.Autosync.IntervalHours) {
		return fmt.Errorf("autosync.interval_hours must be one of %v", AutosyncIntervals)
	}
	return nil
}

func (c *Config) validateDeluge() error {
	if strings.TrimSpace(c.Deluge.URL) != "" {
		return nil
	}
	if strings.TrimSpace(c.Deluge.Host) == "" {
		return errors.New("deluge.host must be set when deluge.url is empty")
	}
	if c.Deluge.Port <= 0 || c.Deluge.Port > 65535 {
		return errors.New("deluge.port must be a valid TCP port")
	}
	return nil
}

func (c *Config) validateSelection() error {
	if c.Selection.ExpectedSizeMB < 0 {
		return errors.New("selection.expected_size_mb must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// AutosyncIntervalList renders the accepted intervals for error messages.
func AutosyncIntervalList() string {
	parts := make([]string, len(AutosyncIntervals))
	for i, hours := range AutosyncIntervals {
		parts[i] = fmt.Sprintf("%dh", hours)
	}
	return strings.Join(parts, ", ")
}

// ValidAutosyncInterval reports whether hours is an accepted autosync interval.
func ValidAutosyncInterval(hours int) bool {
	for _, allowed := range AutosyncIntervals {
		if hours == allowed {
			return true
		}
	}
	return false
}
