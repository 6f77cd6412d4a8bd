package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"bookarr/internal/config"
)

// Setting keys persisted in the settings table. Operators can change these at
// runtime through the settings API; values override the TOML config on read.
const (
	SettingDelugeHost       = "deluge_host"
	SettingDelugePort       = "deluge_port"
	SettingDelugePassword   = "deluge_password"
	SettingDelugeURL        = "deluge_url"
	SettingDelugeLabel      = "deluge_label"
	SettingIndexerURL       = "indexer_url"
	SettingIndexerAPIKey    = "indexer_api_key"
	SettingABSBaseURL       = "abs_base_url"
	SettingABSAPIKey        = "abs_api_key"
	SettingAutosyncEnabled  = "autosync_enabled"
	SettingAutosyncInterval = "autosync_interval_hours"
)

// maskedValue replaces sensitive setting values in API snapshots.
const maskedValue = "***"

var sensitiveSettingKeys = map[string]struct{}{
	SettingDelugePassword: {},
	SettingIndexerAPIKey:  {},
	SettingABSAPIKey:      {},
}

func settingDefaults(cfg *config.Config) map[string]string {
	defaults := map[string]string{
		SettingDelugeHost:       "",
		SettingDelugePort:       "",
		SettingDelugePassword:   "",
		SettingDelugeURL:        "",
		SettingDelugeLabel:      "",
		SettingIndexerURL:       "",
		SettingIndexerAPIKey:    "",
		SettingABSBaseURL:       "",
		SettingABSAPIKey:        "",
		SettingAutosyncEnabled:  "false",
		SettingAutosyncInterval: strconv.Itoa(6),
	}
	if cfg != nil {
		defaults[SettingDelugeHost] = cfg.Deluge.Host
		defaults[SettingDelugePort] = strconv.Itoa(cfg.Deluge.Port)
		defaults[SettingDelugePassword] = cfg.Deluge.Password
		defaults[SettingDelugeURL] = cfg.Deluge.URL
		defaults[SettingDelugeLabel] = cfg.Deluge.Label
		defaults[SettingIndexerURL] = cfg.Indexer.URL
		defaults[SettingIndexerAPIKey] = cfg.Indexer.APIKey
		defaults[SettingABSBaseURL] = cfg.Audiobookshelf.BaseURL
		defaults[SettingABSAPIKey] = cfg.Audiobookshelf.APIKey
		defaults[SettingAutosyncEnabled] = strconv.FormatBool(cfg.Autosync.Enabled)
		defaults[SettingAutosyncInterval] = strconv.Itoa(cfg.Autosync.IntervalHours)
	}
	return defaults
}

// IsSensitiveSetting reports whether a key holds a credential.
func IsSensitiveSetting(key string) bool {
	_, ok := sensitiveSettingKeys[key]
	return ok
}

// EnsureSettingDefaults seeds every known setting key that is missing from
// the database using config-derived defaults.
func (s *Store) EnsureSettingDefaults(ctx context.Context, cfg *config.Config) error {
	existing, err := s.rawSettings(ctx)
	if err != nil {
		return err
	}
	for key, value := range settingDefaults(cfg) {
		if _, ok := existing[key]; ok {
			continue
		}
		if _, err := s.db.ExecContext(
			ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)`,
			key, value,
		); err != nil {
			return fmt.Errorf("seed setting %q: %w", key, err)
		}
	}
	return nil
}

// Settings returns the raw (unmasked) setting values. Missing keys fall back
// to config defaults.
func (s *Store) Settings(ctx context.Context, cfg *config.Config) (map[string]string, error) {
	values := settingDefaults(cfg)
	stored, err := s.rawSettings(ctx)
	if err != nil {
		return nil, err
	}
	for key, value := range stored {
		if _, known := values[key]; known {
			values[key] = value
		}
	}
	return values, nil
}

// MaskedSettings returns settings suitable for API responses: credential
// values are replaced with a placeholder when set.
func (s *Store) MaskedSettings(ctx context.Context, cfg *config.Config) (map[string]string, error) {
	values, err := s.Settings(ctx, cfg)
	if err != nil {
		return nil, err
	}
	for key := range sensitiveSettingKeys {
		if values[key] != "" {
			values[key] = maskedValue
		}
	}
	return values, nil
}

// UpdateSettings persists the provided key/value pairs. Unknown keys are
// ignored; empty values for sensitive keys never clobber a stored secret.
func (s *Store) UpdateSettings(ctx context.Context, cfg *config.Config, partial map[string]string) error {
	known := settingDefaults(cfg)
	for key, value := range partial {
		key = strings.TrimSpace(key)
		if _, ok := known[key]; !ok {
			continue
		}
		if IsSensitiveSetting(key) && strings.TrimSpace(value) == "" {
			continue
		}
		if _, err := s.db.ExecContext(
			ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
             ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value,
		); err != nil {
			return fmt.Errorf("update setting %q: %w", key, err)
		}
	}
	return nil
}

func (s *Store) rawSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key string
		var value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, rows.Err()
}
