// Package config loads, normalizes, and validates bookarr configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// daemon and CLI need: data/library/download directories, external service
// endpoints (Audiobookshelf, OpenLibrary, Torznab indexer, Deluge), candidate
// selection policy, and autosync defaults.
//
// File-backed values are static; credentials that operators change at runtime
// live in the catalog settings table and override these on read.
package config
