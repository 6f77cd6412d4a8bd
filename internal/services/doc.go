// Package services holds the shared plumbing for external integrations:
// sentinel error markers with transport classification, and context helpers
// that carry author/job/run identifiers for structured logging.
//
// Concrete clients live in subpackages (audiobookshelf, openlibrary, itunes,
// torznab, deluge). Each wraps its failures with the sentinels defined here so
// callers can distinguish expected outcomes (no indexer results) from real
// upstream faults.
package services
