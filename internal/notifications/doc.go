// Package notifications delivers acquisition events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Enumerated event methods cover the major milestones — sync runs,
// queued downloads, completed imports, errors — so the pipeline components
// can emit consistent messages without duplicating HTTP glue.
package notifications
