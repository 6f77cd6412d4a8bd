// Package catalog persists the local library model in SQLite: authors, their
// books, acquisition jobs, and runtime settings.
//
// The Store manages the database connection, schema initialization with a
// version check, and every query the reconciler, dispatcher, importer, and
// HTTP surface need. Book identity is (author, normalized title); the jobs
// table enforces at most one non-terminal job per (author, normalized title)
// through a partial unique index, which is the dedup invariant the dispatcher
// relies on.
//
// Treat this package as the single source of truth for catalog semantics;
// schema changes bump the version in schema.go.
package catalog
