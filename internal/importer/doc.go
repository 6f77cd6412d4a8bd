// Package importer folds finished downloads back into the canonical
// library. It polls the download client for queued and downloading jobs,
// advances their state, moves completed content into the library's managed
// storage under a deterministic Author/Title path, and triggers a library
// scan so the item becomes visible.
package importer
