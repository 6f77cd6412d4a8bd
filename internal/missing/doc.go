// Package missing computes the set difference between an author's known
// bibliography and the books the library owns. Detection is read-only:
// missing works are ephemeral value objects recomputed on demand, never
// persisted.
package missing
