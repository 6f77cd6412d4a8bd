// Package covers caches book cover artwork locally. Resolution preference
// is the cached local copy, then the canonical library's cover, then the
// bibliography provider's cover, then a generic placeholder; the first
// successful remote fetch is written to the cache so later renders do not
// re-hit the origin.
package covers
