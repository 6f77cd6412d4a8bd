// Package itunes provides a client for the iTunes Search API, used as the
// missing-work candidate provider: it supplies cover artwork and a source
// tag for works the bibliography lists but the library does not own.
package itunes
