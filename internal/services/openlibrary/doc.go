// Package openlibrary provides a client for the Open Library API, the
// bibliography provider that knows an author's full published works. The
// missing-work detector subtracts owned titles from the works listed here.
package openlibrary
