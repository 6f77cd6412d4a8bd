package testsupport

import (
	"context"
	"testing"

	"bookarr/internal/catalog"
	"bookarr/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewAuthor creates an author row for tests using the provided store.
func NewAuthor(t testing.TB, store *catalog.Store, name, externalID string) *catalog.Author {
	t.Helper()

	author := &catalog.Author{Name: name, ExternalID: externalID, Monitored: true}
	if err := store.CreateAuthor(context.Background(), author); err != nil {
		t.Fatalf("store.CreateAuthor: %v", err)
	}
	return author
}

// NewBook creates a book row for tests using the provided store.
func NewBook(t testing.TB, store *catalog.Store, authorID int64, title, normalizedTitle string) *catalog.Book {
	t.Helper()

	book := &catalog.Book{AuthorID: authorID, Title: title, NormalizedTitle: normalizedTitle}
	if err := store.InsertBook(context.Background(), book); err != nil {
		t.Fatalf("store.InsertBook: %v", err)
	}
	return book
}
