package reconcile

import (
	"context"

	"bookarr/internal/catalog"
	"bookarr/internal/textutil"
)

// Matcher resolves item identities against local state with a deterministic
// precedence: the external identifier when one is present, then normalized
// name or title equality.
type Matcher struct {
	store *catalog.Store
}

// NewMatcher constructs a Matcher over the given store.
func NewMatcher(store *catalog.Store) *Matcher {
	return &Matcher{store: store}
}

// MatchAuthor finds an existing author by external identifier first, then by
// case-insensitive name. Returns nil when no author matches.
func (m *Matcher) MatchAuthor(ctx context.Context, externalID, name string) (*catalog.Author, error) {
	if externalID != "" {
		author, err := m.store.GetAuthorByExternalID(ctx, externalID)
		if err != nil {
			return nil, err
		}
		if author != nil {
			return author, nil
		}
	}
	return m.store.FindAuthorByName(ctx, name)
}

// MatchBook finds an existing book under the author by normalized title and
// returns it together with the normalized form. Returns (nil, normalized)
// when the author owns no such book.
func (m *Matcher) MatchBook(ctx context.Context, authorID int64, title string) (*catalog.Book, string, error) {
	normalized := textutil.NormalizeTitle(title)
	book, err := m.store.FindBookByTitle(ctx, authorID, normalized)
	if err != nil {
		return nil, normalized, err
	}
	return book, normalized, nil
}
