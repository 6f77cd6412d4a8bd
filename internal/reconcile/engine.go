package reconcile

import (
	"context"
	"log/slog"
	"slices"

	"bookarr/internal/catalog"
	"bookarr/internal/logging"
	"bookarr/internal/services"
	"bookarr/internal/services/audiobookshelf"
	"bookarr/internal/textutil"
)

// LibrarySource is the canonical-library surface the engine reads from.
type LibrarySource interface {
	ListItems(ctx context.Context) ([]audiobookshelf.Item, error)
	Normalize(item audiobookshelf.Item) audiobookshelf.NormalizedItem
}

// CoverCache persists remote covers locally after a successful sync write.
type CoverCache interface {
	EnsureLocal(ctx context.Context, book *catalog.Book) (string, error)
}

// Summary reports what a sync changed (or, for a dry run, would change).
type Summary struct {
	AuthorsAdded int `json:"authorsAdded"`
	BooksAdded   int `json:"booksAdded"`
	BooksUpdated int `json:"booksUpdated"`
	ItemsSkipped int `json:"itemsSkipped"`
}

// Engine reconciles canonical-library items into local authors and books.
type Engine struct {
	store   *catalog.Store
	library LibrarySource
	matcher *Matcher
	covers  CoverCache
	logger  *slog.Logger
}

// New constructs an Engine. The cover cache may be nil, in which case covers
// are left as remote references.
func New(store *catalog.Store, library LibrarySource, covers CoverCache, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		store:   store,
		library: library,
		matcher: NewMatcher(store),
		covers:  covers,
		logger:  logger.With(logging.String(logging.FieldComponent, "reconcile")),
	}
}

// Sync fetches the full canonical-library item list and upserts authors and
// books. The fetch happens before any write, so an upstream transport
// failure aborts the run with local state untouched. With dryRun set the
// diff is computed and returned without mutating anything.
func (e *Engine) Sync(ctx context.Context, dryRun bool) (Summary, error) {
	var summary Summary

	items, err := e.library.ListItems(ctx)
	if err != nil {
		return summary, services.Wrap(services.ErrUpstream, "audiobookshelf", "library sync", "fetch items", err)
	}
	e.logger.Info("library items fetched", logging.Int("items", len(items)), logging.Bool("dry_run", dryRun))

	// Track identities first seen during this run so a dry run (which
	// writes nothing) still deduplicates repeated sightings.
	seenAuthors := make(map[string]*catalog.Author)
	seenBooks := make(map[string]map[string]bool)

	for _, item := range items {
		normalized := e.library.Normalize(item)
		if normalized.Title == "" || len(normalized.Authors) == 0 {
			summary.ItemsSkipped++
			e.logger.Debug("skipping item without identity", logging.String("item", item.ID))
			continue
		}

		authorName := normalized.Authors[0]
		authorKey := textutil.NormalizeTitle(authorName)

		author, known := seenAuthors[authorKey]
		if !known {
			author, err = e.matcher.MatchAuthor(ctx, "", authorName)
			if err != nil {
				return summary, err
			}
			if author == nil {
				summary.AuthorsAdded++
				author = &catalog.Author{Name: authorName, Monitored: true}
				if !dryRun {
					if err := e.store.CreateAuthor(ctx, author); err != nil {
						return summary, err
					}
				}
			}
			seenAuthors[authorKey] = author
			seenBooks[authorKey] = make(map[string]bool)
		}

		titleKey := textutil.NormalizeTitle(normalized.Title)
		if seenBooks[authorKey][titleKey] {
			continue
		}
		seenBooks[authorKey][titleKey] = true

		var book *catalog.Book
		if author.ID != 0 {
			book, _, err = e.matcher.MatchBook(ctx, author.ID, normalized.Title)
			if err != nil {
				return summary, err
			}
		}

		switch {
		case book == nil:
			summary.BooksAdded++
			if dryRun {
				continue
			}
			book = &catalog.Book{
				AuthorID:        author.ID,
				Title:           normalized.Title,
				NormalizedTitle: titleKey,
				LibraryCoverURL: normalized.CoverURL,
				Narrators:       normalized.Narrators,
			}
			if err := e.store.InsertBook(ctx, book); err != nil {
				return summary, err
			}
		case bookChanged(book, normalized):
			summary.BooksUpdated++
			if dryRun {
				continue
			}
			if normalized.CoverURL != "" {
				book.LibraryCoverURL = normalized.CoverURL
			}
			if len(normalized.Narrators) > 0 {
				book.Narrators = normalized.Narrators
			}
			if err := e.store.UpdateBook(ctx, book); err != nil {
				return summary, err
			}
		default:
			// Unchanged metadata. A previous cover fetch may have
			// failed, so keep trying until a local copy exists.
			if !dryRun && book.CachedCoverPath == "" {
				e.cacheCover(ctx, book)
			}
			continue
		}

		if !dryRun {
			e.cacheCover(ctx, book)
		}
	}

	e.logger.Info("library sync finished",
		logging.Int("authors_added", summary.AuthorsAdded),
		logging.Int("books_added", summary.BooksAdded),
		logging.Int("books_updated", summary.BooksUpdated),
		logging.Bool("dry_run", dryRun))
	return summary, nil
}

// cacheCover is best-effort: a failed fetch leaves the remote reference in
// place and the next sync tries again.
func (e *Engine) cacheCover(ctx context.Context, book *catalog.Book) {
	if e.covers == nil {
		return
	}
	path, err := e.covers.EnsureLocal(ctx, book)
	if err != nil {
		e.logger.Warn("cover fetch failed", logging.Int64("book_id", book.ID), logging.Error(err))
		return
	}
	if path == "" || path == book.CachedCoverPath {
		return
	}
	book.CachedCoverPath = path
	if err := e.store.UpdateBook(ctx, book); err != nil {
		e.logger.Warn("cover path update failed", logging.Int64("book_id", book.ID), logging.Error(err))
	}
}

func bookChanged(book *catalog.Book, normalized audiobookshelf.NormalizedItem) bool {
	if book.LibraryCoverURL != normalized.CoverURL && normalized.CoverURL != "" {
		return true
	}
	return !slices.Equal(book.Narrators, normalized.Narrators) && len(normalized.Narrators) > 0
}
