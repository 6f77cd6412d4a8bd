package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const bookColumns = "id, author_id, title, normalized_title, external_id, first_publish_year, " +
	"cover_url, library_cover_url, cached_cover_path, narrators_json, created_at, updated_at"

func scanBook(scanner interface{ Scan(dest ...any) error }) (*Book, error) {
	var (
		id          int64
		authorID    int64
		title       string
		normalized  string
		externalID  sql.NullString
		publishYear sql.NullInt64
		coverURL    sql.NullString
		libraryURL  sql.NullString
		cachedPath  sql.NullString
		narrators   sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&id, &authorID, &title, &normalized, &externalID, &publishYear,
		&coverURL, &libraryURL, &cachedPath, &narrators, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	book := &Book{
		ID:              id,
		AuthorID:        authorID,
		Title:           title,
		NormalizedTitle: normalized,
		ExternalID:      externalID.String,
		CoverURL:        coverURL.String,
		LibraryCoverURL: libraryURL.String,
		CachedCoverPath: cachedPath.String,
		Narrators:       decodeNarrators(narrators),
	}
	if publishYear.Valid {
		book.FirstPublishYear = int(publishYear.Int64)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		book.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		book.UpdatedAt = updated
	}
	return book, nil
}

// InsertBook adds a book row for an author. NormalizedTitle must be set by
// the caller; the unique constraint rejects duplicate normalized titles.
func (s *Store) InsertBook(ctx context.Context, book *Book) error {
	if book == nil {
		return errors.New("book is nil")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO books (
            author_id, title, normalized_title, external_id, first_publish_year,
            cover_url, library_cover_url, cached_cover_path, narrators_json,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.AuthorID,
		book.Title,
		book.NormalizedTitle,
		nullableString(book.ExternalID),
		nullableInt(book.FirstPublishYear),
		nullableString(book.CoverURL),
		nullableString(book.LibraryCoverURL),
		nullableString(book.CachedCoverPath),
		encodeNarrators(book.Narrators),
		timestamp(now),
		timestamp(now),
	)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	book.ID = id
	book.CreatedAt = now
	book.UpdatedAt = now
	return nil
}

// UpdateBook persists changes to an existing book row.
func (s *Store) UpdateBook(ctx context.Context, book *Book) error {
	if book == nil {
		return errors.New("book is nil")
	}
	book.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE books
         SET title = ?, normalized_title = ?, external_id = ?, first_publish_year = ?,
             cover_url = ?, library_cover_url = ?, cached_cover_path = ?, narrators_json = ?,
             updated_at = ?
         WHERE id = ?`,
		book.Title,
		book.NormalizedTitle,
		nullableString(book.ExternalID),
		nullableInt(book.FirstPublishYear),
		nullableString(book.CoverURL),
		nullableString(book.LibraryCoverURL),
		nullableString(book.CachedCoverPath),
		encodeNarrators(book.Narrators),
		timestamp(book.UpdatedAt),
		book.ID,
	)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

// GetBook fetches a book by identifier. Returns nil when absent.
func (s *Store) GetBook(ctx context.Context, id int64) (*Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// FindBookByTitle fetches a book by its normalized title within an author.
func (s *Store) FindBookByTitle(ctx context.Context, authorID int64, normalizedTitle string) (*Book, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+bookColumns+` FROM books WHERE author_id = ? AND normalized_title = ?`,
		authorID,
		normalizedTitle,
	)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find book by title: %w", err)
	}
	return book, nil
}

// ListBooksByAuthor returns an author's books ordered by title.
func (s *Store) ListBooksByAuthor(ctx context.Context, authorID int64) ([]*Book, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+bookColumns+` FROM books WHERE author_id = ? ORDER BY title`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// CountBooks returns the total number of books in the catalog.
func (s *Store) CountBooks(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM books`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return count, nil
}
