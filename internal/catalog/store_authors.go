package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const authorColumns = "a.id, a.name, a.external_id, a.image_url, a.monitored, a.created_at, a.updated_at, " +
	"(SELECT COUNT(1) FROM books b WHERE b.author_id = a.id) AS book_count"

func scanAuthor(scanner interface{ Scan(dest ...any) error }) (*Author, error) {
	var (
		id         int64
		name       string
		externalID sql.NullString
		imageURL   sql.NullString
		monitored  sql.NullInt64
		createdRaw sql.NullString
		updatedRaw sql.NullString
		bookCount  int
	)
	if err := scanner.Scan(&id, &name, &externalID, &imageURL, &monitored, &createdRaw, &updatedRaw, &bookCount); err != nil {
		return nil, err
	}

	author := &Author{
		ID:         id,
		Name:       name,
		ExternalID: externalID.String,
		ImageURL:   imageURL.String,
		BookCount:  bookCount,
	}
	if monitored.Valid {
		author.Monitored = monitored.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		author.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		author.UpdatedAt = updated
	}
	return author, nil
}

// CreateAuthor inserts a new author and assigns its identifier.
func (s *Store) CreateAuthor(ctx context.Context, author *Author) error {
	if author == nil {
		return errors.New("author is nil")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO authors (name, external_id, image_url, monitored, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		author.Name,
		nullableString(author.ExternalID),
		nullableString(author.ImageURL),
		boolToInt(author.Monitored),
		timestamp(now),
		timestamp(now),
	)
	if err != nil {
		return fmt.Errorf("insert author: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	author.ID = id
	author.CreatedAt = now
	author.UpdatedAt = now
	return nil
}

// GetAuthor fetches an author by identifier. Returns nil when absent.
func (s *Store) GetAuthor(ctx context.Context, id int64) (*Author, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+authorColumns+` FROM authors a WHERE a.id = ?`, id)
	author, err := scanAuthor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get author: %w", err)
	}
	return author, nil
}

// GetAuthorByExternalID fetches an author by its bibliography identifier.
func (s *Store) GetAuthorByExternalID(ctx context.Context, externalID string) (*Author, error) {
	if externalID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+authorColumns+` FROM authors a WHERE a.external_id = ?`, externalID)
	author, err := scanAuthor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get author by external id: %w", err)
	}
	return author, nil
}

// FindAuthorByName fetches an author by case-insensitive name match.
func (s *Store) FindAuthorByName(ctx context.Context, name string) (*Author, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+authorColumns+` FROM authors a WHERE lower(a.name) = lower(?) ORDER BY a.id LIMIT 1`,
		name,
	)
	author, err := scanAuthor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find author by name: %w", err)
	}
	return author, nil
}

// ListAuthors returns all authors ordered by name with denormalized book counts.
func (s *Store) ListAuthors(ctx context.Context) ([]*Author, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+authorColumns+` FROM authors a ORDER BY a.name`)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	defer rows.Close()

	var authors []*Author
	for rows.Next() {
		author, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		authors = append(authors, author)
	}
	return authors, rows.Err()
}

// UpdateAuthor persists changes to an existing author row.
func (s *Store) UpdateAuthor(ctx context.Context, author *Author) error {
	if author == nil {
		return errors.New("author is nil")
	}
	author.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE authors SET name = ?, external_id = ?, image_url = ?, monitored = ?, updated_at = ? WHERE id = ?`,
		author.Name,
		nullableString(author.ExternalID),
		nullableString(author.ImageURL),
		boolToInt(author.Monitored),
		timestamp(author.UpdatedAt),
		author.ID,
	)
	if err != nil {
		return fmt.Errorf("update author: %w", err)
	}
	return nil
}

// DeleteAuthor removes an author; owned books and jobs cascade.
func (s *Store) DeleteAuthor(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM authors WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete author: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
