package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const jobColumns = "id, author_id, title, normalized_title, status, magnet, transfer_id, label, error_message, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id         int64
		authorID   int64
		title      string
		normalized string
		statusStr  string
		magnet     sql.NullString
		transferID sql.NullString
		label      sql.NullString
		errMsg     sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&id, &authorID, &title, &normalized, &statusStr,
		&magnet, &transferID, &label, &errMsg, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		AuthorID:        authorID,
		Title:           title,
		NormalizedTitle: normalized,
		Status:          JobStatus(statusStr),
		Magnet:          magnet.String,
		TransferID:      transferID.String,
		Label:           label.String,
		ErrorMessage:    errMsg.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

// CreateJob inserts a new acquisition job. The partial unique index rejects a
// second non-terminal job for the same (author, normalized title).
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if job.Status == "" {
		job.Status = JobRequested
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (author_id, title, normalized_title, status, magnet, transfer_id, label, error_message, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.AuthorID,
		job.Title,
		job.NormalizedTitle,
		job.Status,
		nullableString(job.Magnet),
		nullableString(job.TransferID),
		nullableString(job.Label),
		nullableString(job.ErrorMessage),
		timestamp(now),
		timestamp(now),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	job.ID = id
	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

// GetJob fetches a job by identifier. Returns nil when absent.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ActiveJobForTitle returns the non-terminal job for (author, normalized
// title) when one exists.
func (s *Store) ActiveJobForTitle(ctx context.Context, authorID int64, normalizedTitle string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE author_id = ? AND normalized_title = ? AND status NOT IN (?, ?)
         ORDER BY id LIMIT 1`,
		authorID,
		normalizedTitle,
		JobImported,
		JobFailed,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active job for title: %w", err)
	}
	return job, nil
}

// UpdateJob persists changes to an existing job row.
func (s *Store) UpdateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, magnet = ?, transfer_id = ?, label = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		job.Status,
		nullableString(job.Magnet),
		nullableString(job.TransferID),
		nullableString(job.Label),
		nullableString(job.ErrorMessage),
		timestamp(job.UpdatedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// TransitionJob validates and persists a state machine step, recording an
// error message when moving to failed.
func (s *Store) TransitionJob(ctx context.Context, job *Job, next JobStatus, errorMessage string) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if !job.Status.CanTransition(next) {
		return fmt.Errorf("illegal job transition %s -> %s", job.Status, next)
	}
	job.Status = next
	if next == JobFailed {
		job.ErrorMessage = errorMessage
	} else if errorMessage != "" {
		job.ErrorMessage = errorMessage
	}
	return s.UpdateJob(ctx, job)
}

// ListJobs returns jobs filtered by status set (or all jobs when no status is
// provided), newest first.
func (s *Store) ListJobs(ctx context.Context, statuses ...JobStatus) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at DESC`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// JobStats returns job counts keyed by status.
func (s *Store) JobStats(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[JobStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[JobStatus(status)] = count
	}
	return stats, rows.Err()
}
