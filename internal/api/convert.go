package api

import (
	"net/http"
	"time"

	"bookarr/internal/catalog"
	"bookarr/internal/covers"
	"bookarr/internal/services"
	"bookarr/internal/services/openlibrary"
)

// FromAuthor converts a catalog author to its API representation.
func FromAuthor(author *catalog.Author) Author {
	if author == nil {
		return Author{}
	}
	return Author{
		ID:         author.ID,
		Name:       author.Name,
		ExternalID: author.ExternalID,
		ImageURL:   author.ImageURL,
		Monitored:  author.Monitored,
		BookCount:  author.BookCount,
		CreatedAt:  formatTime(author.CreatedAt),
		UpdatedAt:  formatTime(author.UpdatedAt),
	}
}

// FromAuthors converts a slice of catalog authors. Always returns a non-nil
// slice so listings encode as [] rather than null.
func FromAuthors(authors []*catalog.Author) []Author {
	out := make([]Author, 0, len(authors))
	for _, author := range authors {
		out = append(out, FromAuthor(author))
	}
	return out
}

// FromBook converts a catalog book, resolving the display cover.
func FromBook(book *catalog.Book) Book {
	if book == nil {
		return Book{}
	}
	return Book{
		ID:               book.ID,
		AuthorID:         book.AuthorID,
		Title:            book.Title,
		ExternalID:       book.ExternalID,
		FirstPublishYear: book.FirstPublishYear,
		CoverURL:         covers.Resolve(book),
		Narrators:        book.Narrators,
		CreatedAt:        formatTime(book.CreatedAt),
		UpdatedAt:        formatTime(book.UpdatedAt),
	}
}

// FromBooks converts a slice of catalog books.
func FromBooks(books []*catalog.Book) []Book {
	out := make([]Book, 0, len(books))
	for _, book := range books {
		out = append(out, FromBook(book))
	}
	return out
}

// FromJob converts a catalog job. The magnet link is deliberately omitted
// from API payloads.
func FromJob(job *catalog.Job) Job {
	if job == nil {
		return Job{}
	}
	return Job{
		ID:           job.ID,
		AuthorID:     job.AuthorID,
		Title:        job.Title,
		Status:       string(job.Status),
		TransferID:   job.TransferID,
		Label:        job.Label,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    formatTime(job.CreatedAt),
		UpdatedAt:    formatTime(job.UpdatedAt),
	}
}

// FromJobs converts a slice of catalog jobs.
func FromJobs(jobs []*catalog.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromAuthorSearch converts bibliography search hits.
func FromAuthorSearch(results []openlibrary.AuthorResult) []AuthorSearchResult {
	out := make([]AuthorSearchResult, 0, len(results))
	for _, result := range results {
		out = append(out, AuthorSearchResult{
			Name:       result.Name,
			ExternalID: result.ExternalID,
			ImageURL:   result.ImageURL,
			TopWork:    result.TopWork,
		})
	}
	return out
}

// FromJobStats converts job status counts to a string-keyed map.
func FromJobStats(stats map[catalog.JobStatus]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// HTTPStatus maps a classified error to its response status code.
func HTTPStatus(err error) int {
	switch services.Classify(err) {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound, services.KindNoMatch:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}
