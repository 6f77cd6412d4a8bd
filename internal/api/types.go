package api

import (
	"bookarr/internal/autosync"
	"bookarr/internal/dispatch"
	"bookarr/internal/importer"
	"bookarr/internal/missing"
	"bookarr/internal/reconcile"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Author describes a monitored author in a transport-friendly format.
type Author struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ExternalID string `json:"externalId,omitempty"`
	ImageURL   string `json:"imageUrl,omitempty"`
	Monitored  bool   `json:"monitored"`
	BookCount  int    `json:"bookCount"`
	CreatedAt  string `json:"createdAt,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// Book describes an owned book. CoverURL is the resolved display cover
// (cached file, then library, then bibliography, then the generic marker).
type Book struct {
	ID               int64    `json:"id"`
	AuthorID         int64    `json:"authorId"`
	Title            string   `json:"title"`
	ExternalID       string   `json:"externalId,omitempty"`
	FirstPublishYear int      `json:"firstPublishYear,omitempty"`
	CoverURL         string   `json:"coverUrl,omitempty"`
	Narrators        []string `json:"narrators,omitempty"`
	CreatedAt        string   `json:"createdAt,omitempty"`
	UpdatedAt        string   `json:"updatedAt,omitempty"`
}

// Job describes an acquisition job.
type Job struct {
	ID           int64  `json:"id"`
	AuthorID     int64  `json:"authorId"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	TransferID   string `json:"transferId,omitempty"`
	Label        string `json:"label,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// AuthorSearchResult is one bibliography-provider hit for an author query.
type AuthorSearchResult struct {
	Name       string `json:"name"`
	ExternalID string `json:"externalId"`
	ImageURL   string `json:"imageUrl,omitempty"`
	TopWork    string `json:"topWork,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	JobCounts    map[string]int `json:"jobCounts"`
	Autosync     autosync.State `json:"autosync"`
}

// AuthorListResponse wraps a collection of authors.
type AuthorListResponse struct {
	Authors []Author `json:"authors"`
}

// AuthorResponse wraps a single author.
type AuthorResponse struct {
	Author Author `json:"author"`
}

// AuthorSearchResponse wraps bibliography search hits.
type AuthorSearchResponse struct {
	Results []AuthorSearchResult `json:"results"`
}

// BookListResponse wraps a collection of books.
type BookListResponse struct {
	Books []Book `json:"books"`
}

// MissingWorksResponse wraps a detector result.
type MissingWorksResponse struct {
	Works []missing.Work `json:"works"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// OutcomeListResponse wraps itemized bulk download outcomes.
type OutcomeListResponse struct {
	Outcomes []dispatch.Outcome `json:"outcomes"`
}

// SyncResponse reports the result of a reconciliation run.
type SyncResponse struct {
	DryRun  bool              `json:"dryRun"`
	Summary reconcile.Summary `json:"summary"`
}

// ImportResponse reports an import pass. Entries carries the dry-run plan;
// Imported carries jobs that reached the library on an applied pass.
type ImportResponse struct {
	DryRun   bool                 `json:"dryRun"`
	Entries  []importer.PlanEntry `json:"entries,omitempty"`
	Imported []Job                `json:"imported,omitempty"`
}

// MagnetResponse reports a raw magnet submission.
type MagnetResponse struct {
	TransferID string `json:"transferId"`
	Label      string `json:"label,omitempty"`
}

// SettingsResponse wraps the masked runtime settings snapshot.
type SettingsResponse struct {
	Settings map[string]string `json:"settings"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
