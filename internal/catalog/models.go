package catalog

import (
	"strings"
	"time"
)

// JobStatus represents the lifecycle of an acquisition job.
type JobStatus string

const (
	JobRequested   JobStatus = "requested"
	JobSearching   JobStatus = "searching"
	JobQueued      JobStatus = "queued"
	JobDownloading JobStatus = "downloading"
	JobCompleted   JobStatus = "completed"
	JobImported    JobStatus = "imported"
	JobFailed      JobStatus = "failed"
)

var allJobStatuses = []JobStatus{
	JobRequested,
	JobSearching,
	JobQueued,
	JobDownloading,
	JobCompleted,
	JobImported,
	JobFailed,
}

var jobStatusSet = func() map[JobStatus]struct{} {
	set := make(map[JobStatus]struct{}, len(allJobStatuses))
	for _, status := range allJobStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// validTransitions describes the forward edges of the job state machine.
// failed is additionally reachable from every non-terminal status.
var validTransitions = map[JobStatus][]JobStatus{
	JobRequested:   {JobSearching},
	JobSearching:   {JobQueued},
	JobQueued:      {JobDownloading},
	JobDownloading: {JobCompleted},
	JobCompleted:   {JobImported},
}

// AllJobStatuses returns the ordered list of known job statuses.
func AllJobStatuses() []JobStatus {
	cp := make([]JobStatus, len(allJobStatuses))
	copy(cp, allJobStatuses)
	return cp
}

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := jobStatusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends the job lifecycle.
func (s JobStatus) IsTerminal() bool {
	return s == JobImported || s == JobFailed
}

// CanTransition reports whether moving from s to next is a legal step.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == JobFailed {
		return true
	}
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Author is a monitored writer synced from the canonical library or added
// explicitly. ExternalID is the bibliography provider identifier when known.
type Author struct {
	ID         int64
	Name       string
	ExternalID string
	ImageURL   string
	Monitored  bool
	BookCount  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Book belongs to one Author; identity within an author is the normalized
// title, so cosmetic title variants update the same row.
type Book struct {
	ID               int64
	AuthorID         int64
	Title            string
	NormalizedTitle  string
	ExternalID       string
	FirstPublishYear int
	CoverURL         string
	LibraryCoverURL  string
	CachedCoverPath  string
	Narrators        []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Job tracks one acquisition attempt from request through download to import.
// Terminal rows are retained for the activity display.
type Job struct {
	ID              int64
	AuthorID        int64
	Title           string
	NormalizedTitle string
	Status          JobStatus
	Magnet          string
	TransferID      string
	Label           string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SetFailed marks the job as failed with the given reason.
func (j *Job) SetFailed(reason string) {
	j.Status = JobFailed
	j.ErrorMessage = reason
}
