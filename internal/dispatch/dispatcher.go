package dispatch

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"bookarr/internal/catalog"
	"bookarr/internal/logging"
	"bookarr/internal/notifications"
	"bookarr/internal/services"
	"bookarr/internal/services/torznab"
	"bookarr/internal/textutil"
)

// NoResultsReason is the terminal error recorded when the indexer has
// nothing for a title. It is an expected outcome, not a system fault.
const NoResultsReason = "no results"

// Indexer is the search surface the dispatcher queries.
type Indexer interface {
	Search(ctx context.Context, query string) ([]torznab.Candidate, error)
}

// DownloadClient submits a magnet and returns the client's transfer handle.
type DownloadClient interface {
	AddMagnet(ctx context.Context, magnetURL, label string) (string, error)
}

// Outcome reports one title's result from a bulk dispatch.
type Outcome struct {
	Title  string            `json:"title"`
	Status catalog.JobStatus `json:"status"`
	JobID  int64             `json:"jobId,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Dispatcher drives acquisition jobs from request through client submission.
type Dispatcher struct {
	store    *catalog.Store
	indexer  Indexer
	client   DownloadClient
	policy   Policy
	label    string
	notifier notifications.Service
	logger   *slog.Logger
}

// New constructs a Dispatcher. The notifier may be nil.
func New(store *catalog.Store, indexer Indexer, client DownloadClient, policy Policy, label string, notifier notifications.Service, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		store:    store,
		indexer:  indexer,
		client:   client,
		policy:   policy,
		label:    strings.TrimSpace(label),
		notifier: notifier,
		logger:   logger.With(logging.String(logging.FieldComponent, "dispatch")),
	}
}

// RequestDownload creates and advances an acquisition job for the title.
// When a non-terminal job already exists for (author, normalized title) it
// is returned unchanged: no search or submission happens. Search and client
// failures are recorded on the returned job, not raised as errors; only
// unknown authors and malformed requests error.
func (d *Dispatcher) RequestDownload(ctx context.Context, authorID int64, title, label string) (*catalog.Job, error) {
	author, err := d.store.GetAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "request download", "author "+strconv.FormatInt(authorID, 10), nil)
	}

	title = strings.TrimSpace(title)
	normalized := textutil.NormalizeTitle(title)
	if normalized == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "request download", "title must not be empty", nil)
	}

	existing, err := d.store.ActiveJobForTitle(ctx, authorID, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		d.logger.Debug("returning active job",
			logging.Int64(logging.FieldJobID, existing.ID),
			logging.String("title", title))
		return existing, nil
	}

	if label == "" {
		label = d.label
	}
	job := &catalog.Job{
		AuthorID:        authorID,
		Title:           title,
		NormalizedTitle: normalized,
		Label:           label,
	}
	if err := d.store.CreateJob(ctx, job); err != nil {
		// A concurrent request can slip between the dedup read and the
		// insert; the partial unique index rejects the loser, so hand
		// back the winner's job instead of surfacing the constraint.
		winner, lookupErr := d.store.ActiveJobForTitle(ctx, authorID, normalized)
		if lookupErr == nil && winner != nil {
			d.logger.Debug("returning active job after insert race",
				logging.Int64(logging.FieldJobID, winner.ID),
				logging.String("title", title))
			return winner, nil
		}
		return nil, err
	}

	d.advance(ctx, author, job)
	return job, nil
}

// RequestDownloadAll dispatches a batch of titles for one author
// sequentially. Failures are isolated per title: a FAILED outcome never
// stops later titles or rolls back earlier ones, and the aggregate never
// errors for a partial failure.
func (d *Dispatcher) RequestDownloadAll(ctx context.Context, authorID int64, titles []string) ([]Outcome, error) {
	author, err := d.store.GetAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "request download all", "author "+strconv.FormatInt(authorID, 10), nil)
	}

	outcomes := make([]Outcome, 0, len(titles))
	for _, title := range titles {
		job, err := d.RequestDownload(ctx, authorID, title, "")
		if err != nil {
			outcomes = append(outcomes, Outcome{Title: title, Status: catalog.JobFailed, Error: err.Error()})
			continue
		}
		outcome := Outcome{Title: title, Status: job.Status, JobID: job.ID}
		if job.ErrorMessage != "" {
			outcome.Error = job.ErrorMessage
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// advance runs the search and submission steps, recording every transition.
func (d *Dispatcher) advance(ctx context.Context, author *catalog.Author, job *catalog.Job) {
	if err := d.store.TransitionJob(ctx, job, catalog.JobSearching, ""); err != nil {
		d.logger.Error("transition to searching failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
		return
	}

	query := strings.TrimSpace(author.Name + " " + job.Title)
	candidates, err := d.indexer.Search(ctx, query)
	if err != nil {
		d.fail(ctx, author, job, err.Error())
		return
	}

	candidate, ok := d.policy.Select(job.NormalizedTitle, candidates)
	if !ok {
		d.fail(ctx, author, job, NoResultsReason)
		return
	}

	transferID, err := d.client.AddMagnet(ctx, candidate.Magnet, job.Label)
	if err != nil {
		d.fail(ctx, author, job, err.Error())
		return
	}

	job.Magnet = candidate.Magnet
	job.TransferID = transferID
	if err := d.store.TransitionJob(ctx, job, catalog.JobQueued, ""); err != nil {
		d.logger.Error("transition to queued failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
		return
	}

	d.logger.Info("download queued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("title", job.Title),
		logging.String("transfer_id", transferID))
	if d.notifier != nil {
		d.notifier.NotifyDownloadQueued(ctx, author.Name, job.Title)
	}
}

func (d *Dispatcher) fail(ctx context.Context, author *catalog.Author, job *catalog.Job, reason string) {
	if err := d.store.TransitionJob(ctx, job, catalog.JobFailed, reason); err != nil {
		d.logger.Error("transition to failed failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
		return
	}
	level := slog.LevelInfo
	if reason != NoResultsReason {
		level = slog.LevelWarn
	}
	d.logger.Log(ctx, level, "download failed",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("title", job.Title),
		logging.String("reason", reason))
	if d.notifier != nil && reason != NoResultsReason {
		d.notifier.NotifyDownloadFailed(ctx, author.Name, job.Title, reason)
	}
}
