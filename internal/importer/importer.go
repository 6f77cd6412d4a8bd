package importer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"bookarr/internal/catalog"
	"bookarr/internal/config"
	"bookarr/internal/logging"
	"bookarr/internal/notifications"
	"bookarr/internal/services/deluge"
	"bookarr/internal/textutil"
)

// TransferSource reports transfer state by handle.
type TransferSource interface {
	Status(ctx context.Context, transferID string) (deluge.TransferStatus, error)
}

// LibraryScanner triggers a canonical-library rescan after files land.
type LibraryScanner interface {
	TriggerScan(ctx context.Context) error
}

// PlanEntry is one intended move from a finished download into the library.
type PlanEntry struct {
	JobID  int64  `json:"jobId"`
	Author string `json:"author"`
	Title  string `json:"title"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Importer advances jobs from queued through imported.
type Importer struct {
	store     *catalog.Store
	transfers TransferSource
	scanner   LibraryScanner

	// move is swappable for tests.
	move func(source, target string) error

	libraryDir  string
	downloadDir string
	notifier    notifications.Service
	logger      *slog.Logger
}

// New constructs an Importer. The notifier may be nil.
func New(store *catalog.Store, transfers TransferSource, scanner LibraryScanner, cfg *config.Config, notifier notifications.Service, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = logging.NewNop()
	}
	imp := &Importer{
		store:     store,
		transfers: transfers,
		scanner:   scanner,
		move:      MoveEntry,
		notifier:  notifier,
		logger:    logger.With(logging.String(logging.FieldComponent, "importer")),
	}
	if cfg != nil {
		imp.libraryDir = cfg.Paths.LibraryDir
		imp.downloadDir = cfg.Paths.DownloadDir
	}
	return imp
}

// CheckAndImport polls the download client for every job in queued,
// downloading, or completed state, advances job states to match the client,
// and imports finished content. Per-job failures are recorded on the job
// and do not stop the batch. Returns the jobs that reached imported.
func (i *Importer) CheckAndImport(ctx context.Context) ([]*catalog.Job, error) {
	jobs, err := i.store.ListJobs(ctx, catalog.JobQueued, catalog.JobDownloading, catalog.JobCompleted)
	if err != nil {
		return nil, err
	}

	var imported []*catalog.Job
	for _, job := range jobs {
		done, err := i.processJob(ctx, job)
		if err != nil {
			i.logger.Warn("job import check failed",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.String("title", job.Title),
				logging.Error(err))
			continue
		}
		if done {
			imported = append(imported, job)
		}
	}
	return imported, nil
}

// Plan enumerates the moves CheckAndImport would perform, without touching
// the filesystem or triggering ingestion.
func (i *Importer) Plan(ctx context.Context) ([]PlanEntry, error) {
	jobs, err := i.store.ListJobs(ctx, catalog.JobQueued, catalog.JobDownloading, catalog.JobCompleted)
	if err != nil {
		return nil, err
	}

	entries := make([]PlanEntry, 0, len(jobs))
	for _, job := range jobs {
		if job.TransferID == "" {
			continue
		}
		status, err := i.transfers.Status(ctx, job.TransferID)
		if err != nil || !status.Finished {
			continue
		}
		author, err := i.store.GetAuthor(ctx, job.AuthorID)
		if err != nil || author == nil {
			continue
		}
		entries = append(entries, PlanEntry{
			JobID:  job.ID,
			Author: author.Name,
			Title:  job.Title,
			Source: i.sourcePath(status),
			Target: i.targetPath(author.Name, job.Title),
		})
	}
	return entries, nil
}

// processJob reconciles one job against the client and imports when ready.
// Returns true when the job reached imported.
func (i *Importer) processJob(ctx context.Context, job *catalog.Job) (bool, error) {
	if job.Status == catalog.JobCompleted {
		// A previous move or scan failed; retry the import without
		// re-downloading.
		return i.importCompleted(ctx, job, deluge.TransferStatus{})
	}

	if job.TransferID == "" {
		return false, nil
	}
	status, err := i.transfers.Status(ctx, job.TransferID)
	if err != nil {
		return false, err
	}

	if job.Status == catalog.JobQueued && status.Active() {
		if err := i.store.TransitionJob(ctx, job, catalog.JobDownloading, ""); err != nil {
			return false, err
		}
	}
	if !status.Finished {
		return false, nil
	}

	if job.Status == catalog.JobQueued {
		// The transfer finished before a poll ever saw it downloading.
		if err := i.store.TransitionJob(ctx, job, catalog.JobDownloading, ""); err != nil {
			return false, err
		}
	}
	if err := i.store.TransitionJob(ctx, job, catalog.JobCompleted, ""); err != nil {
		return false, err
	}
	return i.importCompleted(ctx, job, status)
}

// importCompleted moves content into the library and triggers a scan. A
// failure leaves the job at completed with the error attached so a later
// poll retries from the move step.
func (i *Importer) importCompleted(ctx context.Context, job *catalog.Job, status deluge.TransferStatus) (bool, error) {
	author, err := i.store.GetAuthor(ctx, job.AuthorID)
	if err != nil {
		return false, err
	}
	if author == nil {
		job.ErrorMessage = "author no longer exists"
		return false, i.store.UpdateJob(ctx, job)
	}

	if status.Name == "" && job.TransferID != "" {
		status, err = i.transfers.Status(ctx, job.TransferID)
		if err != nil {
			job.ErrorMessage = err.Error()
			if updateErr := i.store.UpdateJob(ctx, job); updateErr != nil {
				return false, updateErr
			}
			return false, err
		}
	}

	source := i.sourcePath(status)
	target := i.targetPath(author.Name, job.Title)

	if err := i.moveIntoLibrary(source, target); err != nil {
		job.ErrorMessage = err.Error()
		if updateErr := i.store.UpdateJob(ctx, job); updateErr != nil {
			return false, updateErr
		}
		return false, err
	}
	if err := i.scanner.TriggerScan(ctx); err != nil {
		job.ErrorMessage = err.Error()
		if updateErr := i.store.UpdateJob(ctx, job); updateErr != nil {
			return false, updateErr
		}
		return false, err
	}

	if err := i.store.TransitionJob(ctx, job, catalog.JobImported, ""); err != nil {
		return false, err
	}
	i.logger.Info("import complete",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("title", job.Title),
		logging.String("target", target))
	if i.notifier != nil {
		i.notifier.NotifyImportCompleted(ctx, author.Name, job.Title)
	}
	return true, nil
}

// moveIntoLibrary is a no-op when the content already sits at the target, so
// a retry after a scan failure does not error on the move step.
func (i *Importer) moveIntoLibrary(source, target string) error {
	if _, err := os.Stat(target); err == nil {
		if _, err := os.Stat(source); os.IsNotExist(err) {
			return nil
		}
	}
	return i.move(source, target)
}

func (i *Importer) sourcePath(status deluge.TransferStatus) string {
	dir := status.SavePath
	if dir == "" {
		dir = i.downloadDir
	}
	return filepath.Join(dir, status.Name)
}

func (i *Importer) targetPath(authorName, title string) string {
	return filepath.Join(i.libraryDir,
		textutil.SanitizePathSegment(authorName),
		textutil.SanitizePathSegment(title))
}
