package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bookarr/internal/catalog"
	"bookarr/internal/config"
	"bookarr/internal/services/deluge"
	"bookarr/internal/testsupport"
)

type fakeTransfers struct {
	statuses map[string]deluge.TransferStatus
	err      error
}

func (f *fakeTransfers) Status(ctx context.Context, transferID string) (deluge.TransferStatus, error) {
	if f.err != nil {
		return deluge.TransferStatus{}, f.err
	}
	status, ok := f.statuses[transferID]
	if !ok {
		return deluge.TransferStatus{}, errors.New("unknown transfer")
	}
	return status, nil
}

type fakeScanner struct {
	calls int
	err   error
}

func (f *fakeScanner) TriggerScan(ctx context.Context) error {
	f.calls++
	return f.err
}

func importerFixture(t *testing.T, transfers *fakeTransfers, scanner *fakeScanner) (*Importer, *catalog.Store, *config.Config, *catalog.Author) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	author := testsupport.NewAuthor(t, store, "Brandon Sanderson", "OL1A")
	imp := New(store, transfers, scanner, cfg, nil, nil)
	return imp, store, cfg, author
}

func queuedJob(t *testing.T, store *catalog.Store, authorID int64, title, transferID string) *catalog.Job {
	t.Helper()
	ctx := context.Background()
	job := &catalog.Job{AuthorID: authorID, Title: title, NormalizedTitle: title, TransferID: transferID}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	for _, status := range []catalog.JobStatus{catalog.JobSearching, catalog.JobQueued} {
		if err := store.TransitionJob(ctx, job, status, ""); err != nil {
			t.Fatalf("TransitionJob to %s: %v", status, err)
		}
	}
	return job
}

func writeDownload(t *testing.T, dir, name string) string {
	t.Helper()
	source := filepath.Join(dir, name)
	if err := os.MkdirAll(source, 0o755); err != nil {
		t.Fatalf("create download dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(source, "book.m4b"), []byte("audio"), 0o644); err != nil {
		t.Fatalf("write download file: %v", err)
	}
	return source
}

func TestCheckAndImportAdvancesToDownloading(t *testing.T) {
	transfers := &fakeTransfers{statuses: map[string]deluge.TransferStatus{
		"tid-1": {Name: "Warbreaker", State: "Downloading", Progress: 40},
	}}
	imp, store, _, author := importerFixture(t, transfers, &fakeScanner{})
	job := queuedJob(t, store, author.ID, "Warbreaker", "tid-1")

	imported, err := imp.CheckAndImport(context.Background())
	if err != nil {
		t.Fatalf("CheckAndImport: %v", err)
	}
	if len(imported) != 0 {
		t.Fatalf("nothing should import yet, got %d", len(imported))
	}

	got, _ := store.GetJob(context.Background(), job.ID)
	if got.Status != catalog.JobDownloading {
		t.Fatalf("expected downloading, got %s", got.Status)
	}
}

func TestCheckAndImportFinishedTransfer(t *testing.T) {
	scanner := &fakeScanner{}
	transfers := &fakeTransfers{statuses: map[string]deluge.TransferStatus{}}
	imp, store, cfg, author := importerFixture(t, transfers, scanner)

	source := writeDownload(t, cfg.Paths.DownloadDir, "Warbreaker.m4b.d")
	transfers.statuses["tid-1"] = deluge.TransferStatus{
		Name:     "Warbreaker.m4b.d",
		State:    "Seeding",
		SavePath: cfg.Paths.DownloadDir,
		Finished: true,
	}
	job := queuedJob(t, store, author.ID, "Warbreaker", "tid-1")

	imported, err := imp.CheckAndImport(context.Background())
	if err != nil {
		t.Fatalf("CheckAndImport: %v", err)
	}
	if len(imported) != 1 || imported[0].ID != job.ID {
		t.Fatalf("expected job imported, got %#v", imported)
	}

	got, _ := store.GetJob(context.Background(), job.ID)
	if got.Status != catalog.JobImported {
		t.Fatalf("expected imported, got %s (%s)", got.Status, got.ErrorMessage)
	}

	target := filepath.Join(cfg.Paths.LibraryDir, "Brandon Sanderson", "Warbreaker", "book.m4b")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected file in library: %v", err)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatal("source should be gone after move")
	}
	if scanner.calls != 1 {
		t.Fatalf("expected 1 scan, got %d", scanner.calls)
	}
}

func TestScanFailureLeavesJobCompleted(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("scan unavailable")}
	transfers := &fakeTransfers{statuses: map[string]deluge.TransferStatus{}}
	imp, store, cfg, author := importerFixture(t, transfers, scanner)

	writeDownload(t, cfg.Paths.DownloadDir, "Warbreaker")
	transfers.statuses["tid-1"] = deluge.TransferStatus{
		Name:     "Warbreaker",
		SavePath: cfg.Paths.DownloadDir,
		Finished: true,
	}
	job := queuedJob(t, store, author.ID, "Warbreaker", "tid-1")

	if _, err := imp.CheckAndImport(context.Background()); err != nil {
		t.Fatalf("CheckAndImport: %v", err)
	}

	got, _ := store.GetJob(context.Background(), job.ID)
	if got.Status != catalog.JobCompleted {
		t.Fatalf("expected completed after scan failure, got %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatal("expected error message on job")
	}

	// Once the scanner recovers, the next poll resumes from the move step
	// without re-downloading.
	scanner.err = nil
	imported, err := imp.CheckAndImport(context.Background())
	if err != nil {
		t.Fatalf("retry CheckAndImport: %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("expected retry to import, got %d", len(imported))
	}
	got, _ = store.GetJob(context.Background(), job.ID)
	if got.Status != catalog.JobImported {
		t.Fatalf("expected imported after retry, got %s", got.Status)
	}
}

func TestPlanIsPure(t *testing.T) {
	transfers := &fakeTransfers{statuses: map[string]deluge.TransferStatus{}}
	imp, store, cfg, author := importerFixture(t, transfers, &fakeScanner{})

	source := writeDownload(t, cfg.Paths.DownloadDir, "Warbreaker")
	transfers.statuses["tid-1"] = deluge.TransferStatus{
		Name:     "Warbreaker",
		SavePath: cfg.Paths.DownloadDir,
		Finished: true,
	}
	transfers.statuses["tid-2"] = deluge.TransferStatus{
		Name:  "Elantris",
		State: "Downloading",
	}
	job := queuedJob(t, store, author.ID, "Warbreaker", "tid-1")
	queuedJob(t, store, author.ID, "Elantris", "tid-2")

	entries, err := imp.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 plan entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.JobID != job.ID || entry.Source != source {
		t.Fatalf("unexpected entry: %#v", entry)
	}
	wantTarget := filepath.Join(cfg.Paths.LibraryDir, "Brandon Sanderson", "Warbreaker")
	if entry.Target != wantTarget {
		t.Fatalf("unexpected target %q, want %q", entry.Target, wantTarget)
	}

	// Nothing moved, no state changed.
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("source must be untouched: %v", err)
	}
	got, _ := store.GetJob(context.Background(), job.ID)
	if got.Status != catalog.JobQueued {
		t.Fatalf("plan must not advance jobs, got %s", got.Status)
	}
}

func TestMoveEntryFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "book.m4b")
	if err := os.WriteFile(source, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	target := filepath.Join(dir, "library", "Author", "Title", "book.m4b")
	if err := MoveEntry(source, target); err != nil {
		t.Fatalf("MoveEntry: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if string(data) != "audio" {
		t.Fatalf("unexpected content %q", data)
	}
}
