package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"bookarr/internal/catalog"
	"bookarr/internal/services"
	"bookarr/internal/services/torznab"
	"bookarr/internal/testsupport"
)

type fakeIndexer struct {
	results map[string][]torznab.Candidate
	err     error
	calls   int
}

func (f *fakeIndexer) Search(ctx context.Context, query string) ([]torznab.Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for key, candidates := range f.results {
		if key == query {
			return candidates, nil
		}
	}
	return []torznab.Candidate{}, nil
}

type fakeClient struct {
	err   error
	calls int
	added []string
}

func (f *fakeClient) AddMagnet(ctx context.Context, magnetURL, label string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	f.added = append(f.added, magnetURL)
	return "transfer-" + magnetURL[len(magnetURL)-4:], nil
}

func candidateFor(title string) torznab.Candidate {
	return torznab.Candidate{
		Title:   title,
		Magnet:  "magnet:?xt=urn:btih:" + hash(title),
		Seeders: 10,
		Size:    500 * 1024 * 1024,
	}
}

func newDispatcher(t *testing.T, indexer *fakeIndexer, client *fakeClient) (*Dispatcher, *catalog.Store, *catalog.Author) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	author := testsupport.NewAuthor(t, store, "Brandon Sanderson", "OL1A")
	dispatcher := New(store, indexer, client, Policy{PreferExactMatch: true}, "bookarr", nil, nil)
	return dispatcher, store, author
}

func TestRequestDownloadQueuesJob(t *testing.T) {
	indexer := &fakeIndexer{results: map[string][]torznab.Candidate{
		"Brandon Sanderson Warbreaker": {candidateFor("Warbreaker")},
	}}
	client := &fakeClient{}
	dispatcher, _, author := newDispatcher(t, indexer, client)

	job, err := dispatcher.RequestDownload(context.Background(), author.ID, "Warbreaker", "")
	if err != nil {
		t.Fatalf("RequestDownload: %v", err)
	}
	if job.Status != catalog.JobQueued {
		t.Fatalf("expected queued, got %s (%s)", job.Status, job.ErrorMessage)
	}
	if job.TransferID == "" || job.Magnet == "" {
		t.Fatalf("expected transfer handle and magnet, got %#v", job)
	}
	if job.Label != "bookarr" {
		t.Fatalf("expected default label, got %q", job.Label)
	}
}

func TestRequestDownloadDedup(t *testing.T) {
	indexer := &fakeIndexer{results: map[string][]torznab.Candidate{
		"Brandon Sanderson Warbreaker": {candidateFor("Warbreaker")},
	}}
	client := &fakeClient{}
	dispatcher, _, author := newDispatcher(t, indexer, client)

	first, err := dispatcher.RequestDownload(context.Background(), author.ID, "Warbreaker", "")
	if err != nil {
		t.Fatalf("first RequestDownload: %v", err)
	}
	second, err := dispatcher.RequestDownload(context.Background(), author.ID, "warbreaker!", "")
	if err != nil {
		t.Fatalf("second RequestDownload: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected same job, got %d and %d", first.ID, second.ID)
	}
	if indexer.calls != 1 || client.calls != 1 {
		t.Fatalf("dedup must not re-search or re-submit: %d searches, %d submissions", indexer.calls, client.calls)
	}
}

type countingIndexer struct {
	calls     atomic.Int32
	candidate torznab.Candidate
}

func (c *countingIndexer) Search(ctx context.Context, query string) ([]torznab.Candidate, error) {
	c.calls.Add(1)
	return []torznab.Candidate{c.candidate}, nil
}

type countingClient struct {
	calls atomic.Int32
}

func (c *countingClient) AddMagnet(ctx context.Context, magnetURL, label string) (string, error) {
	c.calls.Add(1)
	return "transfer-1", nil
}

func TestRequestDownloadConcurrentDedup(t *testing.T) {
	indexer := &countingIndexer{candidate: candidateFor("Warbreaker")}
	client := &countingClient{}
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	author := testsupport.NewAuthor(t, store, "Brandon Sanderson", "OL1A")
	dispatcher := New(store, indexer, client, Policy{PreferExactMatch: true}, "bookarr", nil, nil)

	const workers = 32
	jobs := make([]*catalog.Job, workers)
	errs := make([]error, workers)
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(workers)
	for i := range workers {
		go func() {
			defer done.Done()
			start.Wait()
			jobs[i], errs[i] = dispatcher.RequestDownload(context.Background(), author.ID, "Warbreaker", "")
		}()
	}
	start.Done()
	done.Wait()

	// Every racer gets the same job back; the losers of the insert race
	// must resolve to the winner's row, never surface the constraint.
	for i := range workers {
		if errs[i] != nil {
			t.Fatalf("request %d: %v", i, errs[i])
		}
		if jobs[i] == nil || jobs[i].ID != jobs[0].ID {
			t.Fatalf("request %d returned a different job: %#v", i, jobs[i])
		}
	}
	if got := indexer.calls.Load(); got != 1 {
		t.Fatalf("expected 1 search, got %d", got)
	}
	if got := client.calls.Load(); got != 1 {
		t.Fatalf("expected 1 submission, got %d", got)
	}

	all, err := store.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected a single job row, got %d", len(all))
	}
}

func TestRequestDownloadNoResults(t *testing.T) {
	indexer := &fakeIndexer{}
	client := &fakeClient{}
	dispatcher, _, author := newDispatcher(t, indexer, client)

	job, err := dispatcher.RequestDownload(context.Background(), author.ID, "Unobtainium", "")
	if err != nil {
		t.Fatalf("no results must not be a system error: %v", err)
	}
	if job.Status != catalog.JobFailed || job.ErrorMessage != NoResultsReason {
		t.Fatalf("expected failed with no-results reason, got %#v", job)
	}
	if client.calls != 0 {
		t.Fatal("no submission should happen without a candidate")
	}

	// A different title for the same author is unaffected.
	indexer.results = map[string][]torznab.Candidate{
		"Brandon Sanderson Warbreaker": {candidateFor("Warbreaker")},
	}
	other, err := dispatcher.RequestDownload(context.Background(), author.ID, "Warbreaker", "")
	if err != nil {
		t.Fatalf("RequestDownload: %v", err)
	}
	if other.Status != catalog.JobQueued {
		t.Fatalf("expected queued, got %s", other.Status)
	}
}

func TestRequestDownloadClientRejection(t *testing.T) {
	indexer := &fakeIndexer{results: map[string][]torznab.Candidate{
		"Brandon Sanderson Warbreaker": {candidateFor("Warbreaker")},
	}}
	client := &fakeClient{err: errors.New("connection refused")}
	dispatcher, _, author := newDispatcher(t, indexer, client)

	job, err := dispatcher.RequestDownload(context.Background(), author.ID, "Warbreaker", "")
	if err != nil {
		t.Fatalf("client rejection must not be a system error: %v", err)
	}
	if job.Status != catalog.JobFailed || job.ErrorMessage != "connection refused" {
		t.Fatalf("expected failed with client error, got %#v", job)
	}
}

func TestRequestDownloadUnknownAuthor(t *testing.T) {
	dispatcher, _, _ := newDispatcher(t, &fakeIndexer{}, &fakeClient{})
	_, err := dispatcher.RequestDownload(context.Background(), 999, "Warbreaker", "")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found marker, got %v", err)
	}
}

func TestRequestDownloadAllIsolatesFailures(t *testing.T) {
	indexer := &fakeIndexer{results: map[string][]torznab.Candidate{
		"Brandon Sanderson Elantris":   {candidateFor("Elantris")},
		"Brandon Sanderson Warbreaker": {candidateFor("Warbreaker")},
	}}
	client := &fakeClient{}
	dispatcher, store, author := newDispatcher(t, indexer, client)

	outcomes, err := dispatcher.RequestDownloadAll(context.Background(), author.ID, []string{"Elantris", "Unobtainium", "Warbreaker"})
	if err != nil {
		t.Fatalf("RequestDownloadAll: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}

	if outcomes[0].Status != catalog.JobQueued {
		t.Fatalf("first title should queue, got %#v", outcomes[0])
	}
	if outcomes[1].Status != catalog.JobFailed || outcomes[1].Error != NoResultsReason {
		t.Fatalf("second title should fail with no results, got %#v", outcomes[1])
	}
	if outcomes[2].Status != catalog.JobQueued {
		t.Fatalf("third title should still queue after a failure, got %#v", outcomes[2])
	}

	queued, err := store.ListJobs(context.Background(), catalog.JobQueued)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(queued) != 2 {
		t.Fatalf("expected 2 queued jobs, got %d", len(queued))
	}
}
