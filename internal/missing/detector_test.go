package missing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"bookarr/internal/services"
	"bookarr/internal/services/itunes"
	"bookarr/internal/services/openlibrary"
	"bookarr/internal/testsupport"
)

type fakeBibliography struct {
	works []openlibrary.Work
	err   error
	calls int
}

func (f *fakeBibliography) AuthorWorks(ctx context.Context, externalID string, limit int) ([]openlibrary.Work, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.works, nil
}

type fakeCandidates struct {
	covers map[string]string
}

func (f *fakeCandidates) SearchCandidates(ctx context.Context, author, title string, limit int) ([]itunes.Candidate, error) {
	cover, ok := f.covers[title]
	if !ok {
		return []itunes.Candidate{}, nil
	}
	return []itunes.Candidate{{Title: title, CoverURL: cover, Source: itunes.Source}}, nil
}

func TestMissingForSetDifference(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	author := testsupport.NewAuthor(t, store, "Brandon Sanderson", "OL1A")

	bibliography := &fakeBibliography{}
	for i := 1; i <= 10; i++ {
		bibliography.works = append(bibliography.works, openlibrary.Work{Title: fmt.Sprintf("Book %d", i)})
	}
	for i := 1; i <= 7; i++ {
		testsupport.NewBook(t, store, author.ID, fmt.Sprintf("Book %d", i), fmt.Sprintf("book %d", i))
	}

	detector := New(store, bibliography, nil, nil)
	works, err := detector.MissingFor(context.Background(), author.ID)
	if err != nil {
		t.Fatalf("MissingFor: %v", err)
	}
	if len(works) != 3 {
		t.Fatalf("expected 3 missing works, got %d", len(works))
	}
	for _, work := range works {
		if work.Source != SourceBibliography {
			t.Fatalf("unexpected source %q", work.Source)
		}
	}
}

func TestMissingForNormalizedTitleEquality(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	author := testsupport.NewAuthor(t, store, "Brandon Sanderson", "OL1A")
	testsupport.NewBook(t, store, author.ID, "The Final Empire", "the final empire")

	bibliography := &fakeBibliography{works: []openlibrary.Work{
		{Title: "the final empire!"},
		{Title: "The FINAL Empire"},
		{Title: "Warbreaker"},
		{Title: "Warbreaker"},
	}}

	detector := New(store, bibliography, nil, nil)
	works, err := detector.MissingFor(context.Background(), author.ID)
	if err != nil {
		t.Fatalf("MissingFor: %v", err)
	}
	if len(works) != 1 || works[0].Title != "Warbreaker" {
		t.Fatalf("expected only Warbreaker, got %#v", works)
	}
}

func TestMissingForOwnsEverything(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	author := testsupport.NewAuthor(t, store, "Brandon Sanderson", "OL1A")
	testsupport.NewBook(t, store, author.ID, "Elantris", "elantris")

	bibliography := &fakeBibliography{works: []openlibrary.Work{{Title: "Elantris"}}}

	detector := New(store, bibliography, nil, nil)
	works, err := detector.MissingFor(context.Background(), author.ID)
	if err != nil {
		t.Fatalf("MissingFor: %v", err)
	}
	if works == nil || len(works) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", works)
	}

	// Detection is read-only.
	count, err := store.CountBooks(context.Background())
	if err != nil {
		t.Fatalf("CountBooks: %v", err)
	}
	if count != 1 {
		t.Fatalf("detector must not mutate state, got %d books", count)
	}
}

func TestMissingForUnknownAuthor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	detector := New(store, &fakeBibliography{}, nil, nil)
	_, err := detector.MissingFor(context.Background(), 999)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found marker, got %v", err)
	}
}

func TestMissingForCoverEnrichment(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	author := testsupport.NewAuthor(t, store, "Brandon Sanderson", "OL1A")

	bibliography := &fakeBibliography{works: []openlibrary.Work{
		{Title: "Warbreaker"},
		{Title: "Elantris", CoverURL: "http://covers/elantris.jpg"},
	}}
	candidates := &fakeCandidates{covers: map[string]string{
		"Warbreaker": "http://itunes/warbreaker.jpg",
	}}

	detector := New(store, bibliography, candidates, nil)
	works, err := detector.MissingFor(context.Background(), author.ID)
	if err != nil {
		t.Fatalf("MissingFor: %v", err)
	}
	if len(works) != 2 {
		t.Fatalf("expected 2 works, got %d", len(works))
	}

	byTitle := make(map[string]Work)
	for _, work := range works {
		byTitle[work.Title] = work
	}
	warbreaker := byTitle["Warbreaker"]
	if warbreaker.CoverURL != "http://itunes/warbreaker.jpg" || warbreaker.Source != itunes.Source {
		t.Fatalf("expected itunes enrichment, got %#v", warbreaker)
	}
	elantris := byTitle["Elantris"]
	if elantris.CoverURL != "http://covers/elantris.jpg" || elantris.Source != SourceBibliography {
		t.Fatalf("bibliography cover must be kept, got %#v", elantris)
	}
}
