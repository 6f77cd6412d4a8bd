package openlibrary

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bookarr/internal/services"
)

func TestSearchAuthors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/authors.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "sanderson" {
			t.Errorf("unexpected query %q", got)
		}
		w.Write([]byte(`{"docs":[
			{"key":"/authors/OL1394865A","name":"Brandon Sanderson","top_work":"Mistborn"},
			{"key":"","name":"No Key"},
			{"key":"OL2A","title":"Titled Only"}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "http://covers.local", server.Client())
	results, err := client.SearchAuthors(context.Background(), "sanderson", 10)
	if err != nil {
		t.Fatalf("SearchAuthors: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	first := results[0]
	if first.ExternalID != "OL1394865A" || first.Name != "Brandon Sanderson" || first.TopWork != "Mistborn" {
		t.Fatalf("unexpected first result: %#v", first)
	}
	if first.ImageURL != "http://covers.local/a/olid/OL1394865A-M.jpg" {
		t.Fatalf("unexpected image url %q", first.ImageURL)
	}
	if results[1].Name != "Titled Only" {
		t.Fatalf("expected title fallback, got %q", results[1].Name)
	}
}

func TestSearchAuthorsEmptyQuery(t *testing.T) {
	client := New("http://unused.local", "", nil)
	_, err := client.SearchAuthors(context.Background(), "  ", 5)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestAuthorWorks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/authors/OL1A/works.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"entries":[
			{"key":"/works/OL100W","title":"Elantris","first_publish_year":2005,"covers":[77]},
			{"key":"/works/OL200W","title":"Warbreaker","first_publish_date":"June 9, 2009"},
			{"key":"/works/OL300W"}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "http://covers.local", server.Client())
	works, err := client.AuthorWorks(context.Background(), "OL1A", 50)
	if err != nil {
		t.Fatalf("AuthorWorks: %v", err)
	}
	if len(works) != 3 {
		t.Fatalf("expected 3 works, got %d", len(works))
	}

	if works[0].FirstPublishYear != 2005 {
		t.Fatalf("expected numeric year, got %d", works[0].FirstPublishYear)
	}
	if works[0].CoverURL != "http://covers.local/b/id/77-M.jpg" {
		t.Fatalf("expected cover-id url, got %q", works[0].CoverURL)
	}

	if works[1].FirstPublishYear != 2009 {
		t.Fatalf("expected year parsed from date, got %d", works[1].FirstPublishYear)
	}
	if works[1].CoverURL != "http://covers.local/b/olid/OL200W-M.jpg" {
		t.Fatalf("expected olid cover url, got %q", works[1].CoverURL)
	}

	if works[2].Title != "Untitled" {
		t.Fatalf("expected title fallback, got %q", works[2].Title)
	}
}

func TestAuthorWorksUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "", server.Client())
	_, err := client.AuthorWorks(context.Background(), "OL1A", 10)
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected upstream marker, got %v", err)
	}
}
