package itunes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		query := r.URL.Query()
		if got := query.Get("media"); got != "audiobook" {
			t.Errorf("unexpected media %q", got)
		}
		if got := query.Get("term"); got != "Brandon Sanderson Warbreaker" {
			t.Errorf("unexpected term %q", got)
		}
		w.Write([]byte(`{"results":[
			{"collectionName":"Warbreaker (Unabridged)","artistName":"Brandon Sanderson","artworkUrl100":"https://cdn/cover/100x100bb.jpg"},
			{"trackName":"Warbreaker","artistName":"Brandon Sanderson"},
			{"artistName":"No Title"}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, true, server.Client())
	candidates, err := client.SearchCandidates(context.Background(), "Brandon Sanderson", "Warbreaker", 5)
	if err != nil {
		t.Fatalf("SearchCandidates: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	first := candidates[0]
	if first.Title != "Warbreaker (Unabridged)" || first.Source != Source {
		t.Fatalf("unexpected candidate: %#v", first)
	}
	if first.CoverURL != "https://cdn/cover/600x600bb.jpg" {
		t.Fatalf("expected upscaled artwork, got %q", first.CoverURL)
	}
}

func TestSearchCandidatesDisabled(t *testing.T) {
	client := New("http://unused.local", false, nil)
	candidates, err := client.SearchCandidates(context.Background(), "Any", "Thing", 5)
	if err != nil {
		t.Fatalf("SearchCandidates: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("disabled client should return no candidates, got %d", len(candidates))
	}
}
