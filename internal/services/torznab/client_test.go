package torznab

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bookarr/internal/services"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <item>
      <title>Warbreaker (Unabridged) M4B</title>
      <link>https://indexer.local/dl/1</link>
      <size>734003200</size>
      <torznab:attr name="seeders" value="42" />
      <torznab:attr name="magneturl" value="magnet:?xt=urn:btih:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" />
    </item>
    <item>
      <title>Warbreaker MP3</title>
      <link>magnet:?xt=urn:btih:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb</link>
      <enclosure url="https://indexer.local/dl/2" length="524288000" type="application/x-bittorrent" />
      <torznab:attr name="seeders" value="7" />
    </item>
  </channel>
</rss>`

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if got := query.Get("t"); got != "search" {
			t.Errorf("unexpected t param %q", got)
		}
		if got := query.Get("q"); got != "warbreaker" {
			t.Errorf("unexpected q param %q", got)
		}
		if got := query.Get("apikey"); got != "key123" {
			t.Errorf("unexpected apikey %q", got)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client := New(server.URL, "key123", server.Client())
	candidates, err := client.Search(context.Background(), "warbreaker")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	first := candidates[0]
	if first.Seeders != 42 || first.Size != 734003200 {
		t.Fatalf("unexpected first candidate: %#v", first)
	}
	if first.Locator() != "magnet:?xt=urn:btih:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Fatalf("expected magnet locator, got %q", first.Locator())
	}

	second := candidates[1]
	if second.Magnet == "" {
		t.Fatal("expected magnet recovered from link")
	}
	if second.Size != 524288000 {
		t.Fatalf("expected enclosure length fallback, got %d", second.Size)
	}
}

func TestSearchEmptyFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><rss><channel></channel></rss>`))
	}))
	defer server.Close()

	client := New(server.URL, "", server.Client())
	candidates, err := client.Search(context.Background(), "unobtainium")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(candidates))
	}
}

func TestSearchUnconfigured(t *testing.T) {
	client := New("", "", nil)
	_, err := client.Search(context.Background(), "anything")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestSearchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, "", server.Client())
	_, err := client.Search(context.Background(), "anything")
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected upstream marker, got %v", err)
	}
}
