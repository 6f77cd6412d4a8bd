package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"bookarr/internal/catalog"
	"bookarr/internal/testsupport"
)

func startTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*Daemon, string) {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)

	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("api server did not bind")
	}
	return d, "http://" + addr
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func TestAuthorLifecycle(t *testing.T) {
	_, base := startTestDaemon(t)

	var created struct {
		Author struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"author"`
	}
	resp := doJSON(t, http.MethodPost, base+"/api/authors",
		map[string]string{"name": "Brandon Sanderson", "externalId": "OL1394244A"}, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	if created.Author.ID == 0 || created.Author.Name != "Brandon Sanderson" {
		t.Fatalf("created = %+v", created)
	}

	resp = doJSON(t, http.MethodPost, base+"/api/authors",
		map[string]string{"name": "brandon sanderson"}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", resp.StatusCode)
	}

	var listing struct {
		Authors []struct {
			ID int64 `json:"id"`
		} `json:"authors"`
	}
	doJSON(t, http.MethodGet, base+"/api/authors", nil, &listing)
	if len(listing.Authors) != 1 {
		t.Fatalf("author count = %d", len(listing.Authors))
	}

	authorURL := base + "/api/authors/" + strconv.FormatInt(created.Author.ID, 10)
	if resp := doJSON(t, http.MethodGet, authorURL, nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if resp := doJSON(t, http.MethodDelete, authorURL, nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if resp := doJSON(t, http.MethodGet, authorURL, nil, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateAuthorRequiresName(t *testing.T) {
	_, base := startTestDaemon(t)

	resp := doJSON(t, http.MethodPost, base+"/api/authors", map[string]string{"name": "  "}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListJobsRejectsUnknownStatus(t *testing.T) {
	_, base := startTestDaemon(t)

	resp := doJSON(t, http.MethodGet, base+"/api/jobs?status=bogus", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	raw, err := http.Get(base + "/api/jobs")
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	defer raw.Body.Close()
	body, _ := io.ReadAll(raw.Body)
	if !strings.Contains(string(body), `"jobs":[]`) {
		t.Fatalf("empty listing = %s", body)
	}
}

func TestUnknownJobReturns404(t *testing.T) {
	_, base := startTestDaemon(t)

	resp := doJSON(t, http.MethodGet, base+"/api/jobs/9999", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestMissingForUnknownAuthorReturns404(t *testing.T) {
	_, base := startTestDaemon(t)

	resp := doJSON(t, http.MethodGet, base+"/api/authors/42/missing", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSettingsMasking(t *testing.T) {
	d, base := startTestDaemon(t)

	var updated struct {
		Settings map[string]string `json:"settings"`
	}
	resp := doJSON(t, http.MethodPost, base+"/api/settings",
		map[string]string{"deluge_password": "hunter2", "deluge_host": "deluge.lan"}, &updated)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	if updated.Settings[catalog.SettingDelugePassword] != "***" {
		t.Fatalf("password in snapshot = %q", updated.Settings[catalog.SettingDelugePassword])
	}
	if updated.Settings[catalog.SettingDelugeHost] != "deluge.lan" {
		t.Fatalf("host in snapshot = %q", updated.Settings[catalog.SettingDelugeHost])
	}

	// The raw value must survive masking and the empty-value guard.
	values, err := d.Store().Settings(context.Background(), d.cfg)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if values[catalog.SettingDelugePassword] != "hunter2" {
		t.Fatalf("stored password = %q", values[catalog.SettingDelugePassword])
	}
}

func TestAutosyncConfigureEndpoint(t *testing.T) {
	_, base := startTestDaemon(t)

	resp := doJSON(t, http.MethodPost, base+"/api/autosync/configure",
		map[string]any{"enabled": true, "intervalHours": 5}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid interval status = %d, want 400", resp.StatusCode)
	}

	var state struct {
		Enabled       bool `json:"enabled"`
		IntervalHours int  `json:"intervalHours"`
	}
	resp = doJSON(t, http.MethodPost, base+"/api/autosync/configure",
		map[string]any{"enabled": true, "intervalHours": 12}, &state)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("configure status = %d", resp.StatusCode)
	}
	if !state.Enabled || state.IntervalHours != 12 {
		t.Fatalf("state = %+v", state)
	}

	state.Enabled = false
	state.IntervalHours = 0
	doJSON(t, http.MethodGet, base+"/api/autosync", nil, &state)
	if !state.Enabled || state.IntervalHours != 12 {
		t.Fatalf("persisted state = %+v", state)
	}
}

func TestLibrarySyncDryRun(t *testing.T) {
	library := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/libraries":
			w.Write([]byte(`{"libraries":[{"id":"lib-1","name":"audiobooks"}]}`))
		case strings.HasSuffix(r.URL.Path, "/items"):
			w.Write([]byte(`{"results":[
				{"id":"a","mediaType":"book","media":{"metadata":{"title":"Warbreaker","authorName":"Brandon Sanderson"}}},
				{"id":"b","mediaType":"book","media":{"metadata":{"title":"Elantris","authorName":"Brandon Sanderson"}}}
			]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer library.Close()

	_, base := startTestDaemon(t, testsupport.WithAudiobookshelf(library.URL, "key"))

	var result struct {
		DryRun  bool `json:"dryRun"`
		Summary struct {
			AuthorsAdded int `json:"authorsAdded"`
			BooksAdded   int `json:"booksAdded"`
		} `json:"summary"`
	}
	resp := doJSON(t, http.MethodPost, base+"/api/library/sync", map[string]bool{"dryRun": true}, &result)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status = %d", resp.StatusCode)
	}
	if !result.DryRun || result.Summary.AuthorsAdded != 1 || result.Summary.BooksAdded != 2 {
		t.Fatalf("result = %+v", result)
	}

	var listing struct {
		Authors []any `json:"authors"`
	}
	doJSON(t, http.MethodGet, base+"/api/authors", nil, &listing)
	if len(listing.Authors) != 0 {
		t.Fatalf("dry run created %d authors", len(listing.Authors))
	}
}

func TestRequestIDEchoed(t *testing.T) {
	_, base := startTestDaemon(t)

	resp := doJSON(t, http.MethodGet, base+"/api/status", nil, nil)
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID header")
	}

	req, _ := http.NewRequest(http.MethodGet, base+"/api/status", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	second, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("status request: %v", err)
	}
	defer second.Body.Close()
	if got := second.Header.Get("X-Request-ID"); got != "trace-123" {
		t.Fatalf("echoed request id = %q", got)
	}
}

