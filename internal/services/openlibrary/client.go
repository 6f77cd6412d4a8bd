package openlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bookarr/internal/config"
	"bookarr/internal/services"
)

// HTTPDoer describes the HTTP client used by the Open Library client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuthorResult is one hit from an author search.
type AuthorResult struct {
	Name       string
	ExternalID string
	ImageURL   string
	TopWork    string
}

// Work is one entry from an author's known-works catalog.
type Work struct {
	Title            string
	ExternalID       string
	FirstPublishYear int
	CoverURL         string
}

// Client talks to the Open Library search and works endpoints.
type Client struct {
	baseURL   string
	coversURL string
	client    HTTPDoer
}

// New constructs a client with explicit endpoints. Empty arguments fall back
// to the public Open Library hosts.
func New(baseURL, coversURL string, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL == "" {
		baseURL = "https://openlibrary.org"
	}
	if coversURL = strings.TrimRight(strings.TrimSpace(coversURL), "/"); coversURL == "" {
		coversURL = "https://covers.openlibrary.org"
	}
	return &Client{baseURL: baseURL, coversURL: coversURL, client: client}
}

// NewFromConfig constructs a client from the openlibrary config section with
// a bounded per-request timeout.
func NewFromConfig(cfg *config.Config) *Client {
	if cfg == nil {
		return New("", "", nil)
	}
	httpClient := &http.Client{Timeout: time.Duration(cfg.Workflow.RequestTimeoutSeconds) * time.Second}
	return New(cfg.OpenLibrary.BaseURL, cfg.OpenLibrary.CoversURL, httpClient)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrUpstream, "openlibrary", "build request", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "openlibrary", "get", path, err)
		}
		return services.Wrap(services.ErrUpstream, "openlibrary", "get", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrUpstream, "openlibrary", "get", fmt.Sprintf("%s returned %d", path, resp.StatusCode), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrUpstream, "openlibrary", "decode response", path, err)
	}
	return nil
}

// SearchAuthors queries the author search endpoint. Results without an Open
// Library identifier are dropped.
func (c *Client) SearchAuthors(ctx context.Context, query string, limit int) ([]AuthorResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "openlibrary", "search authors", "query must not be empty", nil)
	}
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	var payload struct {
		Docs []struct {
			Key     string `json:"key"`
			Name    string `json:"name"`
			Title   string `json:"title"`
			TopWork string `json:"top_work"`
		} `json:"docs"`
	}
	if err := c.getJSON(ctx, "/search/authors.json", params, &payload); err != nil {
		return nil, err
	}

	results := make([]AuthorResult, 0, len(payload.Docs))
	for _, doc := range payload.Docs {
		externalID := trailingSegment(doc.Key)
		if externalID == "" {
			continue
		}
		name := doc.Name
		if name == "" {
			name = doc.Title
		}
		if name == "" {
			name = "Unknown"
		}
		results = append(results, AuthorResult{
			Name:       name,
			ExternalID: externalID,
			ImageURL:   c.AuthorImageURL(externalID),
			TopWork:    doc.TopWork,
		})
	}
	return results, nil
}

// AuthorWorks fetches an author's known works by Open Library identifier.
func (c *Client) AuthorWorks(ctx context.Context, externalID string, limit int) ([]Work, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, services.Wrap(services.ErrValidation, "openlibrary", "author works", "author id must not be empty", nil)
	}
	if limit <= 0 {
		limit = 50
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var payload struct {
		Entries []workEntry `json:"entries"`
		Works   []workEntry `json:"works"`
	}
	if err := c.getJSON(ctx, "/authors/"+url.PathEscape(externalID)+"/works.json", params, &payload); err != nil {
		return nil, err
	}

	entries := payload.Entries
	if len(entries) == 0 {
		entries = payload.Works
	}

	works := make([]Work, 0, len(entries))
	for _, entry := range entries {
		title := entry.Title
		if title == "" {
			title = "Untitled"
		}
		workID := trailingSegment(entry.Key)
		var coverID int64
		if len(entry.Covers) > 0 {
			coverID = entry.Covers[0]
		}
		works = append(works, Work{
			Title:            title,
			ExternalID:       workID,
			FirstPublishYear: entry.publishYear(),
			CoverURL:         c.WorkCoverURL(coverID, workID),
		})
	}
	return works, nil
}

type workEntry struct {
	Key              string  `json:"key"`
	Title            string  `json:"title"`
	FirstPublishYear int     `json:"first_publish_year"`
	FirstPublishDate string  `json:"first_publish_date"`
	Covers           []int64 `json:"covers"`
}

// publishYear prefers the numeric year field and falls back to the first
// four-digit run in the free-form date string.
func (e workEntry) publishYear() int {
	if e.FirstPublishYear > 0 {
		return e.FirstPublishYear
	}
	digits := 0
	start := -1
	for i, r := range e.FirstPublishDate {
		if r >= '0' && r <= '9' {
			if digits == 0 {
				start = i
			}
			digits++
			if digits == 4 {
				year, err := strconv.Atoi(e.FirstPublishDate[start : i+1])
				if err == nil {
					return year
				}
				digits = 0
			}
			continue
		}
		digits = 0
	}
	return 0
}

// AuthorImageURL derives the medium portrait URL for an author identifier.
func (c *Client) AuthorImageURL(externalID string) string {
	if externalID == "" {
		return ""
	}
	return fmt.Sprintf("%s/a/olid/%s-M.jpg", c.coversURL, externalID)
}

// WorkCoverURL derives a cover URL, preferring the numeric cover identifier
// over the work identifier. Returns empty when neither is available.
func (c *Client) WorkCoverURL(coverID int64, workID string) string {
	if coverID > 0 {
		return fmt.Sprintf("%s/b/id/%d-M.jpg", c.coversURL, coverID)
	}
	if workID != "" {
		return fmt.Sprintf("%s/b/olid/%s-M.jpg", c.coversURL, workID)
	}
	return ""
}

func trailingSegment(key string) string {
	if key == "" {
		return ""
	}
	if idx := strings.LastIndexByte(key, '/'); idx >= 0 {
		return key[idx+1:]
	}
	return key
}
