package audiobookshelf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"bookarr/internal/config"
	"bookarr/internal/services"
)

const defaultLibraryName = "audiobooks"

// HTTPDoer describes the HTTP client used by the Audiobookshelf client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to an Audiobookshelf server. The library identifier is
// resolved once from the configured library name and cached for the life of
// the client.
type Client struct {
	baseURL     string
	apiKey      string
	libraryName string
	client      HTTPDoer

	mu        sync.Mutex
	libraryID string
}

// New constructs a client against the given base URL and API key. The
// library name selects which Audiobookshelf library to operate on; empty
// means "audiobooks".
func New(baseURL, apiKey, libraryName string, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	name := strings.TrimSpace(libraryName)
	if name == "" {
		name = defaultLibraryName
	}
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:      strings.TrimSpace(apiKey),
		libraryName: name,
		client:      client,
	}
}

// NewFromConfig constructs a client from the audiobookshelf config section
// with a bounded per-request timeout.
func NewFromConfig(cfg *config.Config) *Client {
	if cfg == nil {
		return New("", "", "", nil)
	}
	httpClient := &http.Client{Timeout: time.Duration(cfg.Workflow.RequestTimeoutSeconds) * time.Second}
	return New(cfg.Audiobookshelf.BaseURL, cfg.Audiobookshelf.APIKey, cfg.Audiobookshelf.Library, httpClient)
}

// Configured reports whether the client has enough settings to reach a server.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if !c.Configured() {
		return services.Wrap(services.ErrValidation, "audiobookshelf", "request", "base url and api key must be configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return services.Wrap(services.ErrUpstream, "audiobookshelf", "build request", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "audiobookshelf", "get", path, err)
		}
		return services.Wrap(services.ErrUpstream, "audiobookshelf", "get", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return services.Wrap(services.ErrUpstream, "audiobookshelf", "get", "unauthorized (check api key)", nil)
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "audiobookshelf", "get", path, nil)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return services.Wrap(services.ErrUpstream, "audiobookshelf", "get", fmt.Sprintf("%s returned %d", path, resp.StatusCode), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrUpstream, "audiobookshelf", "decode response", path, err)
	}
	return nil
}

// LibraryID resolves the configured library name to its identifier. The
// match is case-insensitive and the result is cached.
func (c *Client) LibraryID(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.libraryID
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	var payload struct {
		Libraries []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"libraries"`
	}
	if err := c.getJSON(ctx, "/api/libraries", &payload); err != nil {
		return "", err
	}

	want := strings.ToLower(c.libraryName)
	for _, lib := range payload.Libraries {
		if strings.ToLower(lib.Name) == want {
			c.mu.Lock()
			c.libraryID = lib.ID
			c.mu.Unlock()
			return lib.ID, nil
		}
	}
	return "", services.Wrap(services.ErrNotFound, "audiobookshelf", "resolve library", c.libraryName, nil)
}

// ListItems fetches every book item in the configured library.
func (c *Client) ListItems(ctx context.Context) ([]Item, error) {
	libraryID, err := c.LibraryID(ctx)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Results []Item `json:"results"`
	}
	if err := c.getJSON(ctx, "/api/libraries/"+libraryID+"/items", &payload); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(payload.Results))
	for _, item := range payload.Results {
		mediaType := item.MediaType
		if mediaType == "" {
			mediaType = item.Type
		}
		if mediaType == "" || mediaType == "book" || mediaType == "audiobook" {
			items = append(items, item)
		}
	}
	return items, nil
}

// TriggerScan asks the server to rescan the configured library so newly
// placed files become visible.
func (c *Client) TriggerScan(ctx context.Context) error {
	libraryID, err := c.LibraryID(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/libraries/"+libraryID+"/scan", nil)
	if err != nil {
		return services.Wrap(services.ErrUpstream, "audiobookshelf", "build scan request", "", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "audiobookshelf", "scan library", "", err)
		}
		return services.Wrap(services.ErrUpstream, "audiobookshelf", "scan library", "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrUpstream, "audiobookshelf", "scan library", fmt.Sprintf("returned %d", resp.StatusCode), nil)
	}
	return nil
}

// CoverURL returns the server cover endpoint for an item, or empty when the
// item has no identifier.
func (c *Client) CoverURL(itemID string) string {
	if c == nil || c.baseURL == "" || itemID == "" {
		return ""
	}
	return c.baseURL + "/api/items/" + itemID + "/cover"
}
