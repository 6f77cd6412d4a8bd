package itunes

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

// Source is the tag attached to candidates produced by this provider.
const Source = "itunes"

// HTTPDoer describes the HTTP client used by the iTunes client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Candidate is one audiobook hit from the search API.
type Candidate struct {
	Title    string
	Author   string
	CoverURL string
	Source   string
}

// Client talks to the iTunes Search API. A disabled client answers every
// lookup with no candidates so callers need no special casing.
type Client struct {
	baseURL string
	enabled bool
	client  HTTPDoer
}

// New constructs a client against the given base URL.
func New(baseURL string, enabled bool, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL == "" {
		baseURL = "https://itunes.apple.com"
	}
	return &Client{baseURL: baseURL, enabled: enabled, client: client}
}

// NewFromConfig constructs a client from the itunes config section with a
// bounded per-request timeout.
func NewFromConfig(cfg *config.Config) *Client {
	if cfg == nil {
		return New("", false, nil)
	}
	httpClient := &http.Client{Timeout: time.Duration(cfg.Workflow.RequestTimeoutSeconds) * time.Second}
	return New(cfg.ITunes.BaseURL, cfg.ITunes.Enabled, httpClient)
}

// SearchCandidates looks up audiobook candidates matching the author and
// title. Returns an empty slice when the provider is disabled or nothing
// matches.
func (c *Client) SearchCandidates(ctx context.Context, author, title string, limit int) ([]Candidate, error) {
	if c == nil || !c.enabled {
		return []Candidate{}, nil
	}
	term := strings.TrimSpace(strings.TrimSpace(author) + " " + strings.TrimSpace(title))
	if term == "" {
		return nil, services.Wrap(services.ErrValidation, "itunes", "search", "author or title must be provided", nil)
	}
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Set("term", term)
	params.Set("media", "audiobook")
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstream, "itunes", "build request", "", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "itunes", "search", term, err)
		}
		return nil, services.Wrap(services.ErrUpstream, "itunes", "search", term, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrUpstream, "itunes", "search", fmt.Sprintf("returned %d", resp.StatusCode), nil)
	}

	var payload struct {
		Results []struct {
			CollectionName string `json:"collectionName"`
			TrackName      string `json:"trackName"`
			ArtistName     string `json:"artistName"`
			ArtworkURL100  string `json:"artworkUrl100"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrUpstream, "itunes", "decode response", "", err)
	}

	candidates := make([]Candidate, 0, len(payload.Results))
	for _, result := range payload.Results {
		name := result.CollectionName
		if name == "" {
			name = result.TrackName
		}
		if name == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			Title:    name,
			Author:   result.ArtistName,
			CoverURL: upscaleArtwork(result.ArtworkURL100),
			Source:   Source,
		})
	}
	return candidates, nil
}

// upscaleArtwork swaps the 100x100 thumbnail suffix for the 600x600 variant
// the store serves from the same path.
func upscaleArtwork(artworkURL string) string {
	if artworkURL == "" {
		return ""
	}
	return strings.Replace(artworkURL, "100x100bb", "600x600bb", 1)
}
