package torznab

import (
	"context"
	"encoding/xml"
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

// HTTPDoer describes the HTTP client used by the Torznab client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Candidate is one downloadable release returned by the indexer.
type Candidate struct {
	Title   string
	Magnet  string
	Link    string
	Seeders int
	Size    int64
}

// Locator returns the reference to hand to the download client, preferring
// the magnet URI over the plain download link.
func (c Candidate) Locator() string {
	if c.Magnet != "" {
		return c.Magnet
	}
	return c.Link
}

// Client talks to a Torznab API endpoint.
type Client struct {
	endpoint string
	apiKey   string
	client   HTTPDoer
}

// New constructs a client against the given Torznab endpoint.
func New(endpoint, apiKey string, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		apiKey:   strings.TrimSpace(apiKey),
		client:   client,
	}
}

// NewFromConfig constructs a client from the indexer config section with a
// bounded per-request timeout.
func NewFromConfig(cfg *config.Config) *Client {
	if cfg == nil {
		return New("", "", nil)
	}
	httpClient := &http.Client{Timeout: time.Duration(cfg.Workflow.RequestTimeoutSeconds) * time.Second}
	return New(cfg.Indexer.URL, cfg.Indexer.APIKey, httpClient)
}

// Configured reports whether an indexer endpoint is set.
func (c *Client) Configured() bool {
	return c != nil && c.endpoint != ""
}

// Search runs a free-text query and returns all candidates the indexer
// reported. An empty result is not an error; the dispatcher decides what a
// no-match means for the job.
func (c *Client) Search(ctx context.Context, query string) ([]Candidate, error) {
	if !c.Configured() {
		return nil, services.Wrap(services.ErrValidation, "indexer", "search", "indexer url must be configured", nil)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "indexer", "search", "query must not be empty", nil)
	}

	params := url.Values{}
	params.Set("t", "search")
	params.Set("q", query)
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstream, "indexer", "build request", "", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "indexer", "search", query, err)
		}
		return nil, services.Wrap(services.ErrUpstream, "indexer", "search", query, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrUpstream, "indexer", "search", fmt.Sprintf("returned %d", resp.StatusCode), nil)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, services.Wrap(services.ErrUpstream, "indexer", "decode response", "invalid torznab feed", err)
	}

	candidates := make([]Candidate, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		candidates = append(candidates, item.toCandidate())
	}
	return candidates, nil
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title     string `xml:"title"`
	Link      string `xml:"link"`
	Size      int64  `xml:"size"`
	Enclosure struct {
		URL    string `xml:"url,attr"`
		Length int64  `xml:"length,attr"`
	} `xml:"enclosure"`
	Attrs []rssAttr `xml:"attr"`
}

type rssAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func (item rssItem) toCandidate() Candidate {
	candidate := Candidate{
		Title: strings.TrimSpace(item.Title),
		Size:  item.Size,
	}
	if candidate.Size == 0 {
		candidate.Size = item.Enclosure.Length
	}

	for _, attr := range item.Attrs {
		switch attr.Name {
		case "seeders":
			if seeders, err := strconv.Atoi(attr.Value); err == nil {
				candidate.Seeders = seeders
			}
		case "magneturl":
			candidate.Magnet = attr.Value
		case "size":
			if candidate.Size == 0 {
				if size, err := strconv.ParseInt(attr.Value, 10, 64); err == nil {
					candidate.Size = size
				}
			}
		}
	}

	// Some indexers put the magnet in the link or enclosure instead of a
	// torznab attribute.
	if candidate.Magnet == "" && strings.HasPrefix(item.Link, "magnet:") {
		candidate.Magnet = item.Link
	}
	if candidate.Magnet == "" && strings.HasPrefix(item.Enclosure.URL, "magnet:") {
		candidate.Magnet = item.Enclosure.URL
	}
	if candidate.Link == "" {
		candidate.Link = item.Enclosure.URL
	} else {
		candidate.Link = item.Link
	}
	return candidate
}
