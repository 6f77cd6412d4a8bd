package covers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bookarr/internal/catalog"
	"bookarr/internal/config"
	"bookarr/internal/services"
)

// Generic is the sentinel returned when no cover source is available; the
// presentation layer maps it to its bundled placeholder image.
const Generic = "generic"

// HTTPDoer describes the HTTP client used for cover fetches.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Cache stores fetched covers under a directory, one file per book.
type Cache struct {
	dir    string
	client HTTPDoer

	// Authorize, when set, decorates outgoing fetch requests. The daemon
	// uses it to attach the Audiobookshelf bearer token for library covers.
	Authorize func(*http.Request)
}

// NewCache constructs a cover cache rooted at dir.
func NewCache(dir string, client HTTPDoer) *Cache {
	if client == nil {
		client = http.DefaultClient
	}
	return &Cache{dir: dir, client: client}
}

// NewCacheFromConfig constructs a cache under the configured data directory
// with a bounded fetch timeout.
func NewCacheFromConfig(cfg *config.Config) *Cache {
	if cfg == nil {
		return NewCache("", nil)
	}
	httpClient := &http.Client{Timeout: time.Duration(cfg.Workflow.RequestTimeoutSeconds) * time.Second}
	return NewCache(cfg.CoversDir(), httpClient)
}

// Resolve returns the best available cover reference for a book without
// touching the network: the cached file when it still exists, then the
// library cover URL, then the bibliography cover URL, then Generic.
func Resolve(book *catalog.Book) string {
	if book == nil {
		return Generic
	}
	if book.CachedCoverPath != "" {
		if _, err := os.Stat(book.CachedCoverPath); err == nil {
			return book.CachedCoverPath
		}
	}
	if book.LibraryCoverURL != "" {
		return book.LibraryCoverURL
	}
	if book.CoverURL != "" {
		return book.CoverURL
	}
	return Generic
}

// EnsureLocal makes sure the book's cover exists in the cache, fetching the
// first remote candidate that answers. Returns the cached path, or empty
// when the book has no remote cover at all.
func (c *Cache) EnsureLocal(ctx context.Context, book *catalog.Book) (string, error) {
	if book == nil {
		return "", services.Wrap(services.ErrValidation, "covers", "ensure", "book must not be nil", nil)
	}
	if book.CachedCoverPath != "" {
		if _, err := os.Stat(book.CachedCoverPath); err == nil {
			return book.CachedCoverPath, nil
		}
	}

	var lastErr error
	for _, candidate := range []string{book.LibraryCoverURL, book.CoverURL} {
		if candidate == "" {
			continue
		}
		path, err := c.fetch(ctx, book.ID, candidate)
		if err != nil {
			lastErr = err
			continue
		}
		return path, nil
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", nil
}

func (c *Cache) fetch(ctx context.Context, bookID int64, coverURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return "", services.Wrap(services.ErrUpstream, "covers", "build request", coverURL, err)
	}
	if c.Authorize != nil {
		c.Authorize(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "covers", "fetch", coverURL, err)
		}
		return "", services.Wrap(services.ErrUpstream, "covers", "fetch", coverURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", services.Wrap(services.ErrUpstream, "covers", "fetch", fmt.Sprintf("%s returned %d", coverURL, resp.StatusCode), nil)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("create cover cache dir: %w", err)
	}
	path := filepath.Join(c.dir, fmt.Sprintf("book-%d%s", bookID, coverExtension(resp.Header.Get("Content-Type"))))

	tmp, err := os.CreateTemp(c.dir, "cover-*")
	if err != nil {
		return "", fmt.Errorf("create cover file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", services.Wrap(services.ErrUpstream, "covers", "fetch", coverURL, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close cover file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("place cover file: %w", err)
	}
	return path, nil
}

func coverExtension(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}
