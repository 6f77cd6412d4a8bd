package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bookarr/internal/config"
)

const userAgent = "Bookarr-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifySyncCompleted(ctx context.Context, authorsAdded, booksAdded int) error
	NotifyDownloadQueued(ctx context.Context, author, title string) error
	NotifyDownloadFailed(ctx context.Context, author, title, reason string) error
	NotifyImportCompleted(ctx context.Context, author, title string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifySyncCompleted(ctx context.Context, authorsAdded, booksAdded int) error {
	data := payload{
		title:   "Bookarr - Library Synced",
		message: fmt.Sprintf("Library sync complete: %d new authors, %d new books", authorsAdded, booksAdded),
		tags:    []string{"bookarr", "sync", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDownloadQueued(ctx context.Context, author, title string) error {
	author = strings.TrimSpace(author)
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Bookarr - Download Queued",
		message: fmt.Sprintf("Queued: %s by %s", title, author),
		tags:    []string{"bookarr", "download", "queued"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDownloadFailed(ctx context.Context, author, title, reason string) error {
	author = strings.TrimSpace(author)
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Download failed: %s by %s", title, author)
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("%s\nReason: %s", message, reason)
	}
	data := payload{
		title:   "Bookarr - Download Failed",
		message: message,
		tags:    []string{"bookarr", "download", "failed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyImportCompleted(ctx context.Context, author, title string) error {
	author = strings.TrimSpace(author)
	title = strings.TrimSpace(title)
	data := payload{
		title:    "Bookarr - Imported",
		message:  fmt.Sprintf("Ready to listen: %s by %s", title, author),
		tags:     []string{"bookarr", "import", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Bookarr - Error",
		message:  builder.String(),
		tags:     []string{"bookarr", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Bookarr - Test",
		message:  "Notification system test",
		tags:     []string{"bookarr", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifySyncCompleted(context.Context, int, int) error          { return nil }
func (noopService) NotifyDownloadQueued(context.Context, string, string) error   { return nil }
func (noopService) NotifyDownloadFailed(ctx context.Context, a, t, r string) error {
	return nil
}
func (noopService) NotifyImportCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error            { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }
