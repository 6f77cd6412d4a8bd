package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"bookarr/internal/config"
	"bookarr/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyDownloadQueued(context.Background(), "Author", "Title"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	type captured struct {
		title   string
		tags    string
		message string
	}

	var got captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = captured{
			title:   r.Header.Get("Title"),
			tags:    r.Header.Get("Tags"),
			message: string(body),
		}
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyImportCompleted(context.Background(), "Brandon Sanderson", "Warbreaker"); err != nil {
		t.Fatalf("NotifyImportCompleted: %v", err)
	}
	if got.title != "Bookarr - Imported" {
		t.Fatalf("unexpected title %q", got.title)
	}
	if got.message != "Ready to listen: Warbreaker by Brandon Sanderson" {
		t.Fatalf("unexpected message %q", got.message)
	}
	if got.tags != "bookarr,import,completed" {
		t.Fatalf("unexpected tags %q", got.tags)
	}

	if err := svc.NotifyError(context.Background(), errors.New("boom"), "library sync"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	if got.message != "Error with library sync: boom" {
		t.Fatalf("unexpected error message %q", got.message)
	}
}

func TestNtfyServiceReportsUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from non-2xx response")
	}
}
