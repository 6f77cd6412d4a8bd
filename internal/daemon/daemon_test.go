package daemon

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"bookarr/internal/testsupport"
)

func TestStartEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()

	second, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	err = second.Start(ctx)
	if err == nil {
		second.Stop()
		t.Fatal("second instance acquired the lock")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStopReleasesLockForRestart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	d, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.Stop()

	again, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("New again: %v", err)
	}
	if err := again.Start(ctx); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	again.Stop()
}

func TestEffectiveConfigOverlaysSettings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Deluge.Host = "localhost"
	cfg.Deluge.Port = 8112
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if err := store.EnsureSettingDefaults(ctx, cfg); err != nil {
		t.Fatalf("EnsureSettingDefaults: %v", err)
	}
	if err := store.UpdateSettings(ctx, cfg, map[string]string{
		"deluge_host":     "deluge.lan",
		"deluge_port":     "9876",
		"indexer_api_key": "runtime-key",
	}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	d, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eff, err := d.effectiveConfig(ctx)
	if err != nil {
		t.Fatalf("effectiveConfig: %v", err)
	}
	if eff.Deluge.Host != "deluge.lan" || eff.Deluge.Port != 9876 {
		t.Fatalf("deluge overlay = %s:%d", eff.Deluge.Host, eff.Deluge.Port)
	}
	if eff.Indexer.APIKey != "runtime-key" {
		t.Fatalf("indexer overlay = %q", eff.Indexer.APIKey)
	}
	if cfg.Deluge.Host != "localhost" {
		t.Fatal("overlay mutated the base config")
	}
}

func TestLibraryAuthorizerScopesBearerToken(t *testing.T) {
	authorize := libraryAuthorizer("http://abs.lan:13378/", "abs-token")
	if authorize == nil {
		t.Fatal("expected an authorizer for a configured library")
	}

	library, _ := http.NewRequest(http.MethodGet, "http://abs.lan:13378/api/items/li_1/cover", nil)
	authorize(library)
	if got := library.Header.Get("Authorization"); got != "Bearer abs-token" {
		t.Fatalf("library request header = %q", got)
	}

	external, _ := http.NewRequest(http.MethodGet, "https://covers.openlibrary.org/b/id/42-L.jpg", nil)
	authorize(external)
	if got := external.Header.Get("Authorization"); got != "" {
		t.Fatalf("token leaked to external host: %q", got)
	}

	if libraryAuthorizer("http://abs.lan:13378", "") != nil {
		t.Fatal("expected no authorizer without an API key")
	}
}
