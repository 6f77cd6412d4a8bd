package catalog_test

import (
	"context"
	"testing"

	"bookarr/internal/catalog"
	"bookarr/internal/testsupport"
)

func TestCreateAndGetAuthor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	author := testsupport.NewAuthor(t, store, "Brandon Sanderson", "OL1394865A")
	if author.ID == 0 {
		t.Fatal("expected author ID to be assigned")
	}

	fetched, err := store.GetAuthor(ctx, author.ID)
	if err != nil {
		t.Fatalf("GetAuthor failed: %v", err)
	}
	if fetched == nil || fetched.Name != "Brandon Sanderson" {
		t.Fatalf("unexpected fetched author: %#v", fetched)
	}
	if !fetched.Monitored {
		t.Fatal("expected monitored flag to persist")
	}

	byExt, err := store.GetAuthorByExternalID(ctx, "OL1394865A")
	if err != nil {
		t.Fatalf("GetAuthorByExternalID failed: %v", err)
	}
	if byExt == nil || byExt.ID != author.ID {
		t.Fatalf("expected to find author by external id, got %#v", byExt)
	}

	byName, err := store.FindAuthorByName(ctx, "bRANDON sANDERSON")
	if err != nil {
		t.Fatalf("FindAuthorByName failed: %v", err)
	}
	if byName == nil || byName.ID != author.ID {
		t.Fatal("expected case-insensitive name match")
	}
}

func TestAuthorExternalIDUnique(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewAuthor(t, store, "First", "OL1A")
	dup := &catalog.Author{Name: "Second", ExternalID: "OL1A", Monitored: true}
	if err := store.CreateAuthor(ctx, dup); err == nil {
		t.Fatal("expected duplicate external id to be rejected")
	}

	// Authors with no external id do not collide with each other.
	a := &catalog.Author{Name: "Local One", Monitored: true}
	b := &catalog.Author{Name: "Local Two", Monitored: true}
	if err := store.CreateAuthor(ctx, a); err != nil {
		t.Fatalf("CreateAuthor a: %v", err)
	}
	if err := store.CreateAuthor(ctx, b); err != nil {
		t.Fatalf("CreateAuthor b: %v", err)
	}
}

func TestBookIdentityPerAuthor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	author := testsupport.NewAuthor(t, store, "Author", "OL2A")
	testsupport.NewBook(t, store, author.ID, "The Final Empire", "the final empire")

	dup := &catalog.Book{AuthorID: author.ID, Title: "the final empire!", NormalizedTitle: "the final empire"}
	if err := store.InsertBook(ctx, dup); err == nil {
		t.Fatal("expected duplicate normalized title to be rejected")
	}

	other := testsupport.NewAuthor(t, store, "Other", "OL3A")
	if err := store.InsertBook(ctx, &catalog.Book{AuthorID: other.ID, Title: "The Final Empire", NormalizedTitle: "the final empire"}); err != nil {
		t.Fatalf("same title under different author should insert: %v", err)
	}
}

func TestDeleteAuthorCascades(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	author := testsupport.NewAuthor(t, store, "Cascade", "OL4A")
	testsupport.NewBook(t, store, author.ID, "Book One", "book one")
	testsupport.NewBook(t, store, author.ID, "Book Two", "book two")
	job := &catalog.Job{AuthorID: author.ID, Title: "Book Three", NormalizedTitle: "book three"}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	deleted, err := store.DeleteAuthor(ctx, author.ID)
	if err != nil {
		t.Fatalf("DeleteAuthor failed: %v", err)
	}
	if !deleted {
		t.Fatal("expected author to be deleted")
	}

	books, err := store.ListBooksByAuthor(ctx, author.ID)
	if err != nil {
		t.Fatalf("ListBooksByAuthor failed: %v", err)
	}
	if len(books) != 0 {
		t.Fatalf("expected cascade delete of books, got %d", len(books))
	}
	if got, err := store.GetJob(ctx, job.ID); err != nil || got != nil {
		t.Fatalf("expected cascade delete of jobs, got %#v (err %v)", got, err)
	}
}

func TestListAuthorsBookCount(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	author := testsupport.NewAuthor(t, store, "Counted", "OL5A")
	testsupport.NewBook(t, store, author.ID, "One", "one")
	testsupport.NewBook(t, store, author.ID, "Two", "two")

	authors, err := store.ListAuthors(context.Background())
	if err != nil {
		t.Fatalf("ListAuthors failed: %v", err)
	}
	if len(authors) != 1 || authors[0].BookCount != 2 {
		t.Fatalf("unexpected author list: %#v", authors)
	}
}

func TestSettingsMaskingAndSecrets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Deluge.Password = "hunter2"
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.EnsureSettingDefaults(ctx, cfg); err != nil {
		t.Fatalf("EnsureSettingDefaults failed: %v", err)
	}

	masked, err := store.MaskedSettings(ctx, cfg)
	if err != nil {
		t.Fatalf("MaskedSettings failed: %v", err)
	}
	if masked[catalog.SettingDelugePassword] != "***" {
		t.Fatalf("expected masked password, got %q", masked[catalog.SettingDelugePassword])
	}

	// An empty sensitive update must not clobber the stored secret.
	err = store.UpdateSettings(ctx, cfg, map[string]string{
		catalog.SettingDelugePassword: "",
		catalog.SettingDelugeLabel:    "audio",
	})
	if err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}

	values, err := store.Settings(ctx, cfg)
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if values[catalog.SettingDelugePassword] != "hunter2" {
		t.Fatalf("secret was clobbered: %q", values[catalog.SettingDelugePassword])
	}
	if values[catalog.SettingDelugeLabel] != "audio" {
		t.Fatalf("label update lost: %q", values[catalog.SettingDelugeLabel])
	}

	// Unknown keys are ignored.
	if err := store.UpdateSettings(ctx, cfg, map[string]string{"bogus": "x"}); err != nil {
		t.Fatalf("UpdateSettings with unknown key failed: %v", err)
	}
	values, _ = store.Settings(ctx, cfg)
	if _, ok := values["bogus"]; ok {
		t.Fatal("unknown key should not be persisted")
	}
}
