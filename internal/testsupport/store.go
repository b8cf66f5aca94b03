package testsupport

import (
	"context"
	"testing"

	"towline/internal/config"
	"towline/internal/tasks"
)

// MustOpenStore opens a tasks.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *tasks.Store {
	t.Helper()

	store, err := tasks.Open(cfg)
	if err != nil {
		t.Fatalf("tasks.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTask inserts a fresh task for tests using the provided store.
func NewTask(t testing.TB, store *tasks.Store, locator, fingerprint, destination string) *tasks.Task {
	t.Helper()

	task, created, err := store.CreateOrGet(context.Background(), tasks.Draft{
		SourceLocator: locator,
		Fingerprint:   fingerprint,
		Destination:   destination,
	})
	if err != nil {
		t.Fatalf("store.CreateOrGet: %v", err)
	}
	if !created {
		t.Fatalf("expected fresh task for %s at %s", fingerprint, destination)
	}
	return task
}
