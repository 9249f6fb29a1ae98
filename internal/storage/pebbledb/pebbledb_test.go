package pebbledb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/georgeshao/fio-dashboard/internal/storage"
)

func setupTestStore(t *testing.T) (*PebbleStore, string, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "pebble_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tempDir, "kv")
	store, err := New(dbPath)
	if err != nil {
		if removeErr := os.RemoveAll(tempDir); removeErr != nil {
			t.Logf("Failed to remove temp dir: %v", removeErr)
		}
		t.Fatalf("Failed to create store: %v", err)
	}

	cleanup := func() {
		if closeErr := store.Close(); closeErr != nil {
			t.Logf("Failed to close store: %v", closeErr)
		}
		if removeErr := os.RemoveAll(tempDir); removeErr != nil {
			t.Logf("Failed to remove temp dir: %v", removeErr)
		}
	}

	return store, dbPath, cleanup
}

func TestKVCRUD(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, storage.FilterSelectionKey, `{"version":1}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err := store.Get(ctx, storage.FilterSelectionKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != `{"version":1}` {
		t.Errorf("Value mismatch: got %s", value)
	}

	if err := store.Set(ctx, storage.FilterSelectionKey, `{"version":2}`); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}
	value, _ = store.Get(ctx, storage.FilterSelectionKey)
	if value != `{"version":2}` {
		t.Errorf("Value not overwritten: got %s", value)
	}

	if err := store.Delete(ctx, storage.FilterSelectionKey); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, storage.FilterSelectionKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Key should have been deleted, got %v", err)
	}
}

func TestKVSurvivesReopen(t *testing.T) {
	store, dbPath, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	if err := store.Set(ctx, storage.AuthTokenKey, "Bearer abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := New(dbPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	// cleanup closes the store it captured, so swap in the reopened handle
	*store = *reopened

	value, err := store.Get(ctx, storage.AuthTokenKey)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if value != "Bearer abc" {
		t.Errorf("Value mismatch after reopen: got %s", value)
	}
}

func TestInMemory(t *testing.T) {
	store, err := NewInMemory()
	if err != nil {
		t.Fatalf("NewInMemory failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if value, err := store.Get(ctx, "k"); err != nil || value != "v" {
		t.Errorf("Get returned %q, %v", value, err)
	}
}

func TestCancelledContext(t *testing.T) {
	store, err := NewInMemory()
	if err != nil {
		t.Fatalf("NewInMemory failed: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Set(ctx, "k", "v"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
