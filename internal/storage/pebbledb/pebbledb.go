package pebbledb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/georgeshao/fio-dashboard/internal/storage"
)

// Key prefixes
const (
	prefixKV = "kv:" // kv:{key} → value
)

type PebbleStore struct {
	db *pebble.DB
}

func New(dbPath string) (*PebbleStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	return open(dbPath, &pebble.Options{})
}

// NewInMemory opens a store on an in-memory filesystem. Nothing survives Close.
func NewInMemory() (*PebbleStore, error) {
	return open("", &pebble.Options{FS: vfs.NewMem()})
}

func open(dbPath string, opts *pebble.Options) (*PebbleStore, error) {
	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func kvKey(key string) []byte {
	return []byte(prefixKV + key)
}

func (s *PebbleStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value, closer, err := s.db.Get(kvKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	defer closer.Close()

	// value is only valid until closer.Close
	return string(value), nil
}

func (s *PebbleStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Set(kvKey(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (s *PebbleStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Delete(kvKey(key), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

var _ storage.KV = (*PebbleStore)(nil)
