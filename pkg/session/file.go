package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

// FileStorage keeps entries in a single JSON object on disk. It plays the
// role browser local storage plays for a web client: it survives restarts
// and is scoped to one user account on one machine.
//
// Every write replaces the file atomically (temp file + rename), so a
// SetMany or RemoveMany is all-or-nothing.
type FileStorage struct {
	path string

	mu      sync.Mutex
	entries map[string]string
	loaded  bool
	closed  bool
}

// NewFileStorage creates a storage backed by the file at path.
// The parent directory is created if needed; the file itself is created on
// first write.
func NewFileStorage(path string) (*FileStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("session: file storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("session: create storage dir: %w", err)
	}
	return &FileStorage{path: filepath.Clean(path)}, nil
}

// Path returns the backing file path.
func (f *FileStorage) Path() string {
	return f.path
}

// Get returns the value for key.
func (f *FileStorage) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return "", false, err
	}
	v, ok := f.entries[key]
	return v, ok, nil
}

// Set stores value under key.
func (f *FileStorage) Set(ctx context.Context, key, value string) error {
	return f.SetMany(ctx, map[string]string{key: value})
}

// Remove deletes key.
func (f *FileStorage) Remove(ctx context.Context, key string) error {
	return f.RemoveMany(ctx, key)
}

// SetMany writes all entries in one file replacement.
func (f *FileStorage) SetMany(ctx context.Context, entries map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return err
	}
	next := maps.Clone(f.entries)
	maps.Copy(next, entries)
	return f.flush(next)
}

// RemoveMany removes all keys in one file replacement.
func (f *FileStorage) RemoveMany(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return err
	}
	next := maps.Clone(f.entries)
	for _, key := range keys {
		delete(next, key)
	}
	return f.flush(next)
}

// Close marks the storage closed. The file is left in place.
func (f *FileStorage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.entries = nil
	return nil
}

// load reads the file once. Caller holds mu.
func (f *FileStorage) load() error {
	if f.closed {
		return ErrStorageClosed{}
	}
	if f.loaded {
		return nil
	}

	data, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		f.entries = make(map[string]string)
	case err != nil:
		return fmt.Errorf("session: read %s: %w", f.path, err)
	default:
		entries := make(map[string]string)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("session: parse %s: %w", f.path, err)
			}
		}
		f.entries = entries
	}
	f.loaded = true
	return nil
}

// flush writes next to disk and adopts it. Caller holds mu.
func (f *FileStorage) flush(next map[string]string) error {
	if next == nil {
		next = make(map[string]string)
	}
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".storage-*.json")
	if err != nil {
		return fmt.Errorf("session: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("session: replace %s: %w", f.path, err)
	}

	f.entries = next
	return nil
}
