package session

import (
	"context"
	"maps"
	"sync"
)

// MemoryStorage is an in-memory Storage.
// It is the test double for durable storage and the backend for
// deployments that do not need a session to survive a restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]string
	closed  bool
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries: make(map[string]string),
	}
}

// Get returns the value for key.
func (m *MemoryStorage) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", false, ErrStorageClosed{}
	}

	v, ok := m.entries[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *MemoryStorage) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed{}
	}

	m.entries[key] = value
	return nil
}

// Remove deletes key.
func (m *MemoryStorage) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed{}
	}

	delete(m.entries, key)
	return nil
}

// SetMany writes all entries under one lock.
func (m *MemoryStorage) SetMany(ctx context.Context, entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed{}
	}

	maps.Copy(m.entries, entries)
	return nil
}

// RemoveMany removes all keys under one lock.
func (m *MemoryStorage) RemoveMany(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed{}
	}

	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

// Snapshot returns a copy of all entries.
// This is for testing/debugging purposes.
func (m *MemoryStorage) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.entries)
}

// Len returns the number of stored entries.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close releases the entries. Further calls return ErrStorageClosed.
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entries = nil
	return nil
}
