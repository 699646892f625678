package session

import (
	"context"
	"errors"
)

// Storage is the durable key/value mirror behind a Store.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set writes value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// BatchStorage is implemented by backends that can write or remove several
// entries in one atomic step. The Store uses it so the token and user
// entries never diverge.
type BatchStorage interface {
	Storage

	// SetMany writes all entries or none.
	SetMany(ctx context.Context, entries map[string]string) error

	// RemoveMany removes all keys or none.
	RemoveMany(ctx context.Context, keys ...string) error
}

// Availability is implemented by storages that may not be usable in the
// current execution context.
type Availability interface {
	Available() bool
}

// Unavailable is the storage of an environment without durable storage.
// Reads find nothing and writes are dropped.
type Unavailable struct{}

// Available always reports false.
func (Unavailable) Available() bool { return false }

// Get always reports the key as absent.
func (Unavailable) Get(context.Context, string) (string, bool, error) { return "", false, nil }

// Set discards the value.
func (Unavailable) Set(context.Context, string, string) error { return nil }

// Remove does nothing.
func (Unavailable) Remove(context.Context, string) error { return nil }

// available reports whether s can hold entries.
func available(s Storage) bool {
	if s == nil {
		return false
	}
	if a, ok := s.(Availability); ok {
		return a.Available()
	}
	return true
}

// setEntries writes entries atomically when the backend supports it.
func setEntries(ctx context.Context, s Storage, entries map[string]string) error {
	if b, ok := s.(BatchStorage); ok {
		return b.SetMany(ctx, entries)
	}
	// Drop the old token first and write the new one last: a failure at any
	// step leaves either no token or the complete new pair.
	if _, ok := entries[TokenKey]; ok {
		if err := s.Remove(ctx, TokenKey); err != nil {
			return err
		}
	}
	for key, v := range entries {
		if key == TokenKey {
			continue
		}
		if err := s.Set(ctx, key, v); err != nil {
			return err
		}
	}
	if v, ok := entries[TokenKey]; ok {
		return s.Set(ctx, TokenKey, v)
	}
	return nil
}

// removeEntries removes keys atomically when the backend supports it.
func removeEntries(ctx context.Context, s Storage, keys ...string) error {
	if b, ok := s.(BatchStorage); ok {
		return b.RemoveMany(ctx, keys...)
	}
	var errs []error
	for _, key := range keys {
		if err := s.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
