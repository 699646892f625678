package session

import (
	"errors"
	"fmt"
)

// ErrPartialSession is returned by Set when only one of token and user is given.
var ErrPartialSession = errors.New("session: token and user must both be present")

// ErrInvalidUser is returned by Set and EncodeUser when a user field is not
// valid UTF-8. Such a value could not be restored byte for byte.
var ErrInvalidUser = errors.New("session: user fields must be valid UTF-8")

// ErrCorruptUser is returned when the stored user entry is not a valid
// serialized User.
var ErrCorruptUser = errors.New("session: stored user entry is corrupt")

// ErrStorageClosed is returned when operations are attempted on a closed storage.
type ErrStorageClosed struct{}

func (e ErrStorageClosed) Error() string {
	return "session storage is closed"
}

// HydrationError reports a failed startup load from durable storage.
// The store stays empty when hydration fails.
type HydrationError struct {
	// Key is the storage entry being read when the failure happened.
	Key string
	Err error
}

func (e *HydrationError) Error() string {
	return fmt.Sprintf("session: hydrate %q: %v", e.Key, e.Err)
}

func (e *HydrationError) Unwrap() error {
	return e.Err
}

// PersistError reports a failed mirror write. The in-memory session and the
// subscribers have already seen the new value when it is returned.
type PersistError struct {
	// Op is "set" or "clear".
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("session: persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
