package upload

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when an upload doesn't exist.
var ErrNotFound = errors.New("upload: file not found")

// ErrTooLarge is returned when a file exceeds the size limit.
var ErrTooLarge = errors.New("upload: file too large")

// ErrUnauthorized is returned when a request carries no valid credentials.
var ErrUnauthorized = errors.New("upload: unauthorized")

// ErrTypeNotAllowed is returned when the detected content type is rejected.
var ErrTypeNotAllowed = errors.New("upload: file type not allowed")

// ErrTooManyFiles is returned when a request carries more files than allowed.
var ErrTooManyFiles = errors.New("upload: too many files")

// Store is the interface for upload storage backends.
type Store interface {
	// Save stores the uploaded file and returns its ID.
	// The file stays pending until Claim is called.
	Save(ctx context.Context, filename, contentType string, size int64, r io.Reader) (id string, err error)

	// URL returns where a saved file can be fetched.
	URL(ctx context.Context, id string) (string, error)

	// Claim retrieves and removes a pending file, returning a file handle.
	Claim(ctx context.Context, id string) (*File, error)

	// Cleanup removes pending files older than maxAge.
	Cleanup(ctx context.Context, maxAge time.Duration) error
}

// File represents an uploaded file.
type File struct {
	// ID is the unique identifier for this upload.
	ID string

	// Filename is the original filename from the client.
	Filename string

	// ContentType is the detected MIME type of the file.
	ContentType string

	// Size is the file size in bytes.
	Size int64

	// Path is the local filesystem path (DiskStore).
	Path string

	// URL is the remote URL (S3Store).
	URL string

	// Reader provides access to the file contents.
	Reader io.ReadCloser
}

// Close closes the file reader if open.
func (f *File) Close() error {
	if f.Reader != nil {
		return f.Reader.Close()
	}
	return nil
}

// Claim retrieves a pending file by ID.
//
// Example:
//
//	file, err := upload.Claim(ctx, store, id)
//	if err != nil {
//	    return err
//	}
//	defer file.Close()
func Claim(ctx context.Context, store Store, id string) (*File, error) {
	return store.Claim(ctx, id)
}

// RunCleanup calls store.Cleanup every interval until ctx is done.
// Failures are reported to onError, which may be nil.
func RunCleanup(ctx context.Context, store Store, interval, maxAge time.Duration, onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Cleanup(ctx, maxAge); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
