package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DiskStore stores uploads on the local filesystem. Each upload is a data
// file named by its ID plus a JSON sidecar holding its metadata.
type DiskStore struct {
	dir     string
	maxSize int64
	baseURL string

	mu    sync.RWMutex
	files map[string]*diskMeta
}

type diskMeta struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// DiskOption configures a DiskStore.
type DiskOption func(*DiskStore)

// WithPublicURL makes URL return baseURL + "/" + id instead of a file:// URL.
func WithPublicURL(baseURL string) DiskOption {
	return func(s *DiskStore) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewDiskStore creates a new DiskStore.
//
// Parameters:
//   - dir: Directory to store uploads
//   - maxSize: Maximum file size in bytes (0 = no limit)
func NewDiskStore(dir string, maxSize int64, opts ...DiskOption) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &DiskStore{
		dir:     dir,
		maxSize: maxSize,
		files:   make(map[string]*diskMeta),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the upload directory.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save stores the uploaded file and returns its ID.
func (s *DiskStore) Save(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error) {
	if s.maxSize > 0 && size > s.maxSize {
		return "", ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	path := s.dataPath(id)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var reader io.Reader = r
	if s.maxSize > 0 {
		reader = io.LimitReader(r, s.maxSize+1) // +1 to detect overflow
	}

	written, err := io.Copy(f, reader)
	if err != nil {
		os.Remove(path)
		return "", err
	}
	if s.maxSize > 0 && written > s.maxSize {
		os.Remove(path)
		return "", ErrTooLarge
	}

	meta := &diskMeta{
		Filename:    filename,
		ContentType: contentType,
		Size:        written,
		CreatedAt:   time.Now(),
	}
	if err := s.saveMeta(id, meta); err != nil {
		os.Remove(path)
		return "", err
	}

	s.mu.Lock()
	s.files[id] = meta
	s.mu.Unlock()

	return id, nil
}

// URL returns the public URL of a saved file, or its file:// URL when the
// store has no public base.
func (s *DiskStore) URL(_ context.Context, id string) (string, error) {
	if _, err := s.meta(id); err != nil {
		return "", err
	}
	if s.baseURL != "" {
		return s.baseURL + "/" + id, nil
	}
	abs, err := filepath.Abs(s.dataPath(id))
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// Claim retrieves and removes a pending file. The data file is deleted when
// the returned File is closed.
func (s *DiskStore) Claim(_ context.Context, id string) (*File, error) {
	meta, err := s.meta(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.files, id)
	s.mu.Unlock()

	path := s.dataPath(id)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &File{
		ID:          id,
		Filename:    meta.Filename,
		ContentType: meta.ContentType,
		Size:        meta.Size,
		Path:        path,
		Reader:      &deleteOnCloseReader{File: f, path: path, metaPath: s.metaPath(id)},
	}, nil
}

// Cleanup removes pending files older than maxAge, including files left
// behind by a previous process.
func (s *DiskStore) Cleanup(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, meta := range s.files {
		if meta.CreatedAt.Before(cutoff) {
			delete(s.files, id)
			os.Remove(s.dataPath(id))
			os.Remove(s.metaPath(id))
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(s.dir, entry.Name()))
		}
	}

	return nil
}

// meta returns the metadata of id from memory or its sidecar.
func (s *DiskStore) meta(id string) (*diskMeta, error) {
	// IDs are UUIDs; anything else cannot name a file in dir.
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	meta, ok := s.files[id]
	s.mu.RUnlock()
	if ok {
		return meta, nil
	}

	meta, err := s.loadMeta(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return meta, nil
}

func (s *DiskStore) dataPath(id string) string {
	return filepath.Join(s.dir, id)
}

func (s *DiskStore) metaPath(id string) string {
	return filepath.Join(s.dir, id+".meta")
}

func (s *DiskStore) saveMeta(id string, meta *diskMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(s.metaPath(id), data, 0o644)
}

func (s *DiskStore) loadMeta(id string) (*diskMeta, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		return nil, err
	}
	var meta diskMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// deleteOnCloseReader wraps a file and deletes it when closed.
type deleteOnCloseReader struct {
	*os.File
	path     string
	metaPath string
}

func (r *deleteOnCloseReader) Close() error {
	err := r.File.Close()
	os.Remove(r.path)
	os.Remove(r.metaPath)
	return err
}
