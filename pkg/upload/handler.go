package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// FormField is the multipart field that carries files.
const FormField = "file"

// multipartOverhead is the slack allowed on top of the files themselves for
// multipart boundaries and part headers.
const multipartOverhead = 64 << 10

// sniffLen is how many bytes http.DetectContentType looks at.
const sniffLen = 512

// Route describes one upload endpoint and its constraints.
type Route struct {
	// Name identifies the route in completions and logs.
	Name string

	// Slug is the path segment under /api/upload/.
	Slug string

	// MaxFileSize is the maximum allowed size of each file in bytes.
	MaxFileSize int64

	// MaxFileCount is the maximum number of files per request.
	MaxFileCount int

	// AllowedTypes lists accepted MIME types of the detected content.
	// Entries ending in "/" match a whole top-level type ("image/").
	// If empty, all types are allowed.
	AllowedTypes []string

	// TempExpiry is how long unclaimed files live before cleanup.
	TempExpiry time.Duration
}

// ImageRoute returns the "imageUploader" route: one image of up to 4MB.
func ImageRoute() Route {
	return Route{
		Name:         "imageUploader",
		Slug:         "image",
		MaxFileSize:  4 << 20,
		MaxFileCount: 1,
		AllowedTypes: []string{"image/"},
		TempExpiry:   time.Hour,
	}
}

func (rt Route) allows(contentType string) bool {
	if len(rt.AllowedTypes) == 0 {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, allowed := range rt.AllowedTypes {
		if strings.HasSuffix(allowed, "/") {
			if strings.HasPrefix(mediaType, allowed) {
				return true
			}
			continue
		}
		if mediaType == allowed {
			return true
		}
	}
	return false
}

// Uploaded describes one stored file in a response and in a Completion.
type Uploaded struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Completion is passed to the completion hook after a file is stored.
type Completion struct {
	Route  string
	UserID string
	File   Uploaded
}

// CompletionFunc runs after each stored file.
type CompletionFunc func(ctx context.Context, c Completion)

type handlerConfig struct {
	authorizer Authorizer
	onComplete CompletionFunc
	logger     *slog.Logger
}

// HandlerOption configures an upload handler.
type HandlerOption func(*handlerConfig)

// WithAuthorizer sets the authorizer. Without one, uploads are anonymous.
func WithAuthorizer(a Authorizer) HandlerOption {
	return func(c *handlerConfig) {
		c.authorizer = a
	}
}

// WithOnComplete sets the completion hook.
// Default: log the user ID and file URL.
func WithOnComplete(fn CompletionFunc) HandlerOption {
	return func(c *handlerConfig) {
		c.onComplete = fn
	}
}

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(c *handlerConfig) {
		c.logger = logger
	}
}

// Handler returns an http.Handler that stores the files of route.
//
// The handler expects a multipart form with one or more "file" fields and
// answers with JSON:
//
//	{"files": [{"id": "...", "name": "cat.png", "size": 1024, "type": "image/png", "url": "..."}]}
//
// Authorization runs before the body is read. Every file is validated
// before any is stored.
func Handler(store Store, route Route, opts ...HandlerOption) http.Handler {
	cfg := &handlerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default().With("component", "upload")
	}
	if cfg.onComplete == nil {
		logger := cfg.logger
		cfg.onComplete = func(ctx context.Context, c Completion) {
			logger.InfoContext(ctx, "upload complete",
				"route", c.Route,
				"user_id", c.UserID,
				"url", c.File.URL,
			)
		}
	}
	if route.MaxFileSize <= 0 {
		route.MaxFileSize = 10 << 20
	}
	if route.MaxFileCount <= 0 {
		route.MaxFileCount = 1
	}

	return &handler{store: store, route: route, cfg: cfg}
}

type handler struct {
	store Store
	route Route
	cfg   *handlerConfig
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var userID string
	if h.cfg.authorizer != nil {
		id, err := h.cfg.authorizer.Authorize(r)
		if err != nil {
			h.cfg.logger.Warn("upload rejected", "route", h.route.Name, "error", err)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		userID = id
	}

	limit := h.route.MaxFileSize*int64(h.route.MaxFileCount) + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, ErrTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "failed to parse form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[FormField]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	if len(headers) > h.route.MaxFileCount {
		writeError(w, http.StatusBadRequest, ErrTooManyFiles.Error())
		return
	}

	parts := make([]*pendingFile, 0, len(headers))
	defer func() {
		for _, p := range parts {
			p.file.Close()
		}
	}()
	for _, fh := range headers {
		p, err := h.open(fh)
		if err != nil {
			h.writeFailure(w, err)
			return
		}
		parts = append(parts, p)
	}

	uploaded := make([]Uploaded, 0, len(parts))
	for _, p := range parts {
		u, err := h.save(r.Context(), p)
		if err != nil {
			h.cfg.logger.Error("upload failed", "route", h.route.Name, "user_id", userID, "error", err)
			h.writeFailure(w, err)
			return
		}
		uploaded = append(uploaded, u)
	}

	for _, u := range uploaded {
		h.cfg.onComplete(r.Context(), Completion{Route: h.route.Name, UserID: userID, File: u})
	}

	writeJSON(w, http.StatusOK, map[string]any{"files": uploaded})
}

// pendingFile is a validated multipart file with its sniffed prefix.
type pendingFile struct {
	name        string
	size        int64
	contentType string
	head        []byte
	file        multipart.File
}

// open validates size and detected type of one file. The client's
// Content-Type header is ignored.
func (h *handler) open(fh *multipart.FileHeader) (*pendingFile, error) {
	if fh.Size > h.route.MaxFileSize {
		return nil, ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, err
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if !h.route.allows(contentType) {
		f.Close()
		return nil, ErrTypeNotAllowed
	}

	return &pendingFile{
		name:        fh.Filename,
		size:        fh.Size,
		contentType: contentType,
		head:        head,
		file:        f,
	}, nil
}

func (h *handler) save(ctx context.Context, p *pendingFile) (Uploaded, error) {
	body := io.MultiReader(bytes.NewReader(p.head), p.file)
	id, err := h.store.Save(ctx, p.name, p.contentType, p.size, body)
	if err != nil {
		return Uploaded{}, err
	}
	url, err := h.store.URL(ctx, id)
	if err != nil {
		return Uploaded{}, err
	}
	return Uploaded{ID: id, Name: p.name, Size: p.size, Type: p.contentType, URL: url}, nil
}

func (h *handler) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, ErrTooLarge.Error())
	case errors.Is(err, ErrTypeNotAllowed):
		writeError(w, http.StatusUnsupportedMediaType, ErrTypeNotAllowed.Error())
	default:
		writeError(w, http.StatusInternalServerError, "upload failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
