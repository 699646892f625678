package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var pngData = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 600)...)

type multipartFile struct {
	name    string
	header  string // client-declared Content-Type
	content []byte
}

func multipartBody(t *testing.T, files ...multipartFile) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{`form-data; name="` + FormField + `"; filename="` + f.name + `"`}
		if f.header != "" {
			h["Content-Type"] = []string{f.header}
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

type completions struct {
	mu   sync.Mutex
	seen []Completion
}

func (c *completions) record(_ context.Context, comp Completion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, comp)
}

type testService struct {
	handler     http.Handler
	store       *DiskStore
	auth        *JWTAuthorizer
	completions *completions
	registry    *prometheus.Registry
}

func newTestService(t *testing.T) *testService {
	t.Helper()

	store, err := NewDiskStore(t.TempDir(), 0, WithPublicURL("https://files.example.com"))
	require.NoError(t, err)

	svc := &testService{
		store:       store,
		auth:        NewJWTAuthorizer("secret"),
		completions: &completions{},
		registry:    prometheus.NewRegistry(),
	}
	svc.handler = Router(RouterConfig{
		Store:      store,
		Authorizer: svc.auth,
		OnComplete: svc.completions.record,
		Registry:   svc.registry,
	})
	return svc
}

func (s *testService) upload(t *testing.T, authorized bool, files ...multipartFile) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, files...)
	req := httptest.NewRequest(http.MethodPost, "/api/upload/image", body)
	req.Header.Set("Content-Type", contentType)
	if authorized {
		token, err := s.auth.Issue(7, "user", time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error
}

func TestImageUpload_Success(t *testing.T) {
	svc := newTestService(t)

	// The declared Content-Type is ignored in favour of the sniffed one.
	rec := svc.upload(t, true, multipartFile{name: "cat.png", header: "application/octet-stream", content: pngData})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Files []Uploaded `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 1)
	got := resp.Files[0]
	require.Equal(t, "cat.png", got.Name)
	require.Equal(t, "image/png", got.Type)
	require.Equal(t, int64(len(pngData)), got.Size)
	require.Equal(t, "https://files.example.com/"+got.ID, got.URL)

	require.Len(t, svc.completions.seen, 1)
	require.Equal(t, Completion{Route: "imageUploader", UserID: "7", File: got}, svc.completions.seen[0])

	file, err := svc.store.Claim(context.Background(), got.ID)
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file.Reader)
	require.NoError(t, err)
	require.Equal(t, pngData, data, "sniffed bytes are stored too")
}

// failingBody fails the test if anything reads it.
type failingBody struct{ t *testing.T }

func (b failingBody) Read([]byte) (int, error) {
	b.t.Error("body read before authorization")
	return 0, io.EOF
}

func TestImageUpload_UnauthorizedBeforeBodyIsRead(t *testing.T) {
	svc := newTestService(t)

	req := httptest.NewRequest(http.MethodPost, "/api/upload/image", failingBody{t: t})
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	svc.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "unauthorized", decodeError(t, rec))
	require.Empty(t, svc.completions.seen)
}

func TestImageUpload_Rejections(t *testing.T) {
	tooBig := append(append([]byte{}, pngData...), bytes.Repeat([]byte{0}, 4<<20)...)
	wayTooBig := bytes.Repeat([]byte{0}, 6<<20)

	tests := []struct {
		name   string
		files  []multipartFile
		status int
	}{
		{"NotAnImage", []multipartFile{{name: "a.txt", header: "image/png", content: []byte("plain text pretending")}}, http.StatusUnsupportedMediaType},
		{"TooLarge", []multipartFile{{name: "big.png", content: tooBig}}, http.StatusRequestEntityTooLarge},
		{"BodyOverLimit", []multipartFile{{name: "huge.png", content: wayTooBig}}, http.StatusRequestEntityTooLarge},
		{"TooManyFiles", []multipartFile{{name: "a.png", content: pngData}, {name: "b.png", content: pngData}}, http.StatusBadRequest},
		{"NoFile", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t)
			rec := svc.upload(t, true, tt.files...)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.NotEmpty(t, decodeError(t, rec))
			require.Empty(t, svc.completions.seen)
		})
	}
}

func TestImageUpload_NotMultipart(t *testing.T) {
	svc := newTestService(t)
	token, err := svc.auth.Issue(7, "user", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/upload/image", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	svc.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_DefaultCompletionLogs(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), 0)
	require.NoError(t, err)

	var logs bytes.Buffer
	h := Handler(store, ImageRoute(), WithLogger(newTextLogger(&logs)))

	body, contentType := multipartBody(t, multipartFile{name: "cat.png", content: pngData})
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, logs.String(), "upload complete")
	require.Contains(t, logs.String(), "url=file://")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouteAllows(t *testing.T) {
	images := ImageRoute()
	require.True(t, images.allows("image/png"))
	require.True(t, images.allows("image/jpeg"))
	require.False(t, images.allows("text/plain; charset=utf-8"))
	require.False(t, images.allows("not a type"))

	exact := Route{AllowedTypes: []string{"application/pdf"}}
	require.True(t, exact.allows("application/pdf"))
	require.False(t, exact.allows("application/pdfx"))

	require.True(t, Route{}.allows("anything/at-all"))
}

func TestRouter_CORSHealthAndMetrics(t *testing.T) {
	svc := newTestService(t)

	preflight := httptest.NewRequest(http.MethodOptions, "/api/upload/image", nil)
	preflight.Header.Set("Origin", DefaultAllowedOrigin)
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	preflight.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	svc.handler.ServeHTTP(rec, preflight)
	require.Equal(t, DefaultAllowedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))

	foreign := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	foreign.Header.Set("Origin", "http://evil.example.com")
	rec = httptest.NewRecorder()
	svc.handler.ServeHTTP(rec, foreign)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	svc.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `storefront_upload_requests_total{method="GET",route="/healthz",status="200"} 1`)
}
