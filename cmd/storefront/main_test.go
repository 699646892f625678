package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/storefront/internal/config"
	"github.com/vango-dev/storefront/internal/errors"
)

func TestMain(m *testing.M) {
	errors.DisableColors()
	os.Exit(m.Run())
}

type result struct {
	stdout string
	stderr string
	code   int
}

// execute runs the CLI against the storefront.json in dir.
func execute(t *testing.T, dir string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"--config-dir", dir}, args...), &stdout, &stderr)
	return result{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

// projectDir writes a storefront.json using a file backend inside the
// returned directory, adjusted by mutate.
func projectDir(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.New()
	cfg.Storage.Backend = config.BackendFile
	cfg.Storage.Path = filepath.Join(dir, "state", "session.json")
	cfg.Log.Level = "error"
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.SaveTo(filepath.Join(dir, config.ConfigFileName)))
	return dir
}

// fakeCatalog serves the catalog endpoints the CLI calls.
type fakeCatalog struct {
	mu   sync.Mutex
	auth []string
}

func (f *fakeCatalog) server(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.auth = append(f.auth, r.Header.Get("Authorization"))
			f.mu.Unlock()
			respond(w, http.StatusOK, map[string]any{
				"products": []map[string]any{
					{"id": 1, "name": "Desk Lamp", "price": 20, "stock": 3},
				},
				"totalPages":  1,
				"currentPage": 1,
				"totalItems":  1,
			})
		})
		r.Post("/users/signin", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.Password != "secret" {
				respond(w, http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
				return
			}
			respond(w, http.StatusOK, map[string]any{
				"token": "catalog-token-0001",
				"user": map[string]any{
					"id": 3, "email": body.Email, "firstName": "Grace", "lastName": "Hopper", "role": "user",
				},
			})
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeCatalog) lastAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auth[len(f.auth)-1]
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestVersion(t *testing.T) {
	res := execute(t, t.TempDir(), "version", "--short")
	require.Zero(t, res.code)
	require.Equal(t, "dev\n", res.stdout)

	res = execute(t, t.TempDir(), "version")
	require.Contains(t, res.stdout, "Go version:")
}

func TestInvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName),
		[]byte("{\n  \"log\": {\n    \"level\": debug\n  }\n}\n"), 0o644))

	res := execute(t, dir, "session", "show")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, "ERROR S401: Invalid configuration file")
	require.Contains(t, res.stderr, config.ConfigFileName+":3:")
	require.Contains(t, res.stderr, `"level": debug`)
}

func TestInvalidConfigValue(t *testing.T) {
	dir := projectDir(t, nil)
	t.Setenv("STOREFRONT_STORAGE_BACKEND", "etcd")

	res := execute(t, dir, "session", "show")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, "ERROR S402: Invalid configuration")
	require.Contains(t, res.stderr, "storage.backend")
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()

	res := execute(t, dir, "config", "init")
	require.Zero(t, res.code, res.stderr)
	require.Contains(t, res.stdout, "Wrote")
	require.True(t, config.Exists(dir))

	res = execute(t, dir, "config", "init")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, "S501")
	require.Contains(t, res.stderr, "--force")

	res = execute(t, dir, "config", "init", "--force")
	require.Zero(t, res.code, res.stderr)

	t.Setenv("STOREFRONT_UPLOAD_JWT_SECRET", "do-not-print")
	res = execute(t, dir, "config", "show")
	require.Zero(t, res.code, res.stderr)
	require.Contains(t, res.stdout, "# "+filepath.Join(dir, config.ConfigFileName))
	require.Contains(t, res.stdout, `"backend": "file"`)
	require.NotContains(t, res.stdout, "do-not-print")
}

func TestUploadToken(t *testing.T) {
	dir := projectDir(t, nil)

	res := execute(t, dir, "upload", "token", "--user-id", "3")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, "STOREFRONT_UPLOAD_JWT_SECRET")

	t.Setenv("STOREFRONT_UPLOAD_JWT_SECRET", "shared")
	res = execute(t, dir, "upload", "token", "--user-id", "3", "--role", "admin")
	require.Zero(t, res.code, res.stderr)
	require.Equal(t, 2, strings.Count(strings.TrimSpace(res.stdout), "."))
}
