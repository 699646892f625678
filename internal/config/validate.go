package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotFound is returned when no storefront.json exists.
var ErrNotFound = errors.New("config: no " + ConfigFileName + " found")

// ErrEnv wraps failures to read .env or STOREFRONT_* variables.
var ErrEnv = errors.New("config: invalid environment")

// SyntaxError reports malformed JSON in a configuration file.
type SyntaxError struct {
	File   string
	Line   int
	Column int
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("config: %s:%d:%d: %v", e.File, e.Line, e.Column, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// newSyntaxError positions a json decoding error within data.
func newSyntaxError(path string, data []byte, err error) *SyntaxError {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	line, column := position(data, offset)
	return &SyntaxError{File: path, Line: line, Column: column, Err: err}
}

// position converts a byte offset into a 1-based line and column.
func position(data []byte, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	before := data[:offset]
	line := bytes.Count(before, []byte("\n")) + 1
	column := int(offset) - (bytes.LastIndexByte(before, '\n') + 1)
	if column < 1 {
		column = 1
	}
	return line, column
}

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendNone:
	case BackendFile, BackendSQLite:
		if c.Storage.Path == "" {
			return &ValidationError{Field: "storage.path", Reason: "required for the " + c.Storage.Backend + " backend"}
		}
	case BackendRedis:
		if c.Storage.Redis.Addr == "" {
			return &ValidationError{Field: "storage.redis.addr", Reason: "required for the redis backend"}
		}
	default:
		return &ValidationError{
			Field:  "storage.backend",
			Reason: fmt.Sprintf("unknown backend %q (want memory, file, redis, sqlite or none)", c.Storage.Backend),
		}
	}

	u, err := url.Parse(c.Catalog.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "catalog.baseURL", Reason: fmt.Sprintf("%q is not an http(s) URL", c.Catalog.BaseURL)}
	}
	if c.Catalog.Timeout < 0 {
		return &ValidationError{Field: "catalog.timeout", Reason: "must not be negative"}
	}

	if c.Upload.MaxFileSize <= 0 {
		return &ValidationError{Field: "upload.maxFileSize", Reason: "must be positive"}
	}
	if c.Upload.CleanupInterval < 0 || c.Upload.MaxAge < 0 {
		return &ValidationError{Field: "upload.cleanupInterval", Reason: "durations must not be negative"}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Field: "log.level", Reason: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return &ValidationError{Field: "log.format", Reason: fmt.Sprintf("unknown format %q (want text or json)", c.Log.Format)}
	}
	return nil
}
