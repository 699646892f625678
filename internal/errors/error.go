package errors

import (
	"bufio"
	"fmt"
	"os"
)

// Category represents the area an error belongs to.
type Category string

const (
	CategorySession Category = "session"
	CategoryStorage Category = "storage"
	CategoryCatalog Category = "catalog"
	CategoryUpload  Category = "upload"
	CategoryConfig  Category = "config"
	CategoryCLI     Category = "cli"
)

// Location points into a file, usually the project configuration.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// StorefrontError is a coded error with an explanation and a hint, shown by
// the CLI in place of a bare error string.
type StorefrontError struct {
	// Code is a unique error identifier (e.g., "S101").
	Code string

	// Category is the area the error belongs to.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is the file position the error refers to, if any.
	Location *Location

	// Context contains the file lines around Location.
	Context []string

	// ContextStart is the line number of Context[0].
	ContextStart int

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Example is a command showing the correct approach.
	Example string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *StorefrontError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *StorefrontError) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds a file position and the lines around it.
func (e *StorefrontError) WithLocation(file string, line, column int) *StorefrontError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context, e.ContextStart = readContextLines(file, line, 5)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *StorefrontError) WithSuggestion(s string) *StorefrontError {
	e.Suggestion = s
	return e
}

// WithExample adds an example command to the error.
func (e *StorefrontError) WithExample(ex string) *StorefrontError {
	e.Example = ex
	return e
}

// WithDetail replaces the detailed explanation.
func (e *StorefrontError) WithDetail(d string) *StorefrontError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *StorefrontError) Wrap(err error) *StorefrontError {
	e.Wrapped = err
	return e
}

// readContextLines reads lines around the specified line number from a file.
func readContextLines(filename string, targetLine, contextSize int) ([]string, int) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := max(1, targetLine-contextSize/2)
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	if len(lines) == 0 {
		return nil, 0
	}
	return lines, startLine
}

// New creates a StorefrontError from a registered error code.
func New(code string) *StorefrontError {
	template, ok := registry[code]
	if !ok {
		return &StorefrontError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &StorefrontError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new StorefrontError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *StorefrontError {
	return &StorefrontError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error under code. A *StorefrontError is
// returned unchanged.
func FromError(err error, code string) *StorefrontError {
	if err == nil {
		return nil
	}
	if se, ok := err.(*StorefrontError); ok {
		return se
	}
	return New(code).Wrap(err)
}
