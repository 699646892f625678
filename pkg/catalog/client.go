package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/storefront/pkg/session"
)

const defaultTracerName = "storefront/catalog"

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// ErrInvalidSignIn is returned when a sign-in answer lacks a token or user.
var ErrInvalidSignIn = errors.New("catalog: sign-in response missing token or user")

// StatusError is returned for any non-2xx catalog answer.
type StatusError struct {
	// Op is the client operation, e.g. "products".
	Op string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the server's "error" field, if any.
	Message string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("catalog: %s: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// TokenSource supplies the bearer token sent with catalog requests.
// *session.Store implements it.
type TokenSource interface {
	Token() string
}

// Client talks to the catalog API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
	tracerName string
	apiPrefix  string
}

// WithHTTPClient sets the HTTP client.
// Default: a client with a 10 second timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) {
		cfg.httpClient = c
	}
}

// WithTokenSource attaches "Authorization: Bearer <token>" to requests
// whenever the source holds a token.
func WithTokenSource(ts TokenSource) Option {
	return func(cfg *clientConfig) {
		cfg.tokens = ts
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithTracerName sets the OpenTelemetry tracer name.
// Default: "storefront/catalog".
func WithTracerName(name string) Option {
	return func(cfg *clientConfig) {
		cfg.tracerName = name
	}
}

// WithAPIPrefix sets the path prefix of the versioned API.
// Default: "/api/v1".
func WithAPIPrefix(prefix string) Option {
	return func(cfg *clientConfig) {
		cfg.apiPrefix = prefix
	}
}

// NewClient creates a client for the catalog API served at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	cfg := &clientConfig{
		tracerName: defaultTracerName,
		apiPrefix:  "/api/v1",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default().With("component", "catalog")
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + cfg.apiPrefix,
		httpClient: cfg.httpClient,
		tokens:     cfg.tokens,
		logger:     cfg.logger,
		tracer:     otel.Tracer(cfg.tracerName),
	}
}

// Products lists products matching q.
func (c *Client) Products(ctx context.Context, q Query) (*Page, error) {
	var page Page
	if err := c.do(ctx, "products", http.MethodGet, "/products", q.Values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Product fetches a single product by ID.
func (c *Client) Product(ctx context.Context, id int64) (*Product, error) {
	var resp struct {
		Product Product `json:"product"`
	}
	path := fmt.Sprintf("/products/%d", id)
	if err := c.do(ctx, "product", http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

// SignIn exchanges credentials for a bearer token and the user profile.
// The caller stores them with session.Store.Set.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, *session.User, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var resp struct {
		Token string        `json:"token"`
		User  *session.User `json:"user"`
	}
	if err := c.do(ctx, "signin", http.MethodPost, "/users/signin", nil, body, &resp); err != nil {
		return "", nil, err
	}
	if resp.Token == "" || resp.User == nil {
		return "", nil, ErrInvalidSignIn
	}
	return resp.Token, resp.User, nil
}

// do performs one request and decodes a 2xx JSON answer into out.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "catalog."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	err := c.roundTrip(ctx, op, method, path, query, body, out, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("catalog request failed", "op", op, "path", path, "error", err)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, query url.Values, body, out any, span trace.Span) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("catalog: %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("catalog: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog: %s: %w", op, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("catalog: %s: decode response: %w", op, err)
	}
	return nil
}

func statusError(op string, resp *http.Response) *StatusError {
	serr := &StatusError{Op: op, StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return serr
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil {
		serr.Message = payload.Error
	}
	return serr
}
