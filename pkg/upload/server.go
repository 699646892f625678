package upload

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// DefaultAddr is the upload service listen address.
const DefaultAddr = ":8145"

// Server runs the upload service and its cleanup loop.
type Server struct {
	srv             *http.Server
	store           Store
	logger          *slog.Logger
	cleanupInterval time.Duration
	maxAge          time.Duration
	shutdownTimeout time.Duration
}

// ServerConfig configures a Server.
type ServerConfig struct {
	Addr    string
	Handler http.Handler
	Store   Store

	// CleanupInterval is how often unclaimed files are swept.
	// Zero disables the sweep.
	CleanupInterval time.Duration

	// MaxAge is how long unclaimed files are kept. Default: 1 hour.
	MaxAge time.Duration

	// ShutdownTimeout bounds graceful shutdown. Default: 10 seconds.
	ShutdownTimeout time.Duration

	Logger *slog.Logger
}

// NewServer creates a Server.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default().With("component", "upload")
	}

	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           cfg.Handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:           cfg.Store,
		logger:          cfg.Logger,
		cleanupInterval: cfg.CleanupInterval,
		maxAge:          cfg.MaxAge,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Run listens on the configured address and serves until ctx is done, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cleanupInterval > 0 && s.store != nil {
		cleanupCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go RunCleanup(cleanupCtx, s.store, s.cleanupInterval, s.maxAge, func(err error) {
			s.logger.Warn("upload cleanup failed", "error", err)
		})
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("upload service listening", "addr", ln.Addr().String())
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.logger.Info("upload service shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
