package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/vango-dev/storefront/internal/config"
	"github.com/vango-dev/storefront/internal/telemetry"
	"github.com/vango-dev/storefront/pkg/catalog"
	"github.com/vango-dev/storefront/pkg/session"
)

// annotationNoConfig marks commands that run without loading configuration.
const annotationNoConfig = "storefront/no-config"

// app holds what every command shares once configuration is loaded.
type app struct {
	configDir string

	cfg             *config.Config
	logger          *slog.Logger
	shutdownTracing telemetry.ShutdownFunc
}

// init loads configuration and sets up logging and tracing.
func (a *app) init(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if a.configDir != "" {
		cfg, err = config.Load(a.configDir)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := telemetry.NewLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.logger = logger

	shutdown, err := telemetry.SetupTracing(cmd.Context(), cfg.Tracing)
	if err != nil {
		return err
	}
	a.shutdownTracing = shutdown
	return nil
}

// close flushes pending spans.
func (a *app) close(ctx context.Context) error {
	if a.shutdownTracing == nil {
		return nil
	}
	return a.shutdownTracing(ctx)
}

func (a *app) component(name string) *slog.Logger {
	return a.logger.With("component", name)
}

// openStore opens the configured storage and a store mirrored to it. The
// store hydrates lazily; callers that need a restored session call Hydrate.
func (a *app) openStore(ctx context.Context) (*session.Store, func() error, error) {
	storage, closeStorage, err := openStorage(ctx, a.cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	store := session.NewStore(storage, session.WithLogger(a.component("session")))
	return store, closeStorage, nil
}

// catalogClient returns a catalog client authenticated by tokens.
func (a *app) catalogClient(tokens catalog.TokenSource) *catalog.Client {
	opts := []catalog.Option{
		catalog.WithHTTPClient(&http.Client{Timeout: a.cfg.Catalog.Timeout.Std()}),
		catalog.WithLogger(a.component("catalog")),
	}
	if tokens != nil {
		opts = append(opts, catalog.WithTokenSource(tokens))
	}
	return catalog.NewClient(a.cfg.Catalog.BaseURL, opts...)
}
