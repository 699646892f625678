package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/storefront/internal/config"
	"github.com/vango-dev/storefront/internal/errors"
	"github.com/vango-dev/storefront/pkg/upload"
)

func uploadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Run and use the image upload service",
	}

	cmd.AddCommand(
		uploadServeCmd(a),
		uploadTokenCmd(a),
	)
	return cmd
}

func uploadServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the upload service",
		Long: `Start the upload service.

Files are kept in upload.dir, or in upload.s3.bucket when one is set.
Uploads require a bearer token signed with STOREFRONT_UPLOAD_JWT_SECRET;
without a secret anyone may upload.

Examples:
  storefront upload serve
  storefront upload serve --addr :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Upload.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := a.uploadServer()
			if err != nil {
				return errors.FromError(err, "S305")
			}

			out := cmd.OutOrStdout()
			success(out, "Upload service listening on %s", a.cfg.Upload.Addr)
			if a.cfg.Upload.JWTSecret == "" {
				info(out, "No JWT secret configured: uploads are anonymous")
			}

			if err := srv.Run(ctx); err != nil {
				return errors.FromError(err, "S305")
			}
			success(out, "Upload service stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from upload.addr)")
	return cmd
}

// uploadServer wires the configured store, authorizer and router.
func (a *app) uploadServer() (*upload.Server, error) {
	cfg := a.cfg.Upload
	logger := a.component("upload")

	store, err := newUploadStore(cfg)
	if err != nil {
		return nil, err
	}

	route := upload.ImageRoute()
	route.MaxFileSize = cfg.MaxFileSize

	var authorizer upload.Authorizer
	if cfg.JWTSecret != "" {
		authorizer = upload.NewJWTAuthorizer(cfg.JWTSecret)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := upload.Router(upload.RouterConfig{
		Store:          store,
		Routes:         []upload.Route{route},
		Authorizer:     authorizer,
		AllowedOrigins: cfg.AllowedOrigins,
		Registry:       registry,
		Logger:         logger,
	})

	return upload.NewServer(upload.ServerConfig{
		Addr:            cfg.Addr,
		Handler:         handler,
		Store:           store,
		CleanupInterval: cfg.CleanupInterval.Std(),
		MaxAge:          cfg.MaxAge.Std(),
		Logger:          logger,
	}), nil
}

func newUploadStore(cfg config.UploadConfig) (upload.Store, error) {
	if cfg.S3.Bucket != "" {
		client := upload.NewS3Client(upload.S3ClientConfig{
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.PathStyle,
		})
		return upload.NewS3Store(client, cfg.S3.Bucket, cfg.S3.Prefix, cfg.MaxFileSize), nil
	}

	var opts []upload.DiskOption
	if cfg.PublicURL != "" {
		opts = append(opts, upload.WithPublicURL(cfg.PublicURL))
	}
	return upload.NewDiskStore(cfg.Dir, cfg.MaxFileSize, opts...)
}

func uploadTokenCmd(a *app) *cobra.Command {
	var (
		userID uint
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token accepted by the upload service",
		Long: `Issue a bearer token accepted by the upload service.

The token is signed with STOREFRONT_UPLOAD_JWT_SECRET and carries the same
claims the catalog API issues on sign-in.`,
		Example: `  storefront upload token --user-id 3 --ttl 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Upload.JWTSecret == "" {
				return errors.New("S501").
					WithDetail("No JWT secret is configured, so the upload service accepts anonymous uploads.").
					WithSuggestion("Set STOREFRONT_UPLOAD_JWT_SECRET.")
			}

			token, err := upload.NewJWTAuthorizer(a.cfg.Upload.JWTSecret).Issue(userID, role, ttl)
			if err != nil {
				return errors.New("S501").Wrap(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().UintVar(&userID, "user-id", 0, "User ID claim")
	cmd.Flags().StringVar(&role, "role", "user", "Role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
