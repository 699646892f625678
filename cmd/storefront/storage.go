package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/vango-dev/storefront/internal/config"
	"github.com/vango-dev/storefront/internal/errors"
	"github.com/vango-dev/storefront/pkg/session"
)

// openStorage builds the session storage selected by cfg.Backend. The
// returned func releases it.
func openStorage(ctx context.Context, cfg config.StorageConfig) (session.Storage, func() error, error) {
	storage, closeFn, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, nil, errors.New("S105").
			WithDetail(fmt.Sprintf("The %s storage backend could not be opened.", cfg.Backend)).
			Wrap(err)
	}
	return storage, closeFn, nil
}

func newStorage(ctx context.Context, cfg config.StorageConfig) (session.Storage, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		m := session.NewMemoryStorage()
		return m, m.Close, nil

	case config.BackendFile:
		f, err := session.NewFileStorage(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		r := session.NewRedisStorage(client,
			session.WithRedisPrefix(cfg.Redis.Prefix),
			session.WithRedisTTL(cfg.Redis.TTL.Std()),
		)
		return r, func() error {
			return stderrors.Join(r.Close(), client.Close())
		}, nil

	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, nil, err
		}
		var opts []session.SQLStorageOption
		if cfg.Table != "" {
			opts = append(opts, session.WithSQLTableName(cfg.Table))
		}
		s, err := session.OpenSQLite(ctx, cfg.Path, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.BackendNone:
		return session.Unavailable{}, func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
