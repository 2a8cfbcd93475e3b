package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/castlemilk/finintel/backend/internal/archive"
	"github.com/castlemilk/finintel/backend/internal/config"
	"github.com/castlemilk/finintel/backend/internal/intelligence"
	"github.com/castlemilk/finintel/backend/internal/store"
)

func clientOptions(cfg config.StoreConfig) []option.ClientOption {
	if cfg.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
}

// OpenStore connects the configured backend. The returned func releases it.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (store.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendFirestore:
		if cfg.ProjectID == "" {
			return nil, nil, fmt.Errorf("firestore backend: project id is required")
		}
		client, err := firestore.NewClient(ctx, cfg.ProjectID, clientOptions(cfg)...)
		if err != nil {
			return nil, nil, fmt.Errorf("create firestore client: %w", err)
		}
		logger.Info("using firestore store", zap.String("project", cfg.ProjectID))
		return store.NewFirestoreStore(client), client.Close, nil

	case config.BackendPostgres:
		if cfg.PostgresURL == "" {
			return nil, nil, fmt.Errorf("postgres backend: url is required")
		}
		if cfg.AutoMigrate {
			if err := store.MigratePostgres(cfg.PostgresURL); err != nil {
				return nil, nil, err
			}
		}
		pool, err := store.ConnectPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using postgres store", zap.Bool("auto_migrate", cfg.AutoMigrate))
		return store.NewPostgresStore(pool), func() error { pool.Close(); return nil }, nil
	}

	logger.Info("using in-memory store")
	return store.NewMemoryStore(), func() error { return nil }, nil
}

// OpenArchiver returns a GCS report archiver, or nil when no bucket is configured.
func OpenArchiver(ctx context.Context, cfg config.ArchiveConfig, storeCfg config.StoreConfig, logger *zap.Logger) (*archive.Archiver, func() error, error) {
	if cfg.Bucket == "" {
		return nil, func() error { return nil }, nil
	}
	client, err := storage.NewClient(ctx, clientOptions(storeCfg)...)
	if err != nil {
		return nil, nil, fmt.Errorf("create storage client: %w", err)
	}
	logger.Info("archiving reports", zap.String("bucket", cfg.Bucket), zap.String("prefix", cfg.Prefix))
	w := archive.NewGCSWriter(client.Bucket(cfg.Bucket))
	return archive.New(w, cfg.Prefix, archive.DefaultRetryConfig, logger), client.Close, nil
}

// Open connects the configured store and archiver and builds the App over them.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	s, closeStore, err := OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	archiver, closeArchive, err := OpenArchiver(ctx, cfg.Archive, cfg.Store, logger)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	var opts []intelligence.Option
	if archiver != nil {
		opts = append(opts, intelligence.WithArchiver(archiver))
	}
	a, err := Build(s, cfg.Intelligence, logger, opts...)
	if err != nil {
		_ = closeArchive()
		_ = closeStore()
		return nil, err
	}
	a.closers = append([]func() error{closeStore, closeArchive}, a.closers...)
	return a, nil
}
