package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/IshaanNene/FacetGrab/internal/config"
	"github.com/IshaanNene/FacetGrab/internal/types"
)

// Storage is the interface for manifest backends. A backend records
// images that are already on disk; it never writes the image bytes itself.
type Storage interface {
	// Store persists a batch of records.
	Store(ctx context.Context, records []*types.ImageRecord) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// NopStorage discards every record.
type NopStorage struct{}

func (NopStorage) Name() string                                      { return "none" }
func (NopStorage) Store(context.Context, []*types.ImageRecord) error { return nil }
func (NopStorage) Close() error                                      { return nil }

// New builds the manifest backend described by cfg. When an S3 bucket is
// configured the primary backend and an S3 mirror are combined.
func New(ctx context.Context, cfg config.StorageConfig, layout *Layout, logger *slog.Logger) (Storage, error) {
	var primary Storage
	switch cfg.Type {
	case "", "none":
		primary = NopStorage{}
	case "mongodb":
		mongo, err := NewMongoStorage(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
		if err != nil {
			return nil, &types.StorageError{Backend: "mongodb", Err: err}
		}
		primary = mongo
	default:
		path := cfg.ManifestPath
		if path == "" {
			path = filepath.Join(layout.Root, "manifest."+cfg.Type)
		}
		file, err := NewFileStorage(cfg.Type, path, logger)
		if err != nil {
			return nil, &types.StorageError{Backend: cfg.Type, Err: err}
		}
		primary = file
	}

	if cfg.S3Bucket == "" {
		return primary, nil
	}

	mirror, err := NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix, layout, logger)
	if err != nil {
		_ = primary.Close()
		return nil, &types.StorageError{Backend: "s3", Err: err}
	}
	return NewMultiStorage([]Storage{primary, mirror}, logger), nil
}

func storeErr(backend string, err error) error {
	if err == nil {
		return nil
	}
	return &types.StorageError{Backend: backend, Err: fmt.Errorf("store: %w", err)}
}
