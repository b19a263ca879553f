// Package storage provides object storage for archived raw log files.
package storage

import (
	"context"
	"errors"

	"github.com/logsphere/logsphere/internal/config"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts the archive backend. Implementations include
// S3 and the local filesystem.
type ObjectStorage interface {
	// Upload copies a local file into the archive at objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download copies an archived object to localPath.
	Download(ctx context.Context, objectPath, localPath string) error

	// Delete removes an archived object.
	Delete(ctx context.Context, objectPath string) error

	// Exists reports whether an object is present in the archive.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// Open builds an ObjectStorage from the storage configuration.
func Open(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Type {
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	case "local", "":
		return NewLocalStorage(cfg.Path)
	default:
		return nil, errors.New("unknown storage type: " + cfg.Type)
	}
}
