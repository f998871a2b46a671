// Package storage abstracts where the metrics artifact and the optional
// human-readable report are written to: the local filesystem for a
// single-machine run, or Tencent COS for a shared deployment where many
// runs across many machines need a common place to land.
package storage

import (
	"context"
	"io"

	"github.com/sublinear-mpc/matching/pkg/config"
	"github.com/sublinear-mpc/matching/pkg/errors"
)

// ArtifactStore is the interface every backend satisfies. It is small by
// design: the run artifact is write-once, read-many, never updated in
// place.
type ArtifactStore interface {
	// Upload uploads data from reader to the specified key.
	Upload(ctx context.Context, key string, reader io.Reader) error

	// UploadFile uploads a local file to the specified key.
	UploadFile(ctx context.Context, key string, localPath string) error

	// Download downloads data from the specified key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// DownloadFile downloads data from the specified key to a local file.
	DownloadFile(ctx context.Context, key string, localPath string) error

	// Delete deletes the object at the specified key.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns the URL or path for the specified key.
	GetURL(key string) string
}

// BackendType names the two backends an ArtifactStore can be.
type BackendType string

const (
	BackendLocal BackendType = "local"
	BackendCOS   BackendType = "cos"
)

// NewArtifactStore constructs the store named by cfg.Type, defaulting to
// the local filesystem.
func NewArtifactStore(cfg *config.StorageConfig) (ArtifactStore, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	switch BackendType(cfg.Type) {
	case BackendCOS:
		return NewCOSStore(&COSConfig{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
			Domain:    cfg.Domain,
			Scheme:    cfg.Scheme,
		})
	default:
		return NewLocalStore(cfg.LocalPath)
	}
}

// ValidateConfig checks that cfg names a supported backend and carries
// the fields that backend requires.
func ValidateConfig(cfg *config.StorageConfig) error {
	if cfg == nil {
		return errors.New(errors.CodeConfigError, "storage config is nil")
	}

	backend := BackendType(cfg.Type)
	if backend == "" {
		backend = BackendLocal
	}
	if backend != BackendCOS && backend != BackendLocal {
		return errors.New(errors.CodeConfigError, "unsupported storage backend: "+cfg.Type)
	}

	if backend == BackendCOS {
		if cfg.Bucket == "" {
			return errors.New(errors.CodeConfigError, "cos bucket is required")
		}
		if cfg.Region == "" {
			return errors.New(errors.CodeConfigError, "cos region is required")
		}
		if cfg.SecretID == "" || cfg.SecretKey == "" {
			return errors.New(errors.CodeConfigError, "cos credentials are required")
		}
	}

	if backend == BackendLocal && cfg.LocalPath == "" {
		return errors.New(errors.CodeConfigError, "local storage path is required")
	}

	return nil
}
