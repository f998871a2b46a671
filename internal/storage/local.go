package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sublinear-mpc/matching/pkg/errors"
)

// LocalStore writes artifacts under a base directory on the local
// filesystem. A run's metrics_run.json / metrics_run.csv land here only
// when the local backend is the configured ArtifactStore.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a LocalStore rooted at basePath, creating it if
// it doesn't already exist.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if basePath == "" {
		basePath = "./metrics"
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, errors.Wrap(errors.CodeStorageError, "creating local artifact directory", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

func (s *LocalStore) Upload(ctx context.Context, key string, reader io.Reader) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fullPath := s.getFullPath(key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return errors.Wrap(errors.CodeStorageError, "creating artifact directory", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return errors.Wrap(errors.CodeStorageError, fmt.Sprintf("creating artifact %q", key), err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return errors.Wrap(errors.CodeStorageError, fmt.Sprintf("writing artifact %q", key), err)
	}
	return nil
}

func (s *LocalStore) UploadFile(ctx context.Context, key string, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(errors.CodeStorageError, fmt.Sprintf("opening source file %q", localPath), err)
	}
	defer f.Close()
	return s.Upload(ctx, key, f)
}

func (s *LocalStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	fullPath := s.getFullPath(key)
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.CodeStorageError, fmt.Sprintf("artifact %q not found", key), err)
		}
		return nil, errors.Wrap(errors.CodeStorageError, fmt.Sprintf("opening artifact %q", key), err)
	}
	return file, nil
}

func (s *LocalStore) DownloadFile(ctx context.Context, key string, localPath string) error {
	src, err := s.Download(ctx, key)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return errors.Wrap(errors.CodeStorageError, "creating destination directory", err)
	}
	dst, err := os.Create(localPath)
	if err != nil {
		return errors.Wrap(errors.CodeStorageError, fmt.Sprintf("creating destination file %q", localPath), err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.Wrap(errors.CodeStorageError, "copying artifact to destination", err)
	}
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := os.Remove(s.getFullPath(key)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(errors.CodeStorageError, fmt.Sprintf("deleting artifact %q", key), err)
	}
	return nil
}

func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	_, err := os.Stat(s.getFullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(errors.CodeStorageError, fmt.Sprintf("checking artifact %q", key), err)
	}
	return true, nil
}

func (s *LocalStore) GetURL(key string) string {
	return s.getFullPath(key)
}

func (s *LocalStore) getFullPath(key string) string {
	return filepath.Join(s.basePath, key)
}
