package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps audio on the local filesystem. Used when MinIO is not
// configured, e.g. development and tests.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the base directory if needed and returns a store
// rooted there.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) path(objectName string) string {
	return filepath.Join(s.dir, filepath.FromSlash(objectName))
}

// Save streams the reader into a file under the store directory.
func (s *LocalStore) Save(_ context.Context, objectName string, r io.Reader, _ int64, _ string) error {
	dst := s.path(objectName)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", objectName, err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create audio file %s: %w", objectName, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to write audio file %s: %w", objectName, err)
	}
	return nil
}

// Open returns a read stream for the stored file.
func (s *LocalStore) Open(_ context.Context, objectName string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(objectName))
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file %s: %w", objectName, err)
	}
	return f, nil
}

// Delete removes the stored file.
func (s *LocalStore) Delete(_ context.Context, objectName string) error {
	if err := os.Remove(s.path(objectName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete audio file %s: %w", objectName, err)
	}
	return nil
}
