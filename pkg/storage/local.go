package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalBlobStore persists blobs on disk under a base directory.
type LocalBlobStore struct {
	baseDir string
}

// NewLocalBlobStore ensures the base directory exists and returns a handle.
func NewLocalBlobStore(baseDir string) (*LocalBlobStore, error) {
	if baseDir == "" {
		baseDir = "./blobs"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &LocalBlobStore{baseDir: baseDir}, nil
}

// Put streams the content into the file behind the handle.
func (s *LocalBlobStore) Put(ctx context.Context, handle string, r io.Reader, size int64, contentType string) error {
	path := s.resolve(handle)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare blob directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create blob file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("write blob stream: %w", err)
	}
	return nil
}

// Get returns a read-only handle for the stored blob.
func (s *LocalBlobStore) Get(ctx context.Context, handle string) (io.ReadCloser, error) {
	file, err := os.Open(s.resolve(handle))
	if err != nil {
		return nil, fmt.Errorf("open blob file: %w", err)
	}
	return file, nil
}

// Copy duplicates the blob under a new handle.
func (s *LocalBlobStore) Copy(ctx context.Context, src, dst string) error {
	in, err := os.Open(s.resolve(src))
	if err != nil {
		return fmt.Errorf("open blob source: %w", err)
	}
	defer in.Close() //nolint:errcheck

	path := s.resolve(dst)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare blob directory: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create blob copy: %w", err)
	}
	defer out.Close() //nolint:errcheck
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy blob: %w", err)
	}
	return nil
}

// Delete removes the blob if present.
func (s *LocalBlobStore) Delete(ctx context.Context, handle string) error {
	if err := os.Remove(s.resolve(handle)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob file: %w", err)
	}
	return nil
}

// Stat returns the stored size of the blob.
func (s *LocalBlobStore) Stat(ctx context.Context, handle string) (int64, error) {
	info, err := os.Stat(s.resolve(handle))
	if err != nil {
		return 0, fmt.Errorf("stat blob file: %w", err)
	}
	return info.Size(), nil
}

func (s *LocalBlobStore) resolve(handle string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(handle))
}
