package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/config"
)

// BlobStore abstracts the byte store behind the document catalogue. Handles
// are opaque strings the core persists; it never parses them beyond deriving
// a download filename.
type BlobStore interface {
	// Put writes the content behind the handle, replacing any previous bytes.
	Put(ctx context.Context, handle string, r io.Reader, size int64, contentType string) error
	// Get opens the content behind the handle for reading.
	Get(ctx context.Context, handle string) (io.ReadCloser, error)
	// Copy duplicates the content of src under dst.
	Copy(ctx context.Context, src, dst string) error
	// Delete removes the content behind the handle. Deleting a missing handle
	// is not an error.
	Delete(ctx context.Context, handle string) error
	// Stat returns the stored size, or an error when the handle is absent.
	Stat(ctx context.Context, handle string) (int64, error)
}

// New builds the blob store selected by the configuration.
func New(cfg config.BlobConfig) (BlobStore, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalBlobStore(cfg.LocalDir)
	case "minio":
		return NewMinioBlobStore(cfg)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
