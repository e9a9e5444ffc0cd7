package storage

import (
	"context"
	"io"
)

// AudioStore abstracts where uploaded meeting audio lives. Save streams the
// upload body through; implementations must not buffer the whole file.
type AudioStore interface {
	Save(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, objectName string) (io.ReadCloser, error)
	Delete(ctx context.Context, objectName string) error
}
