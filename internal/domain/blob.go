package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver moves settled trade history from the database to cold storage.
type Archiver interface {
	ArchiveClosedPositions(ctx context.Context, before time.Time) (int64, error)
	ArchiveWhaleMoves(ctx context.Context, before time.Time) (int64, error)
}
