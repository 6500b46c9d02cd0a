package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver moves settled history out of the primary store into cold storage.
type Archiver interface {
	// ArchiveSettlements uploads every resolved market whose window closed
	// before the cutoff, together with its positions, and returns the number
	// of markets archived.
	ArchiveSettlements(ctx context.Context, before time.Time) (int64, error)
}
