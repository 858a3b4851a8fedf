package ports

import (
	"context"
	"io"
)

type StoredFile struct {
	Path string
	Hash string
	Size int64
}

// FileStore keeps uploaded documents addressed by content.
type FileStore interface {
	Put(ctx context.Context, filename string, r io.Reader) (StoredFile, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}
