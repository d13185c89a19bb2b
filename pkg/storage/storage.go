// Package storage defines the FileStore interface used to persist index
// snapshots and reference-set exports. It abstracts the backend so a
// matching service can keep its artifacts on local disk or in an S3
// bucket without changing the pipeline code.
package storage

import (
	"context"
	"io"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading. The caller must close the
	// returned ReadCloser. If the file does not exist, an error
	// wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing, truncating any existing
	// content. Parent directories are created automatically. The file
	// becomes visible to readers only once the returned WriteCloser is
	// closed, so a crashed writer never publishes a torn artifact.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file. Deleting a missing file is not an
	// error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns the paths under the given prefix, sorted. A missing
	// prefix yields an empty list.
	List(ctx context.Context, prefix string) ([]string, error)
}

// WriteAll stores blob at path, closing the writer before returning.
func WriteAll(ctx context.Context, fs FileStore, path string, blob []byte) error {
	w, err := fs.Write(ctx, path)
	if err != nil {
		return err
	}
	if _, err := w.Write(blob); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ReadAll loads the whole file at path.
func ReadAll(ctx context.Context, fs FileStore, path string) ([]byte, error) {
	r, err := fs.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
