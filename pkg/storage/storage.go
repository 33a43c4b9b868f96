// Package storage persists buffered payloads in file-oriented stores.
//
// FileStore abstracts the backend (local disk, S3-compatible object
// stores) so payloads assembled in a buffer.Stream can be uploaded or
// downloaded without the caller knowing where they end up. Upload drains
// the Stream; stores that implement StreamPutter receive it in a single
// call with its length known up front.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/haivivi/blockstream/pkg/buffer"
)

// ErrEmptyPath is returned when a payload path is empty.
var ErrEmptyPath = errors.New("storage: empty path")

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// The caller must close the returned ReadCloser when done.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing.
	// If the file already exists it is replaced when the writer is closed.
	// Parent directories are created automatically.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file.
	// If the file does not exist, Delete returns nil (idempotent).
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// StreamPutter is implemented by stores that can take a whole Stream in
// one call. PutStream consumes s only after the payload is stored and
// returns the number of bytes stored. On error s is left untouched.
type StreamPutter interface {
	PutStream(ctx context.Context, path string, s *buffer.Stream) (int64, error)
}

// Upload drains s into the named file and returns the number of bytes
// stored.
//
// When fs implements StreamPutter, s keeps its content if the upload
// fails. Otherwise the bytes are streamed through fs.Write and those
// already handed to the writer are gone from s on error.
func Upload(ctx context.Context, fs FileStore, path string, s *buffer.Stream) (int64, error) {
	if path == "" {
		return 0, ErrEmptyPath
	}
	if p, ok := fs.(StreamPutter); ok {
		return p.PutStream(ctx, path, s)
	}
	w, err := fs.Write(ctx, path)
	if err != nil {
		return 0, err
	}
	n, err := s.WriteTo(w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("storage: upload %s: %w", path, err)
	}
	return n, nil
}

// Download appends the named file to s and returns the number of bytes
// read.
func Download(ctx context.Context, fs FileStore, path string, s *buffer.Stream) (int64, error) {
	if path == "" {
		return 0, ErrEmptyPath
	}
	r, err := fs.Read(ctx, path)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	n, err := s.ReadFrom(r)
	if err != nil {
		return n, fmt.Errorf("storage: download %s: %w", path, err)
	}
	return n, nil
}
