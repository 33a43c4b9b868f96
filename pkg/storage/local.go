package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/haivivi/blockstream/pkg/buffer"
)

// Local implements FileStore on top of the local filesystem.
// All paths are resolved relative to the configured root directory.
//
// Files are written to a temporary sibling and renamed into place on
// Close, so readers never observe a partially written payload.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir.
// The directory is created (with parents) if it does not already exist.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string {
	return l.root
}

// resolve turns a storage path into an absolute filesystem path.
func (l *Local) resolve(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(path))
}

// Read opens the named file for reading.
func (l *Local) Read(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(l.resolve(path))
}

// Write returns a writer into a temporary file that replaces the named
// file on Close.
func (l *Local) Write(_ context.Context, path string) (io.WriteCloser, error) {
	full := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(full), "."+filepath.Base(full)+".*")
	if err != nil {
		return nil, err
	}
	return &localWriter{f: f, path: full}, nil
}

// PutStream writes the unread bytes of s to the named file. The bytes
// are consumed only once the file has been renamed into place; on error
// s is left untouched.
func (l *Local) PutStream(ctx context.Context, path string, s *buffer.Stream) (int64, error) {
	w, err := l.Write(ctx, path)
	if err != nil {
		return 0, err
	}
	lw := w.(*localWriter)
	n, err := s.PeekTo(lw)
	if err != nil {
		lw.abort()
		return 0, fmt.Errorf("storage: put %s: %w", path, err)
	}
	if err := lw.Close(); err != nil {
		return 0, fmt.Errorf("storage: put %s: %w", path, err)
	}
	m, err := s.Skip(int(n))
	return int64(m), err
}

// Delete removes the named file. If the file does not exist, Delete
// returns nil (idempotent).
func (l *Local) Delete(_ context.Context, path string) error {
	err := os.Remove(l.resolve(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Exists reports whether the named file exists.
func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(l.resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

type localWriter struct {
	f    *os.File
	path string
}

func (w *localWriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

// Close flushes the temporary file and renames it over the target.
func (w *localWriter) Close() error {
	if err := w.f.Close(); err != nil {
		os.Remove(w.f.Name())
		return err
	}
	if err := os.Rename(w.f.Name(), w.path); err != nil {
		os.Remove(w.f.Name())
		return err
	}
	return nil
}

func (w *localWriter) abort() {
	w.f.Close()
	os.Remove(w.f.Name())
}

var (
	_ FileStore    = (*Local)(nil)
	_ StreamPutter = (*Local)(nil)
)
