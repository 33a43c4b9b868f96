package spool

import (
	"context"
	"errors"
	"iter"
)

// ErrNotFound is returned by Backend.Get when a key does not exist.
var ErrNotFound = errors.New("spool: not found")

// Entry is a key-value pair stored in a Backend.
type Entry struct {
	Key   []byte
	Value []byte
}

// Backend is the ordered byte-keyed store a Spool persists into.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns a copy of the value for key, or ErrNotFound.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Set atomically stores all entries.
	Set(ctx context.Context, entries ...Entry) error

	// Delete atomically removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...[]byte) error

	// Scan yields entries whose key starts with prefix in ascending key
	// order.
	Scan(ctx context.Context, prefix []byte) iter.Seq2[Entry, error]

	// Close releases any resources held by the backend.
	Close() error
}
