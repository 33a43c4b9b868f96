package buffer

import "errors"

// Sentinel errors. Operations wrap them with context, so test with
// errors.Is.
var (
	// ErrInvalidArgument reports out-of-range offsets, counts or sizes.
	// The buffer is left unchanged.
	ErrInvalidArgument = errors.New("buffer: invalid argument")

	// ErrUnsupported is returned by Seek and the absolute position
	// accessors. A Stream is append/drain only.
	ErrUnsupported = errors.New("buffer: operation not supported")

	// ErrInvalidState is returned when an operation is not allowed in the
	// buffer's current state, such as truncating beyond the current length.
	ErrInvalidState = errors.New("buffer: invalid state")

	// ErrClosed is returned by every operation on a closed Stream.
	ErrClosed = errors.New("buffer: closed")
)
