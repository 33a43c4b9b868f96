package buffer

import (
	"fmt"
	"io"
	"log/slog"
)

// DefaultBlockSize is the block capacity used when Options.BlockSize is 0.
const DefaultBlockSize = 1<<16 - 1

// Options configures a Stream. The zero value selects the defaults.
type Options struct {
	// BlockSize is the fixed capacity of every block in bytes.
	// Larger blocks mean fewer links but more unused tail space.
	// Default is DefaultBlockSize if zero.
	BlockSize int

	// DisableLengthCaching makes Len walk the chain on every call instead
	// of returning an incrementally maintained counter.
	DisableLengthCaching bool

	// PoolSize is the initial number of retired blocks kept for reuse.
	// Zero disables recycling. It can be changed later with SetPoolSize.
	PoolSize int

	// Logger receives debug events for pool and lifecycle changes.
	// Default is slog.Default() if nil.
	Logger *slog.Logger
}

// Stats counts block traffic since the Stream was created.
type Stats struct {
	// Allocated is the number of blocks created from scratch.
	Allocated uint64 `json:"allocated" yaml:"allocated"`
	// Reused is the number of blocks taken from the pool.
	Reused uint64 `json:"reused" yaml:"reused"`
	// Recycled is the number of blocks put into the pool.
	Recycled uint64 `json:"recycled" yaml:"recycled"`
	// Released is the number of blocks whose memory was dropped.
	Released uint64 `json:"released" yaml:"released"`
	// Blocks is the current length of the chain.
	Blocks int `json:"blocks" yaml:"blocks"`
	// Pooled is the current number of pooled blocks.
	Pooled int `json:"pooled" yaml:"pooled"`
}

// Stream is a growable byte buffer stored as a chain of fixed-size blocks.
//
// Writes append to the last block and link new ones as needed; reads drain
// from the first block and retire it once empty. Retired blocks go to a
// bounded pool and are handed out again before anything new is allocated,
// so a Stream that is repeatedly filled and drained settles into a fixed
// set of blocks and never copies previously written data.
//
// A Stream is not safe for concurrent use. Wrap it in a Pipe, or guard it
// with a mutex, when several goroutines share it.
type Stream struct {
	chain   *chain
	caching bool
	length  int
	closed  bool
	logger  *slog.Logger
}

// New creates an empty Stream. Pass nil for default options.
func New(opts *Options) (*Stream, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.BlockSize < 0 {
		return nil, fmt.Errorf("buffer: block size %d: %w", o.BlockSize, ErrInvalidArgument)
	}
	if o.PoolSize < 0 {
		return nil, fmt.Errorf("buffer: pool size %d: %w", o.PoolSize, ErrInvalidArgument)
	}
	if o.BlockSize == 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Stream{
		chain:   newChain(o.BlockSize, o.PoolSize),
		caching: !o.DisableLengthCaching,
		logger:  o.Logger,
	}, nil
}

// grow and shrink keep the cached length in step with the chain.
func (s *Stream) grow(n int) {
	if s.caching {
		s.length += n
	}
}

func (s *Stream) shrink(n int) {
	if s.caching {
		s.length -= n
	}
}

// Write appends p after all unread data, linking as many blocks as needed.
//
// This method implements the io.Writer interface. p is copied into the free
// space of the tail block; when that fills up, the next block is taken from
// the pool, or allocated when the pool is empty, and linked after it.
// Data already in the Stream is never moved.
//
// Write always consumes all of p and returns len(p). It only fails on a
// closed Stream.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("buffer: write to closed stream: %w", ErrClosed)
	}
	n := len(p)
	for len(p) > 0 {
		tail := s.chain.tail
		if tail.writable() < len(p) {
			p = p[tail.write(p):]
			s.chain.appendTail()
			continue
		}
		tail.write(p)
		p = nil
	}
	s.grow(n)
	return n, nil
}

// WriteRange appends count bytes of src starting at offset.
func (s *Stream) WriteRange(src []byte, offset, count int) (int, error) {
	if err := checkRange("write", len(src), offset, count); err != nil {
		return 0, err
	}
	return s.Write(src[offset : offset+count])
}

// drain copies up to n bytes from the front of the chain into p, or
// discards them when p is nil. With remove set the bytes are consumed and
// emptied blocks retired; otherwise the chain is left untouched.
func (s *Stream) drain(p []byte, n int, remove bool) int {
	done := 0
	for b := s.chain.head; b != nil && done < n; {
		next := b.next
		take := min(b.readable(), n-done)
		if p != nil {
			copy(p[done:done+take], b.unread())
		}
		done += take
		if remove {
			b.consume(take)
			if b.drained() {
				s.chain.retireHead()
			}
		}
		b = next
	}
	if remove {
		s.shrink(done)
	}
	return done
}

// Read drains up to len(p) bytes into p.
//
// This method implements the io.Reader interface. Bytes are copied from the
// head of the chain onwards; every block that is emptied on the way is
// unlinked and handed to the pool, or released when the pool is full. The
// tail block is never unlinked: once drained its cursors are reset so the
// next Write starts at the beginning of it.
//
// Fewer bytes than requested is a normal outcome. Read returns io.EOF when
// the Stream holds no data and len(p) > 0, and 0, nil for an empty p.
func (s *Stream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("buffer: read from closed stream: %w", ErrClosed)
	}
	if len(p) == 0 {
		return 0, nil
	}
	n := s.drain(p, len(p), true)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadRange drains up to count bytes into dst[offset:]. It fails with
// ErrInvalidArgument, leaving the Stream unchanged, when offset or count
// fall outside dst.
func (s *Stream) ReadRange(dst []byte, offset, count int) (int, error) {
	if err := checkRange("read", len(dst), offset, count); err != nil {
		return 0, err
	}
	return s.Read(dst[offset : offset+count])
}

// Peek copies up to len(p) bytes from the front of the Stream without
// consuming them. It returns io.EOF when the Stream holds no data.
func (s *Stream) Peek(p []byte) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("buffer: peek closed stream: %w", ErrClosed)
	}
	if len(p) == 0 {
		return 0, nil
	}
	n := s.drain(p, len(p), false)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Skip discards the next n bytes and returns how many were discarded.
func (s *Stream) Skip(n int) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("buffer: skip in closed stream: %w", ErrClosed)
	}
	if n < 0 {
		return 0, fmt.Errorf("buffer: skip %d bytes: %w", n, ErrInvalidArgument)
	}
	return s.drain(nil, n, true), nil
}

// Snapshot returns a new slice holding every unread byte. With drain set
// the bytes are also removed, leaving the Stream empty.
func (s *Stream) Snapshot(drain bool) ([]byte, error) {
	if s.closed {
		return nil, fmt.Errorf("buffer: snapshot closed stream: %w", ErrClosed)
	}
	out := make([]byte, s.Len())
	s.drain(out, len(out), drain)
	return out, nil
}

// Bytes returns a copy of the unread bytes without consuming them.
// It returns nil once the Stream is closed.
func (s *Stream) Bytes() []byte {
	out, _ := s.Snapshot(false)
	return out
}

// Len returns the number of bytes available to the next Read. It is O(1)
// with length caching and O(blocks) without. A closed Stream has length 0.
func (s *Stream) Len() int {
	if s.closed {
		return 0
	}
	if s.caching {
		return s.length
	}
	return s.chain.length()
}

// Truncate keeps the first n unread bytes and discards the rest.
//
// The chain is walked by the unread bytes of each block, not by block
// capacity, so a partially drained head block is counted correctly. The
// block holding byte n becomes the tail with its write cursor moved back,
// and every block after it is retired to the pool (or released when the
// pool is full). Truncating to zero leaves one empty block.
//
// Growing is not supported: n greater than Len fails with ErrInvalidState,
// and a negative n fails with ErrInvalidArgument. In both cases the Stream
// is unchanged. n equal to Len is a no-op.
func (s *Stream) Truncate(n int) error {
	if s.closed {
		return fmt.Errorf("buffer: truncate closed stream: %w", ErrClosed)
	}
	if n < 0 {
		return fmt.Errorf("buffer: truncate to %d bytes: %w", n, ErrInvalidArgument)
	}
	cur := s.Len()
	if n > cur {
		return fmt.Errorf("buffer: truncate to %d bytes beyond length %d: %w", n, cur, ErrInvalidState)
	}
	if n == cur {
		return nil
	}
	b := s.chain.head
	remaining := n
	for remaining > b.readable() {
		remaining -= b.readable()
		b = b.next
	}
	b.end = b.start + remaining
	s.chain.dropAfter(b)
	if b.drained() {
		b.reset()
	}
	if s.caching {
		s.length = n
	}
	return nil
}

// Clear empties the Stream, leaving a single block as on construction.
// The pool is not affected.
func (s *Stream) Clear() error {
	if s.closed {
		return fmt.Errorf("buffer: clear closed stream: %w", ErrClosed)
	}
	s.chain.reset()
	s.length = 0
	return nil
}

// ClearPool releases every pooled block. Unread data is not affected.
func (s *Stream) ClearPool() error {
	if s.closed {
		return fmt.Errorf("buffer: clear pool of closed stream: %w", ErrClosed)
	}
	n := s.chain.pool.clear()
	s.chain.stats.Released += uint64(n)
	s.logger.Debug("buffer: pool cleared", "released", n)
	return nil
}

// Close releases every block held by the chain and the pool.
//
// This method implements the io.Closer interface. Block memory is dropped
// right away rather than left to the pool: each block's slice is nilled so
// stale references cannot keep it alive, and the Released counter in Stats
// accounts for all of them.
//
// After Close, operations that read or change the Stream fail with
// ErrClosed. Len, Pooled and PoolSize return 0 and Bytes returns nil.
// Closing twice is a no-op that returns nil.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.chain.release()
	s.closed = true
	s.length = 0
	s.logger.Debug("buffer: stream closed", "released", s.chain.stats.Released)
	return nil
}

// BlockSize returns the capacity of every block.
func (s *Stream) BlockSize() int {
	return s.chain.blockSize
}

// LengthCaching reports whether Len is served from a cached counter.
func (s *Stream) LengthCaching() bool {
	return s.caching
}

// PoolSize returns the pool capacity.
func (s *Stream) PoolSize() int {
	if s.closed {
		return 0
	}
	return s.chain.pool.capacity
}

// SetPoolSize changes the pool capacity. Shrinking releases pooled blocks
// beyond the new capacity; growing only raises the limit.
func (s *Stream) SetPoolSize(n int) error {
	if s.closed {
		return fmt.Errorf("buffer: resize pool of closed stream: %w", ErrClosed)
	}
	if n < 0 {
		return fmt.Errorf("buffer: pool size %d: %w", n, ErrInvalidArgument)
	}
	old := s.chain.pool.capacity
	released := s.chain.pool.resize(n)
	s.chain.stats.Released += uint64(released)
	s.logger.Debug("buffer: pool resized", "from", old, "to", n, "released", released)
	return nil
}

// Pooled returns the number of blocks waiting in the pool.
func (s *Stream) Pooled() int {
	if s.closed {
		return 0
	}
	return s.chain.pool.len()
}

// Stats returns the block counters.
func (s *Stream) Stats() Stats {
	st := s.chain.stats
	if !s.closed {
		st.Blocks = s.chain.blocks()
		st.Pooled = s.chain.pool.len()
	}
	return st
}

// Seek always fails: a Stream cannot be positioned.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, fmt.Errorf("buffer: seek closed stream: %w", ErrClosed)
	}
	return 0, fmt.Errorf("buffer: seek: %w", ErrUnsupported)
}

// Position always fails: a Stream has no absolute read position.
func (s *Stream) Position() (int64, error) {
	if s.closed {
		return 0, fmt.Errorf("buffer: position of closed stream: %w", ErrClosed)
	}
	return 0, fmt.Errorf("buffer: position: %w", ErrUnsupported)
}

// SetPosition always fails.
func (s *Stream) SetPosition(int64) error {
	if s.closed {
		return fmt.Errorf("buffer: set position of closed stream: %w", ErrClosed)
	}
	return fmt.Errorf("buffer: set position: %w", ErrUnsupported)
}

func checkRange(op string, size, offset, count int) error {
	if offset < 0 || count < 0 || offset > size || count > size-offset {
		return fmt.Errorf("buffer: %s offset %d count %d in %d bytes: %w",
			op, offset, count, size, ErrInvalidArgument)
	}
	return nil
}
