package buffer

import (
	"fmt"
	"io"
	"sync"
)

// Pipe is a thread-safe blocking front for a Stream. One side writes, the
// other reads; reads block while the Stream is empty until data arrives or
// the write side is closed.
//
// The Stream keeps its block pool, so a long-lived Pipe whose producer and
// consumer run at similar rates recycles a small, stable set of blocks.
//
// Pipe supports graceful shutdown through CloseWrite (reads continue until
// the Stream is drained, then return io.EOF) and CloseWithError (both ends
// fail immediately). Closing releases the underlying Stream.
type Pipe struct {
	writeNotify chan struct{}

	mu         sync.Mutex
	closeWrite bool
	closeErr   error
	s          *Stream
}

// NewPipe creates a Pipe over a new Stream built from opts.
func NewPipe(opts *Options) (*Pipe, error) {
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	return &Pipe{
		writeNotify: make(chan struct{}, 1),
		s:           s,
	}, nil
}

// Write appends b to the Stream and wakes a waiting reader.
//
// This method implements the io.Writer interface. The bytes are copied into
// the tail block of the Stream, linking pooled or new blocks as needed, so a
// write never blocks on a slow reader and never moves data written earlier.
//
// After writing, Write signals the writeNotify channel. The signal is
// non-blocking: if a notification is already pending it is not queued twice,
// since a woken reader drains everything that is buffered.
//
// Returns len(b) on success. Returns io.ErrClosedPipe (wrapped) if the write
// side is closed, or the CloseWithError error if the Pipe was closed.
func (p *Pipe) Write(b []byte) (n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closeErr != nil {
		return 0, fmt.Errorf("buffer: write to closed pipe: %w", p.closeErr)
	}
	if p.closeWrite {
		return 0, fmt.Errorf("buffer: write to closed pipe: %w", io.ErrClosedPipe)
	}
	n, err = p.s.Write(b)
	select {
	case p.writeNotify <- struct{}{}:
	default:
	}
	return n, err
}

// ReadFrom copies r into the Pipe until io.EOF, waking readers as data
// arrives.
//
// Data is read through a scratch slice of at most one block (capped at
// 32 KiB) and handed to Write, so a concurrent reader can start draining
// before r is exhausted. io.EOF from r is not reported as an error. The
// write side stays open; call CloseWrite when the producer is done.
func (p *Pipe) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, min(p.blockSize(), 32<<10))
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := p.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

func (p *Pipe) blockSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s.BlockSize()
}

// Read drains up to len(b) bytes, blocking while the Stream is empty.
//
// This method implements the io.Reader interface. When data is buffered it
// returns immediately with as much as fits in b, which may be less than
// len(b). Drained blocks go back to the Stream's pool for the writer to
// reuse.
//
// When the Stream is empty Read releases the mutex and waits on the
// writeNotify channel, then re-checks the state. CloseWrite and
// CloseWithError close that channel, so every waiting reader wakes up.
//
// Returns io.EOF once the write side is closed and all buffered data has
// been read. Returns the CloseWithError error (wrapped) if the Pipe was
// closed, even while data was still buffered. A zero-length b returns
// 0, nil without blocking.
func (p *Pipe) Read(b []byte) (n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closeErr != nil {
		return 0, fmt.Errorf("buffer: read from closed pipe: %w", p.closeErr)
	}
	if len(b) == 0 {
		return 0, nil
	}
	for p.s.Len() == 0 {
		if p.closeWrite {
			return 0, io.EOF
		}
		p.mu.Unlock()
		<-p.writeNotify
		p.mu.Lock()
		if p.closeErr != nil {
			return 0, fmt.Errorf("buffer: read from closed pipe: %w", p.closeErr)
		}
	}
	return p.s.Read(b)
}

// Discard drops the next n bytes without reading them.
//
// Discard never blocks. Asking for more than is buffered empties the Stream;
// the bytes are not owed to later writes. Blocks emptied by the discard are
// retired to the pool just as Read retires them.
//
// Returns an error if the Pipe has been closed with an error or n is
// negative.
func (p *Pipe) Discard(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closeErr != nil {
		return fmt.Errorf("buffer: skip from closed pipe: %w", p.closeErr)
	}
	_, err := p.s.Skip(n)
	return err
}

func (p *Pipe) closeWithErrorLocked(err error) error {
	if p.closeErr != nil {
		return nil
	}
	p.closeErr = err
	if !p.closeWrite {
		p.closeWrite = true
		close(p.writeNotify)
	}
	return p.s.Close()
}

// CloseWithError closes both ends immediately.
//
// Buffered data is discarded: pending and later reads and writes fail with
// err, or io.ErrClosedPipe when err is nil. Blocked readers are woken. The
// Stream is closed, releasing every block it and its pool hold.
//
// Only the first close records its error; later calls return nil.
func (p *Pipe) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeWithErrorLocked(err)
}

// Error returns the error the Pipe was closed with, if any.
func (p *Pipe) Error() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeErr
}

// Close is CloseWithError(io.ErrClosedPipe).
func (p *Pipe) Close() error {
	return p.CloseWithError(io.ErrClosedPipe)
}

// CloseWrite closes the write side of the Pipe.
//
// This is the graceful shutdown path for a producer. Later writes fail with
// io.ErrClosedPipe, while readers keep draining what is already buffered and
// get io.EOF once the Stream is empty. Readers blocked on an empty Pipe are
// woken and return io.EOF straight away.
//
// The Stream itself stays open until Close or CloseWithError. Calling
// CloseWrite more than once is a no-op.
func (p *Pipe) CloseWrite() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closeWrite {
		return nil
	}
	p.closeWrite = true
	close(p.writeNotify)
	return nil
}

// Reset drops all buffered data. It does not reopen a closed Pipe.
func (p *Pipe) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closeErr != nil {
		return
	}
	_ = p.s.Clear()
}

// Len returns the number of buffered bytes.
func (p *Pipe) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s.Len()
}

// Bytes returns a copy of the buffered bytes without consuming them.
func (p *Pipe) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s.Bytes()
}

// Stats returns the block counters of the underlying Stream.
func (p *Pipe) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s.Stats()
}
