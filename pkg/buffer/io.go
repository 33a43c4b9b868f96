package buffer

import (
	"errors"
	"fmt"
	"io"
)

var (
	errNegativeRead = errors.New("buffer: reader returned negative count from Read")
	errInvalidWrite = errors.New("buffer: writer returned invalid count from Write")
)

// Chain is the narrow capability set of a block-chained buffer.
type Chain interface {
	io.Writer
	io.Reader
	Len() int
	Truncate(n int) error
	Clear() error
}

var (
	_ Chain         = (*Stream)(nil)
	_ io.WriterTo   = (*Stream)(nil)
	_ io.ReaderFrom = (*Stream)(nil)
	_ io.Closer     = (*Stream)(nil)
)

// WriteTo drains the Stream into w one block at a time, without an
// intermediate copy. On a short write or error the unwritten bytes stay
// in the Stream.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	if s.closed {
		return 0, fmt.Errorf("buffer: write from closed stream: %w", ErrClosed)
	}
	var total int64
	for {
		b := s.chain.head
		r := b.readable()
		if r == 0 {
			if b == s.chain.tail {
				return total, nil
			}
			s.chain.retireHead()
			continue
		}
		m, err := w.Write(b.unread())
		if m < 0 || m > r {
			return total, errInvalidWrite
		}
		b.consume(m)
		s.shrink(m)
		total += int64(m)
		if b.drained() {
			s.chain.retireHead()
		}
		if err != nil {
			return total, err
		}
		if m < r {
			return total, io.ErrShortWrite
		}
	}
}

// PeekTo writes every unread byte to w, one block at a time, without
// consuming anything. It is the non-destructive counterpart of WriteTo:
// callers that must keep the data until w has committed it call Skip with
// the returned count afterwards.
//
// On a short write or error the Stream is unchanged and the count of bytes
// w accepted is returned with the error.
func (s *Stream) PeekTo(w io.Writer) (int64, error) {
	if s.closed {
		return 0, fmt.Errorf("buffer: peek closed stream: %w", ErrClosed)
	}
	var total int64
	for b := s.chain.head; b != nil; b = b.next {
		r := b.readable()
		if r == 0 {
			continue
		}
		m, err := w.Write(b.unread())
		if m < 0 || m > r {
			return total, errInvalidWrite
		}
		total += int64(m)
		if err != nil {
			return total, err
		}
		if m < r {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// ReadFrom appends data from r until io.EOF, reading straight into free
// block space. io.EOF is not reported as an error.
func (s *Stream) ReadFrom(r io.Reader) (int64, error) {
	if s.closed {
		return 0, fmt.Errorf("buffer: read into closed stream: %w", ErrClosed)
	}
	var total int64
	for {
		tail := s.chain.tail
		if tail.writable() == 0 {
			tail = s.chain.appendTail()
		}
		m, err := r.Read(tail.space())
		if m < 0 {
			return total, errNegativeRead
		}
		tail.end += m
		s.grow(m)
		total += int64(m)
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// CopyTo drains the Stream into w through a scratch buffer of bufSize
// bytes. Bytes already drained when w fails are lost.
func (s *Stream) CopyTo(w io.Writer, bufSize int) (int64, error) {
	if bufSize <= 0 {
		return 0, fmt.Errorf("buffer: copy buffer size %d: %w", bufSize, ErrInvalidArgument)
	}
	scratch := make([]byte, bufSize)
	var total int64
	for {
		n, err := s.Read(scratch)
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		m, err := w.Write(scratch[:n])
		total += int64(m)
		if err != nil {
			return total, err
		}
		if m < n {
			return total, io.ErrShortWrite
		}
	}
}
