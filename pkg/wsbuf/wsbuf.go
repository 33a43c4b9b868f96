// Package wsbuf moves websocket messages in and out of buffer.Stream
// without assembling them in a contiguous slice first.
package wsbuf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/blockstream/pkg/buffer"
)

// ErrInvalidChunk is returned by Chunked for a non-positive chunk size.
var ErrInvalidChunk = errors.New("wsbuf: invalid chunk size")

// Conn is the subset of *websocket.Conn used by this package.
type Conn interface {
	NextReader() (messageType int, r io.Reader, err error)
	NextWriter(messageType int) (io.WriteCloser, error)
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

var _ Conn = (*websocket.Conn)(nil)

// Dial opens a websocket connection to url.
func Dial(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("wsbuf: dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("wsbuf: dial %s: %w", url, err)
	}
	return conn, nil
}

// Receive appends the next message to s and returns its type and size.
//
// A message is appended whole or not at all: when reading fails midway
// the partial bytes are truncated away again, so s only ever holds
// complete messages.
func Receive(conn Conn, s *buffer.Stream) (int, int64, error) {
	mt, r, err := conn.NextReader()
	if err != nil {
		return 0, 0, err
	}
	before := s.Len()
	n, err := s.ReadFrom(r)
	if err != nil {
		if terr := s.Truncate(before); terr != nil {
			return mt, n, errors.Join(err, terr)
		}
		return mt, 0, err
	}
	return mt, n, nil
}

// ReceiveN appends the next n messages to s and returns the bytes
// received. ctx is checked between messages; if conn supports read
// deadlines the context deadline is applied to it.
func ReceiveN(ctx context.Context, conn Conn, s *buffer.Stream, n int) (int64, error) {
	applyDeadline(ctx, conn)
	var total int64
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		_, m, err := Receive(conn, s)
		total += m
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ReceiveAll appends messages to s until the peer closes the connection.
// A normal closure ends without error.
func ReceiveAll(ctx context.Context, conn Conn, s *buffer.Stream) (int64, error) {
	applyDeadline(ctx, conn)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		_, m, err := Receive(conn, s)
		total += m
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return total, nil
			}
			return total, err
		}
	}
}

func applyDeadline(ctx context.Context, conn Conn) {
	if d, ok := ctx.Deadline(); ok {
		if rd, ok := conn.(readDeadliner); ok {
			rd.SetReadDeadline(d)
		}
	}
}

// Send drains s as a single binary message.
func Send(conn Conn, s *buffer.Stream) (int64, error) {
	w, err := conn.NextWriter(websocket.BinaryMessage)
	if err != nil {
		return 0, err
	}
	n, err := s.WriteTo(w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Chunked drains s as binary messages of at most chunk bytes each and
// returns the number of messages sent.
func Chunked(conn Conn, s *buffer.Stream, chunk int) (int, error) {
	if chunk <= 0 {
		return 0, ErrInvalidChunk
	}
	scratch := make([]byte, chunk)
	msgs := 0
	for s.Len() > 0 {
		n, err := s.Peek(scratch)
		if err != nil {
			return msgs, err
		}
		w, err := conn.NextWriter(websocket.BinaryMessage)
		if err != nil {
			return msgs, err
		}
		if _, err := w.Write(scratch[:n]); err != nil {
			w.Close()
			return msgs, err
		}
		if err := w.Close(); err != nil {
			return msgs, err
		}
		if _, err := s.Skip(n); err != nil {
			return msgs, err
		}
		msgs++
	}
	return msgs, nil
}
