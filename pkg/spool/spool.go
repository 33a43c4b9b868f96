// Package spool persists buffered payloads as an ordered queue of segments.
//
// Each Push drains a buffer.Stream into a new segment; Pop appends the
// oldest segment to a Stream and removes it. Segments survive restarts
// when the Spool sits on a durable Backend such as Badger.
//
// Storage layout in the Backend:
//
//	m/next          next sequence number (8-byte big endian)
//	h/<seq>         msgpack-encoded Header
//	d/<seq>         payload bytes
//
// Sequence numbers are big-endian so key order equals push order.
package spool

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/blockstream/pkg/buffer"
)

// Sentinel errors.
var (
	// ErrEmpty is returned by Pop and Peek when the spool holds no segments.
	ErrEmpty = errors.New("spool: empty")

	// ErrEmptySegment is returned by Push for a stream with no unread bytes.
	ErrEmptySegment = errors.New("spool: empty segment")
)

var (
	keyNext      = []byte("m/next")
	headerPrefix = []byte("h/")
	dataPrefix   = []byte("d/")
)

// Header describes one stored segment.
type Header struct {
	ID        uuid.UUID `msgpack:"id" json:"id" yaml:"id"`
	Seq       uint64    `msgpack:"seq" json:"seq" yaml:"seq"`
	Size      int64     `msgpack:"size" json:"size" yaml:"size"`
	CreatedAt time.Time `msgpack:"created_at" json:"created_at" yaml:"created_at"`
}

// Options configures a Spool.
type Options struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now overrides the clock for CreatedAt. Defaults to time.Now.
	Now func() time.Time
}

// Spool is a FIFO of payload segments. It is safe for concurrent use.
type Spool struct {
	mu     sync.Mutex
	b      Backend
	next   uint64
	now    func() time.Time
	logger *slog.Logger
}

// Open loads the spool state from b. The Spool does not own b; the caller
// closes it.
func Open(ctx context.Context, b Backend, opts *Options) (*Spool, error) {
	sp := &Spool{b: b, now: time.Now, logger: slog.Default()}
	if opts != nil {
		if opts.Logger != nil {
			sp.logger = opts.Logger
		}
		if opts.Now != nil {
			sp.now = opts.Now
		}
	}
	v, err := b.Get(ctx, keyNext)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("spool: load state: %w", err)
	case len(v) != 8:
		return nil, fmt.Errorf("spool: corrupt sequence record (%d bytes)", len(v))
	default:
		sp.next = binary.BigEndian.Uint64(v)
	}
	return sp, nil
}

func seqKey(prefix []byte, seq uint64) []byte {
	k := make([]byte, len(prefix)+8)
	copy(k, prefix)
	binary.BigEndian.PutUint64(k[len(prefix):], seq)
	return k
}

// Push stores the unread bytes of s as a new segment. The bytes are
// consumed from s only after the segment is persisted.
func (sp *Spool) Push(ctx context.Context, s *buffer.Stream) (Header, error) {
	data, err := s.Snapshot(false)
	if err != nil {
		return Header{}, err
	}
	if len(data) == 0 {
		return Header{}, ErrEmptySegment
	}

	sp.mu.Lock()
	defer sp.mu.Unlock()

	h := Header{
		ID:        uuid.New(),
		Seq:       sp.next,
		Size:      int64(len(data)),
		CreatedAt: sp.now().UTC(),
	}
	hb, err := msgpack.Marshal(&h)
	if err != nil {
		return Header{}, fmt.Errorf("spool: encode header: %w", err)
	}
	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, h.Seq+1)

	err = sp.b.Set(ctx,
		Entry{Key: seqKey(headerPrefix, h.Seq), Value: hb},
		Entry{Key: seqKey(dataPrefix, h.Seq), Value: data},
		Entry{Key: keyNext, Value: next},
	)
	if err != nil {
		return Header{}, fmt.Errorf("spool: push: %w", err)
	}
	sp.next++
	if _, err := s.Skip(len(data)); err != nil {
		return h, err
	}
	sp.logger.Debug("spool push", "id", h.ID, "seq", h.Seq, "size", h.Size)
	return h, nil
}

// Peek returns the header of the oldest segment.
func (sp *Spool) Peek(ctx context.Context) (Header, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.oldest(ctx)
}

func (sp *Spool) oldest(ctx context.Context) (Header, error) {
	for h, err := range sp.headers(ctx) {
		return h, err
	}
	return Header{}, ErrEmpty
}

// Pop appends the oldest segment to dst and removes it from the spool.
//
// If the segment cannot be removed, the bytes appended to dst are
// truncated away again and the segment stays at the front, so a failed
// Pop never hands out data that the next Pop delivers a second time.
func (sp *Spool) Pop(ctx context.Context, dst *buffer.Stream) (Header, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	h, err := sp.oldest(ctx)
	if err != nil {
		return Header{}, err
	}
	dk := seqKey(dataPrefix, h.Seq)
	data, err := sp.b.Get(ctx, dk)
	if err != nil {
		return Header{}, fmt.Errorf("spool: read segment %d: %w", h.Seq, err)
	}
	before := dst.Len()
	if _, err := dst.Write(data); err != nil {
		return Header{}, err
	}
	if err := sp.b.Delete(ctx, seqKey(headerPrefix, h.Seq), dk); err != nil {
		err = fmt.Errorf("spool: delete segment %d: %w", h.Seq, err)
		if terr := dst.Truncate(before); terr != nil {
			err = errors.Join(err, terr)
		}
		return Header{}, err
	}
	sp.logger.Debug("spool pop", "id", h.ID, "seq", h.Seq, "size", h.Size)
	return h, nil
}

// List yields the headers of all segments, oldest first.
func (sp *Spool) List(ctx context.Context) iter.Seq2[Header, error] {
	return sp.headers(ctx)
}

func (sp *Spool) headers(ctx context.Context) iter.Seq2[Header, error] {
	return func(yield func(Header, error) bool) {
		for e, err := range sp.b.Scan(ctx, headerPrefix) {
			if err != nil {
				yield(Header{}, err)
				return
			}
			var h Header
			if err := msgpack.Unmarshal(e.Value, &h); err != nil {
				yield(Header{}, fmt.Errorf("spool: decode header %x: %w", e.Key, err))
				return
			}
			if !yield(h, nil) {
				return
			}
		}
	}
}

// Len returns the number of stored segments.
func (sp *Spool) Len(ctx context.Context) (int, error) {
	n := 0
	for _, err := range sp.headers(ctx) {
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
