package buffer

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"testing"
)

func newTestStream(t *testing.T, opts *Options) *Stream {
	t.Helper()
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return b
}

func TestNew_Defaults(t *testing.T) {
	s := newTestStream(t, nil)
	if s.BlockSize() != DefaultBlockSize {
		t.Fatalf("BlockSize() = %d, want %d", s.BlockSize(), DefaultBlockSize)
	}
	if !s.LengthCaching() {
		t.Fatal("LengthCaching() = false, want true")
	}
	if s.PoolSize() != 0 {
		t.Fatalf("PoolSize() = %d, want 0", s.PoolSize())
	}
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
	if st := s.Stats(); st.Blocks != 1 || st.Allocated != 1 {
		t.Fatalf("Stats() = %+v, want one allocated block", st)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	for _, opts := range []*Options{
		{BlockSize: -1},
		{PoolSize: -1},
	} {
		if _, err := New(opts); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("New(%+v) error = %v, want ErrInvalidArgument", opts, err)
		}
	}
}

func TestStream_RoundTrip(t *testing.T) {
	const blockSize = 8
	for _, caching := range []bool{true, false} {
		for _, n := range []int{0, 1, blockSize - 1, blockSize, blockSize + 1, 4 * blockSize, 4*blockSize + 3, 1000} {
			t.Run(fmt.Sprintf("caching=%v/n=%d", caching, n), func(t *testing.T) {
				s := newTestStream(t, &Options{BlockSize: blockSize, DisableLengthCaching: !caching})
				data := randomBytes(t, n)

				if w, err := s.Write(data); err != nil || w != n {
					t.Fatalf("Write = %d, %v; want %d, nil", w, err, n)
				}
				if s.Len() != n {
					t.Fatalf("Len() = %d, want %d", s.Len(), n)
				}

				got := make([]byte, n)
				r, err := s.Read(got)
				if n == 0 {
					if r != 0 {
						t.Fatalf("Read on empty = %d, want 0", r)
					}
					return
				}
				if err != nil || r != n {
					t.Fatalf("Read = %d, %v; want %d, nil", r, err, n)
				}
				if !bytes.Equal(got, data) {
					t.Fatal("read data mismatch")
				}
				if s.Len() != 0 {
					t.Fatalf("Len() after read = %d, want 0", s.Len())
				}
			})
		}
	}
}

func TestStream_ManySmallWrites(t *testing.T) {
	s := newTestStream(t, &Options{BlockSize: 7})
	var want []byte
	for i := 0; i < 100; i++ {
		chunk := bytes.Repeat([]byte{byte(i)}, i%11)
		s.Write(chunk)
		want = append(want, chunk...)
	}
	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("data mismatch")
	}
}

func TestStream_Scenario64Bytes(t *testing.T) {
	s := newTestStream(t, &Options{BlockSize: 8})
	data := randomBytes(t, 64)
	s.Write(data)
	if s.Len() != 64 {
		t.Fatalf("Len() = %d, want 64", s.Len())
	}
	got := make([]byte, 64)
	n, err := s.Read(got)
	if err != nil || n != 64 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("read data mismatch")
	}
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
}

func TestStream_ShortRead(t *testing.T) {
	s := newTestStream(t, &Options{BlockSize: 4})
	s.Write([]byte{1, 2, 3, 4, 5, 6})

	got := make([]byte, 10)
	n, err := s.Read(got)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if n != 6 {
		t.Fatalf("Read returned %d, want 6", n)
	}
	if !bytes.Equal(got[:n], []byte{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("Read got %v", got[:n])
	}

	_, err = s.Read(got)
	if err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestStream_InterleavedLength(t *testing.T) {
	for _, caching := range []bool{true, false} {
		t.Run(fmt.Sprintf("caching=%v", caching), func(t *testing.T) {
			s := newTestStream(t, &Options{BlockSize: 5, PoolSize: 2, DisableLengthCaching: !caching})
			var model []byte
			tmp := make([]byte, 64)
			for i := 0; i < 200; i++ {
				switch i % 4 {
				case 0, 1:
					chunk := bytes.Repeat([]byte{byte(i)}, i%13)
					s.Write(chunk)
					model = append(model, chunk...)
				case 2:
					want := i % 9
					n, _ := s.Read(tmp[:want])
					if !bytes.Equal(tmp[:n], model[:n]) {
						t.Fatalf("step %d: read mismatch", i)
					}
					model = model[n:]
				case 3:
					n, err := s.Skip(i % 6)
					if err != nil {
						t.Fatalf("Skip: %v", err)
					}
					model = model[n:]
				}
				if s.Len() != len(model) {
					t.Fatalf("step %d: Len() = %d, want %d", i, s.Len(), len(model))
				}
			}
			if !bytes.Equal(s.Bytes(), model) {
				t.Fatal("final contents mismatch")
			}
		})
	}
}

func TestStream_ReadRange(t *testing.T) {
	s := newTestStream(t, &Options{BlockSize: 4})
	s.Write([]byte("abcdefgh"))

	dst := make([]byte, 10)
	n, err := s.ReadRange(dst, 2, 5)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if n != 5 || string(dst[2:7]) != "abcde" {
		t.Fatalf("ReadRange = %d, %q", n, dst[2:7])
	}

	for _, tc := range []struct{ offset, count int }{
		{11, 0},
		{8, 3},
		{0, 11},
		{-1, 1},
		{0, -1},
	} {
		_, err := s.ReadRange(dst, tc.offset, tc.count)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("ReadRange(%d, %d) error = %v, want ErrInvalidArgument", tc.offset, tc.count, err)
		}
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d after rejected reads, want 3", s.Len())
	}

	n, err = s.ReadRange(dst, 10, 0)
	if err != nil || n != 0 {
		t.Fatalf("ReadRange at end = %d, %v", n, err)
	}
}

func TestStream_WriteRange(t *testing.T) {
	s := newTestStream(t, &Options{BlockSize: 3})
	src := []byte("0123456789")
	if _, err := s.WriteRange(src, 3, 4); err != nil {
		t.Fatalf("WriteRange: %v", err)
	}
	if got := string(s.Bytes()); got != "3456" {
		t.Fatalf("Bytes() = %q, want 3456", got)
	}
	if _, err := s.WriteRange(src, 8, 3); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("WriteRange out of range error = %v", err)
	}
	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}
}

func TestStream_SkipThenRead(t *testing.T) {
	s := newTestStream(t, &Options{BlockSize: 3})
	data := randomBytes(t, 10)
	s.Write(data)

	n, err := s.Skip(4)
	if err != nil || n != 4 {
		t.Fatalf("Skip = %d, %v", n, err)
	}
	got := make([]byte, 6)
	if n, _ := s.Read(got); n != 6 {
		t.Fatalf("Read = %d, want 6", n)
	}
	if !bytes.Equal(got, data[4:10]) {
		t.Fatalf("Read got %v, want %v", got, data[4:10])
	}

	n, err = s.Skip(100)
	if err != nil || n != 0 {
		t.Fatalf("Skip on empty = %d, %v", n, err)
	}
	if _, err := s.Skip(-1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Skip(-1) error = %v", err)
	}
}

func TestStream_PeekAndSnapshot(t *testing.T) {
	s := newTestStream(t, &Options{BlockSize: 4})
	data := randomBytes(t, 19)
	s.Write(data)

	p := make([]byte, 6)
	n, err := s.Peek(p)
	if err != nil || n != 6 || !bytes.Equal(p, data[:6]) {
		t.Fatalf("Peek = %d, %v, %v", n, err, p)
	}

	snap := s.Bytes()
	if !bytes.Equal(snap, data) {
		t.Fatal("Bytes() mismatch")
	}
	if s.Len() != 19 {
		t.Fatalf("Len() after Bytes = %d, want 19", s.Len())
	}

	got := make([]byte, 19)
	s.Read(got)
	if !bytes.Equal(got, data) {
		t.Fatal("Read after peek mismatch")
	}

	s.Write(data)
	drained, err := s.Snapshot(true)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !bytes.Equal(drained, data) {
		t.Fatal("Snapshot(true) mismatch")
	}
	if s.Len() != 0 {
		t.Fatalf("Len() after drain = %d, want 0", s.Len())
	}
	if _, err := s.Peek(p); err != io.EOF {
		t.Fatalf("Peek on empty error = %v, want EOF", err)
	}
}

func TestStream_Truncate(t *testing.T) {
	t.Run("scenario", func(t *testing.T) {
		s := newTestStream(t, &Options{BlockSize: 16})
		data := randomBytes(t, 100)
		s.Write(data)
		if err := s.Truncate(50); err != nil {
			t.Fatalf("Truncate: %v", err)
		}
		if s.Len() != 50 {
			t.Fatalf("Len() = %d, want 50", s.Len())
		}
		if !bytes.Equal(s.Bytes(), data[:50]) {
			t.Fatal("Bytes() after truncate mismatch")
		}
	})

	t.Run("grow rejected", func(t *testing.T) {
		s := newTestStream(t, &Options{BlockSize: 16})
		s.Write(randomBytes(t, 40))
		err := s.Truncate(41)
		if !errors.Is(err, ErrInvalidState) {
			t.Fatalf("Truncate(41) error = %v, want ErrInvalidState", err)
		}
		if errors.Is(err, ErrClosed) {
			t.Fatal("grow error must not be ErrClosed")
		}
		if s.Len() != 40 {
			t.Fatalf("Len() = %d, want 40", s.Len())
		}
		if err := s.Truncate(-1); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("Truncate(-1) error = %v", err)
		}
	})

	t.Run("all lengths after partial drain", func(t *testing.T) {
		for _, caching := range []bool{true, false} {
			for l := 0; l <= 30; l++ {
				s := newTestStream(t, &Options{BlockSize: 4, PoolSize: 1, DisableLengthCaching: !caching})
				data := randomBytes(t, 35)
				s.Write(data)
				s.Skip(5)
				if err := s.Truncate(l); err != nil {
					t.Fatalf("Truncate(%d): %v", l, err)
				}
				if s.Len() != l {
					t.Fatalf("Len() = %d, want %d", s.Len(), l)
				}
				if !bytes.Equal(s.Bytes(), data[5:5+l]) {
					t.Fatalf("Truncate(%d) kept wrong bytes", l)
				}
				s.Write([]byte{0xAA, 0xBB})
				want := append(append([]byte{}, data[5:5+l]...), 0xAA, 0xBB)
				got, _ := io.ReadAll(s)
				if !bytes.Equal(got, want) {
					t.Fatalf("Truncate(%d) then write: got %v, want %v", l, got, want)
				}
			}
		}
	})

	t.Run("retires dropped blocks", func(t *testing.T) {
		s := newTestStream(t, &Options{BlockSize: 4, PoolSize: 2})
		s.Write(randomBytes(t, 20))
		if err := s.Truncate(3); err != nil {
			t.Fatalf("Truncate: %v", err)
		}
		st := s.Stats()
		if st.Blocks != 1 {
			t.Fatalf("Blocks = %d, want 1", st.Blocks)
		}
		if st.Pooled != 2 {
			t.Fatalf("Pooled = %d, want 2", st.Pooled)
		}
	})
}

func TestStream_Clear(t *testing.T) {
	s := newTestStream(t, &Options{BlockSize: 4, PoolSize: 3})
	s.Write(randomBytes(t, 40))
	s.Skip(12)
	pooled := s.Pooled()

	for i := 0; i < 2; i++ {
		if err := s.Clear(); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if s.Len() != 0 {
			t.Fatalf("Len() = %d, want 0", s.Len())
		}
		if s.Pooled() != pooled {
			t.Fatalf("Pooled() = %d, want %d", s.Pooled(), pooled)
		}
		if st := s.Stats(); st.Blocks != 1 {
			t.Fatalf("Blocks = %d, want 1", st.Blocks)
		}
	}

	data := randomBytes(t, 9)
	s.Write(data)
	if !bytes.Equal(s.Bytes(), data) {
		t.Fatal("write after clear mismatch")
	}
	if s.BlockSize() != 4 || s.PoolSize() != 3 {
		t.Fatalf("config changed by Clear: block=%d pool=%d", s.BlockSize(), s.PoolSize())
	}
}

func TestStream_Close(t *testing.T) {
	s, err := New(&Options{BlockSize: 4, PoolSize: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Write(randomBytes(t, 10))
	s.Skip(10)
	s.Write(randomBytes(t, 10))
	allocated := s.Stats().Allocated

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	st := s.Stats()
	if st.Blocks != 0 || st.Pooled != 0 {
		t.Fatalf("Stats after close = %+v", st)
	}
	if st.Released != allocated {
		t.Fatalf("Released = %d, want %d", st.Released, allocated)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	buf := make([]byte, 4)
	checks := map[string]error{}
	_, checks["Write"] = s.Write([]byte{1})
	_, checks["Read"] = s.Read(buf)
	_, checks["Peek"] = s.Peek(buf)
	_, checks["Skip"] = s.Skip(1)
	_, checks["Snapshot"] = s.Snapshot(false)
	checks["Truncate"] = s.Truncate(0)
	checks["Clear"] = s.Clear()
	checks["ClearPool"] = s.ClearPool()
	checks["SetPoolSize"] = s.SetPoolSize(2)
	_, checks["Seek"] = s.Seek(0, io.SeekStart)
	_, checks["WriteTo"] = s.WriteTo(io.Discard)
	_, checks["ReadFrom"] = s.ReadFrom(bytes.NewReader([]byte{1}))
	for op, err := range checks {
		if !errors.Is(err, ErrClosed) {
			t.Errorf("%s after Close error = %v, want ErrClosed", op, err)
		}
	}
	if s.Len() != 0 || s.Bytes() != nil {
		t.Fatal("closed stream should report no data")
	}
}

func TestStream_Unsupported(t *testing.T) {
	s := newTestStream(t, nil)
	s.Write([]byte("abc"))
	if _, err := s.Seek(1, io.SeekStart); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Seek error = %v", err)
	}
	if _, err := s.Position(); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Position error = %v", err)
	}
	if err := s.SetPosition(0); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("SetPosition error = %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
}
