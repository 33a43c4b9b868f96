package buffer

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

func newTestPipe(t *testing.T, opts *Options) *Pipe {
	t.Helper()
	p, err := NewPipe(opts)
	if err != nil {
		t.Fatalf("NewPipe: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPipe_WriteRead(t *testing.T) {
	p := newTestPipe(t, &Options{BlockSize: 2})

	n, err := p.Write([]byte{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if n != 5 {
		t.Fatalf("Write returned %d, want 5", n)
	}
	if p.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", p.Len())
	}

	p.CloseWrite()

	got := make([]byte, 10)
	n, err = p.Read(got)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if !bytes.Equal(got[:n], []byte{1, 2, 3, 4, 5}) {
		t.Fatalf("Read got %v, want [1,2,3,4,5]", got[:n])
	}

	_, err = p.Read(got)
	if err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestPipe_ConcurrentWriteRead(t *testing.T) {
	p := newTestPipe(t, &Options{BlockSize: 16, PoolSize: 4})

	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < len(data); i += 32 {
			end := min(i+32, len(data))
			if _, err := p.Write(data[i:end]); err != nil {
				t.Errorf("Write error: %v", err)
				return
			}
		}
		p.CloseWrite()
	}()

	var received []byte
	go func() {
		defer wg.Done()
		tmp := make([]byte, 50)
		for {
			n, err := p.Read(tmp)
			if err != nil {
				if err == io.EOF {
					break
				}
				t.Errorf("Read error: %v", err)
				return
			}
			received = append(received, tmp[:n]...)
		}
	}()

	wg.Wait()

	if !bytes.Equal(received, data) {
		t.Errorf("received data mismatch")
	}
}

func TestPipe_ReadBlocksUntilWrite(t *testing.T) {
	p := newTestPipe(t, nil)

	done := make(chan []byte)
	go func() {
		tmp := make([]byte, 8)
		n, _ := p.Read(tmp)
		done <- tmp[:n]
	}()

	select {
	case <-done:
		t.Fatal("Read returned before any write")
	case <-time.After(20 * time.Millisecond):
	}

	p.Write([]byte("hi"))
	select {
	case got := <-done:
		if string(got) != "hi" {
			t.Fatalf("Read got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not wake up")
	}
}

func TestPipe_DiscardResetBytes(t *testing.T) {
	p := newTestPipe(t, &Options{BlockSize: 3})
	p.Write([]byte{1, 2, 3, 4, 5})

	if err := p.Discard(2); err != nil {
		t.Fatalf("Discard error: %v", err)
	}
	if !bytes.Equal(p.Bytes(), []byte{3, 4, 5}) {
		t.Fatalf("Bytes() = %v", p.Bytes())
	}
	if err := p.Discard(100); err != nil {
		t.Fatalf("Discard error: %v", err)
	}
	if p.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", p.Len())
	}

	p.Write([]byte{9, 9})
	p.Reset()
	if p.Len() != 0 {
		t.Fatalf("Len() after Reset = %d", p.Len())
	}
}

func TestPipe_CloseWithError(t *testing.T) {
	p := newTestPipe(t, nil)
	p.Write([]byte{1, 2, 3})

	customErr := errors.New("custom error")
	p.CloseWithError(customErr)

	if p.Error() != customErr {
		t.Fatalf("Error() = %v, want %v", p.Error(), customErr)
	}
	if _, err := p.Write([]byte{4}); !errors.Is(err, customErr) {
		t.Fatalf("Write error = %v, want wrapped customErr", err)
	}
	if _, err := p.Read(make([]byte, 4)); !errors.Is(err, customErr) {
		t.Fatalf("Read error = %v, want wrapped customErr", err)
	}
	if err := p.Discard(1); !errors.Is(err, customErr) {
		t.Fatalf("Discard error = %v", err)
	}
	if p.Stats().Blocks != 0 {
		t.Fatal("closing the pipe should release the stream")
	}
	if err := p.CloseWithError(errors.New("again")); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestPipe_CloseUnblocksReader(t *testing.T) {
	p := newTestPipe(t, nil)
	done := make(chan error)
	go func() {
		_, err := p.Read(make([]byte, 4))
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case err := <-done:
		if !errors.Is(err, io.ErrClosedPipe) {
			t.Fatalf("Read error = %v, want ErrClosedPipe", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock reader")
	}
}

func TestPipe_WriteAfterCloseWrite(t *testing.T) {
	p := newTestPipe(t, nil)
	p.CloseWrite()
	if _, err := p.Write([]byte{1}); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("Write error = %v, want ErrClosedPipe", err)
	}
	if err := p.CloseWrite(); err != nil {
		t.Fatalf("second CloseWrite: %v", err)
	}
}

func TestPipe_ReadFrom(t *testing.T) {
	p := newTestPipe(t, &Options{BlockSize: 8})
	data := randomBytes(t, 100)
	n, err := p.ReadFrom(bytes.NewReader(data))
	if err != nil || n != 100 {
		t.Fatalf("ReadFrom = %d, %v", n, err)
	}
	if !bytes.Equal(p.Bytes(), data) {
		t.Fatal("ReadFrom mismatch")
	}
}
