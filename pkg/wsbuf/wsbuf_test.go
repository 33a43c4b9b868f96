package wsbuf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/blockstream/pkg/buffer"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newStream(t *testing.T, data string) *buffer.Stream {
	t.Helper()
	s, err := buffer.New(&buffer.Options{BlockSize: 4, PoolSize: 4})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	s.Write([]byte(data))
	return s
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, wsURL(srv))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// echoServer writes every message back to the sender.
func echoServer(t *testing.T) *httptest.Server {
	var up websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendReceive(t *testing.T) {
	conn := dial(t, echoServer(t))
	payload := strings.Repeat("block-", 20)

	src := newStream(t, payload)
	n, err := Send(conn, src)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n != int64(len(payload)) || src.Len() != 0 {
		t.Fatalf("Send = %d, Len = %d", n, src.Len())
	}

	dst := newStream(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := ReceiveN(ctx, conn, dst, 1)
	if err != nil {
		t.Fatalf("ReceiveN: %v", err)
	}
	if got != int64(len(payload)) || string(dst.Bytes()) != payload {
		t.Fatalf("ReceiveN = %d, %q", got, dst.Bytes())
	}
}

func TestChunked(t *testing.T) {
	conn := dial(t, echoServer(t))

	msgs, err := Chunked(conn, newStream(t, "abcdefghij"), 4)
	if err != nil {
		t.Fatalf("Chunked: %v", err)
	}
	if msgs != 3 {
		t.Fatalf("Chunked sent %d messages, want 3", msgs)
	}

	for _, want := range []string{"abcd", "efgh", "ij"} {
		dst := newStream(t, "")
		mt, _, err := Receive(conn, dst)
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if mt != websocket.BinaryMessage {
			t.Fatalf("message type = %d", mt)
		}
		if string(dst.Bytes()) != want {
			t.Fatalf("got %q, want %q", dst.Bytes(), want)
		}
	}
}

func TestChunkedInvalid(t *testing.T) {
	if _, err := Chunked(nil, newStream(t, "x"), 0); !errors.Is(err, ErrInvalidChunk) {
		t.Fatalf("err = %v, want ErrInvalidChunk", err)
	}
}

func TestReceiveAllNormalClose(t *testing.T) {
	var up websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range []string{"one,", "two,", "three"} {
			conn.WriteMessage(websocket.BinaryMessage, []byte(m))
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.ReadMessage()
	}))
	defer srv.Close()

	conn := dial(t, srv)
	dst := newStream(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := ReceiveAll(ctx, conn, dst)
	if err != nil {
		t.Fatalf("ReceiveAll: %v", err)
	}
	if n != 13 || string(dst.Bytes()) != "one,two,three" {
		t.Fatalf("ReceiveAll = %d, %q", n, dst.Bytes())
	}
}

func TestHandler(t *testing.T) {
	got := make(chan []byte, 4)
	h := &Handler{
		Buffer: &buffer.Options{BlockSize: 3, PoolSize: 2},
		OnMessage: func(_ *http.Request, _ int, s *buffer.Stream) error {
			data, err := s.Snapshot(false)
			got <- data
			return err
		},
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	conn.WriteMessage(websocket.BinaryMessage, []byte("first message"))
	conn.WriteMessage(websocket.TextMessage, []byte("second"))

	for _, want := range []string{"first message", "second"} {
		select {
		case data := <-got:
			if !bytes.Equal(data, []byte(want)) {
				t.Fatalf("handler got %q, want %q", data, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("handler not called")
		}
	}
}

func TestHandlerErrorCloses(t *testing.T) {
	h := &Handler{
		OnMessage: func(*http.Request, int, *buffer.Stream) error {
			return errors.New("rejected")
		},
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	conn.WriteMessage(websocket.BinaryMessage, []byte("x"))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseInternalServerErr) {
		t.Fatalf("ReadMessage error = %v, want internal server close", err)
	}
}

// brokenConn yields one message that fails after a few bytes.
type brokenConn struct{}

var errBroken = errors.New("connection reset")

func (brokenConn) NextReader() (int, io.Reader, error) {
	return websocket.BinaryMessage, io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(errBroken)), nil
}

func (brokenConn) NextWriter(int) (io.WriteCloser, error) {
	return nil, errBroken
}

func TestReceiveDropsPartialMessage(t *testing.T) {
	s := newStream(t, "kept:")
	_, n, err := Receive(brokenConn{}, s)
	if !errors.Is(err, errBroken) {
		t.Fatalf("Receive error = %v, want %v", err, errBroken)
	}
	if n != 0 {
		t.Fatalf("Receive = %d, want 0", n)
	}
	if got := string(s.Bytes()); got != "kept:" {
		t.Fatalf("stream = %q, want %q", got, "kept:")
	}
}

func TestHandlerShutdownDrains(t *testing.T) {
	got := make(chan string, 4)
	h := &Handler{
		OnMessage: func(_ *http.Request, _ int, s *buffer.Stream) error {
			got <- string(s.Bytes())
			return nil
		},
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	conn.WriteMessage(websocket.BinaryMessage, []byte("one"))
	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("handler not called")
	}
	conn.WriteMessage(websocket.BinaryMessage, []byte("two"))
	conn.WriteMessage(websocket.BinaryMessage, []byte("three"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.Shutdown(ctx) }()

	// Reading the going-away frame echoes the close back.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("ReadMessage error = %v, want going away", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	for _, want := range []string{"two", "three"} {
		select {
		case data := <-got:
			if data != want {
				t.Fatalf("handler got %q, want %q", data, want)
			}
		default:
			t.Fatalf("message %q dropped on shutdown", want)
		}
	}
}

func TestHandlerRefusesAfterShutdown(t *testing.T) {
	h := &Handler{}
	srv := httptest.NewServer(h)
	defer srv.Close()

	if err := h.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown with no clients: %v", err)
	}
	conn := dial(t, srv)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("ReadMessage error = %v, want going away", err)
	}
}
