package wsbuf

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/blockstream/pkg/buffer"
)

// Handler accepts websocket connections and hands every received message
// to OnMessage as a Stream. One Stream is reused per connection and
// cleared after each message, so its pool keeps blocks warm across
// messages.
//
// http.Server.Shutdown does not track hijacked connections; call
// Handler.Shutdown after it to drain the websocket clients.
type Handler struct {
	// Buffer configures the per-connection Stream.
	Buffer *buffer.Options

	// OnMessage consumes one message. Returning an error closes the
	// connection.
	OnMessage func(r *http.Request, messageType int, s *buffer.Stream) error

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	Upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	wg       sync.WaitGroup
	shutdown bool
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// track registers conn. It reports false once Shutdown has started.
func (h *Handler) track(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shutdown {
		return false
	}
	if h.conns == nil {
		h.conns = make(map[*websocket.Conn]struct{})
	}
	h.conns[conn] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Handler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	h.wg.Done()
}

func (h *Handler) closing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shutdown
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger().With("remote", r.RemoteAddr)
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	if !h.track(conn) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		return
	}
	defer h.untrack(conn)

	s, err := buffer.New(h.Buffer)
	if err != nil {
		log.Error("create stream", "error", err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "bad buffer options"))
		return
	}
	defer s.Close()

	for {
		mt, n, err := Receive(conn, s)
		if err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			case h.closing():
				log.Debug("websocket dropped on shutdown", "error", err)
			default:
				log.Warn("websocket read", "error", err)
			}
			return
		}
		log.Debug("websocket message", "type", mt, "bytes", n)
		if h.OnMessage != nil {
			if err := h.OnMessage(r, mt, s); err != nil {
				log.Warn("message handler", "error", err)
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()))
				return
			}
		}
		s.Clear()
	}
}

// Shutdown asks every connected client to go away and waits until their
// handlers return.
//
// Each client gets a going-away close frame. Messages it sent before
// echoing the close are still delivered to OnMessage, so nothing already
// on the wire is dropped. When ctx expires first, the remaining
// connections are cut off and ctx.Err() is returned. New connections are
// refused once Shutdown has been called.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.shutdown = true
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
	writeDeadline := time.Now().Add(time.Second)
	deadline, hasDeadline := ctx.Deadline()
	for _, c := range conns {
		c.WriteControl(websocket.CloseMessage, msg, writeDeadline)
		if hasDeadline {
			// Backstop for clients that never echo the close.
			c.SetReadDeadline(deadline)
		}
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		for _, c := range conns {
			c.Close()
		}
		return ctx.Err()
	}
}
