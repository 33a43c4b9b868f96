package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/blockstream/pkg/buffer"
	"github.com/haivivi/blockstream/pkg/wsbuf"
)

var (
	wsMessages int
	wsTimeout  time.Duration
	wsChunk    string
	wsToSpool  bool
)

var wsCmd = &cobra.Command{
	Use:   "ws",
	Short: "Receive, send or serve websocket payloads",
}

var wsRecvCmd = &cobra.Command{
	Use:   "recv <url> [file]",
	Short: "Assemble websocket messages into one payload",
	Long: `Connect to <url>, append every received message to a block stream and
write the result to file or stdout when the peer closes the connection, or
after --messages messages.

Examples:
  blockstream ws recv ws://localhost:8080/audio out.pcm
  blockstream ws recv --messages 10 --timeout 30s wss://example.com/feed`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if wsTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, wsTimeout)
			defer cancel()
		}
		conn, err := wsbuf.Dial(ctx, args[0])
		if err != nil {
			return err
		}
		defer conn.Close()

		s, err := newStream(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		var n int64
		if wsMessages > 0 {
			n, err = wsbuf.ReceiveN(ctx, conn, s, wsMessages)
		} else {
			n, err = wsbuf.ReceiveAll(ctx, conn, s)
		}
		slog.Debug("ws recv", "bytes", n, "error", err)
		if err != nil {
			return err
		}
		_, err = writeAll(s, args, 1)
		return err
	},
}

var wsSendCmd = &cobra.Command{
	Use:   "send <url> [file]",
	Short: "Send a file or stdin as websocket messages",
	Long: `Connect to <url> and send the input as binary messages of at most
--chunk bytes (one message when --chunk is 0).`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := readAll(cmd, args, 1)
		if err != nil {
			return err
		}
		defer s.Close()

		conn, err := wsbuf.Dial(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer conn.Close()

		chunk, err := parseSize("chunk", wsChunk)
		if err != nil {
			return err
		}
		if chunk == 0 {
			_, err = wsbuf.Send(conn, s)
		} else {
			_, err = wsbuf.Chunked(conn, s, chunk)
		}
		return err
	},
}

// wsServeListening is called once ws serve has bound its listener.
// Tests use it to learn the port picked for ":0".
var wsServeListening = func(net.Addr) {}

var wsServeCmd = &cobra.Command{
	Use:   "serve <addr>",
	Short: "Accept websocket clients and collect their messages",
	Long: `Listen on <addr> and write every received message to stdout, or push
it to the context's spool with --spool.

On SIGINT or SIGTERM the server stops accepting, asks connected clients to
go away and waits for their in-flight messages before exiting.

Examples:
  blockstream ws serve :8080
  blockstream ws serve --spool 127.0.0.1:9000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts, err := bufferOptions(cmd)
		if err != nil {
			return err
		}

		var (
			mu     sync.Mutex
			onMsg  func(*buffer.Stream) error
			logger = slog.Default()
		)
		if wsToSpool {
			sp, closeFn, err := openSpool(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			// Messages drained during shutdown are still persisted.
			pushCtx := context.WithoutCancel(ctx)
			onMsg = func(s *buffer.Stream) error {
				h, err := sp.Push(pushCtx, s)
				if err == nil {
					logger.Info("spooled message", "id", h.ID, "size", h.Size)
				}
				return err
			}
		} else {
			onMsg = func(s *buffer.Stream) error {
				_, err := s.WriteTo(os.Stdout)
				return err
			}
		}

		handler := &wsbuf.Handler{
			Buffer: opts,
			Logger: logger,
			OnMessage: func(_ *http.Request, _ int, s *buffer.Stream) error {
				mu.Lock()
				defer mu.Unlock()
				return onMsg(s)
			},
		}
		srv := &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ln, err := net.Listen("tcp", args[0])
		if err != nil {
			return err
		}
		errc := make(chan error, 1)
		go func() { errc <- srv.Serve(ln) }()
		logger.Info("ws serve listening", "addr", ln.Addr().String())
		wsServeListening(ln.Addr())

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		// Hijacked websocket connections are not covered by srv.Shutdown.
		// The spool must stay open until their handlers have returned.
		if err := handler.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ws serve: drain clients: %w", err)
		}
		return nil
	},
}

func init() {
	wsRecvCmd.Flags().IntVar(&wsMessages, "messages", 0, "stop after this many messages (0: until close)")
	wsRecvCmd.Flags().DurationVar(&wsTimeout, "timeout", 0, "overall receive timeout")
	wsSendCmd.Flags().StringVar(&wsChunk, "chunk", "0", "maximum message size (0: single message)")
	wsServeCmd.Flags().BoolVar(&wsToSpool, "spool", false, "push messages to the spool instead of stdout")

	wsCmd.AddCommand(wsRecvCmd)
	wsCmd.AddCommand(wsSendCmd)
	wsCmd.AddCommand(wsServeCmd)
	rootCmd.AddCommand(wsCmd)
}
