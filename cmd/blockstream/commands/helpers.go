package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/haivivi/blockstream/pkg/buffer"
	"github.com/haivivi/blockstream/pkg/cli"
	"github.com/haivivi/blockstream/pkg/spool"
	"github.com/haivivi/blockstream/pkg/storage"
)

// currentContext resolves --context, the current context, or the default.
func currentContext() (*cli.Context, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return cfg.ResolveContext(contextName)
}

func appPaths() (*cli.Paths, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return &cli.Paths{AppName: appName, Dir: cfg.Dir()}, nil
}

// bufferOptions merges the context's buffer settings with explicit flags.
func bufferOptions(cmd *cobra.Command) (*buffer.Options, error) {
	ctx, err := currentContext()
	if err != nil {
		return nil, err
	}
	opts := ctx.Buffer.Options()
	flags := cmd.Flags()
	if flags.Changed("block-size") {
		opts.BlockSize = blockSize
	}
	if flags.Changed("pool-size") {
		opts.PoolSize = poolSize
	}
	if flags.Changed("no-length-cache") {
		opts.DisableLengthCaching = noLengthCache
	}
	opts.Logger = slog.Default()
	return opts, nil
}

func newStream(cmd *cobra.Command) (*buffer.Stream, error) {
	opts, err := bufferOptions(cmd)
	if err != nil {
		return nil, err
	}
	return buffer.New(opts)
}

func openStore() (storage.FileStore, error) {
	ctx, err := currentContext()
	if err != nil {
		return nil, err
	}
	p, err := appPaths()
	if err != nil {
		return nil, err
	}
	return ctx.Storage.Open(p.StoreDir())
}

// openSpool opens the badger spool of the current context. The returned
// close function releases the database.
func openSpool(ctx context.Context) (*spool.Spool, func() error, error) {
	c, err := currentContext()
	if err != nil {
		return nil, nil, err
	}
	dir := c.SpoolDir
	if dir == "" {
		p, err := appPaths()
		if err != nil {
			return nil, nil, err
		}
		dir = p.SpoolDir()
	}
	b, err := spool.NewBadger(spool.BadgerOptions{Dir: dir, Logger: slog.Default()})
	if err != nil {
		return nil, nil, err
	}
	sp, err := spool.Open(ctx, b, &spool.Options{Logger: slog.Default()})
	if err != nil {
		b.Close()
		return nil, nil, err
	}
	return sp, b.Close, nil
}

// output writes a structured result honoring --format, --query and --output.
func output(result any) error {
	return cli.Output(result, cli.OutputOptions{
		Format: cli.OutputFormat(formatOutput),
		File:   outputFile,
		Query:  queryOutput,
	})
}

// openInput opens args[i] for reading, or stdin when absent or "-".
func openInput(args []string, i int) (io.ReadCloser, error) {
	if len(args) <= i || args[i] == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(args[i])
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// openOutput creates args[i] for writing, or stdout when absent or "-".
func openOutput(args []string, i int) (io.WriteCloser, error) {
	if len(args) <= i || args[i] == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(args[i])
}

// readAll fills a new stream from the input named by args[i].
func readAll(cmd *cobra.Command, args []string, i int) (*buffer.Stream, error) {
	in, err := openInput(args, i)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	s, err := newStream(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := s.ReadFrom(in); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// writeAll drains s into the output named by args[i].
func writeAll(s *buffer.Stream, args []string, i int) (int64, error) {
	out, err := openOutput(args, i)
	if err != nil {
		return 0, err
	}
	n, err := s.WriteTo(out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// parseSize accepts human sizes such as "64MB", "4KiB" or "1024".
func parseSize(name, v string) (int, error) {
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s %q: %w", name, v, err)
	}
	if n > uint64(int(^uint(0)>>1)) {
		return 0, fmt.Errorf("--%s %q is too large", name, v)
	}
	return int(n), nil
}
