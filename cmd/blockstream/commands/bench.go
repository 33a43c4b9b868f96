package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/haivivi/blockstream/pkg/buffer"
	"github.com/haivivi/blockstream/pkg/cli"
)

var (
	benchSize       string
	benchChunk      string
	benchRounds     int
	benchConcurrent bool
	benchWorkload   string
)

// BenchCase is one workload run by the bench command. Zero buffer fields
// fall back to the resolved buffer options.
type BenchCase struct {
	Name       string `json:"name" yaml:"name"`
	BlockSize  int    `json:"block_size,omitempty" yaml:"block_size,omitempty"`
	PoolSize   int    `json:"pool_size,omitempty" yaml:"pool_size,omitempty"`
	Size       string `json:"size,omitempty" yaml:"size,omitempty"`
	Chunk      string `json:"chunk,omitempty" yaml:"chunk,omitempty"`
	Rounds     int    `json:"rounds,omitempty" yaml:"rounds,omitempty"`
	Concurrent bool   `json:"concurrent,omitempty" yaml:"concurrent,omitempty"`
}

// BenchWorkload is the file format accepted by --workload.
type BenchWorkload struct {
	Cases []BenchCase `json:"cases" yaml:"cases"`
}

// BenchResult reports one finished case.
type BenchResult struct {
	Name       string       `json:"name" yaml:"name"`
	BlockSize  int          `json:"block_size" yaml:"block_size"`
	PoolSize   int          `json:"pool_size" yaml:"pool_size"`
	Concurrent bool         `json:"concurrent" yaml:"concurrent"`
	Bytes      int64        `json:"bytes" yaml:"bytes"`
	Micros     int64        `json:"micros" yaml:"micros"`
	Rate       string       `json:"rate" yaml:"rate"`
	Stats      buffer.Stats `json:"stats" yaml:"stats"`
}

// BenchReport is the output of the bench command.
type BenchReport struct {
	Results []BenchResult `json:"results" yaml:"results"`
}

// Table implements cli.Tabler.
func (r BenchReport) Table() ([]string, [][]string) {
	headers := []string{"CASE", "BLOCK", "POOL", "MODE", "BYTES", "TIME", "RATE", "ALLOC", "REUSED", "RECYCLED"}
	rows := make([][]string, 0, len(r.Results))
	for _, res := range r.Results {
		mode := "seq"
		if res.Concurrent {
			mode = "pipe"
		}
		rows = append(rows, []string{
			res.Name,
			strconv.Itoa(res.BlockSize),
			strconv.Itoa(res.PoolSize),
			mode,
			cli.FormatBytes(res.Bytes),
			cli.FormatDuration(time.Duration(res.Micros)*time.Microsecond),
			res.Rate,
			strconv.FormatUint(res.Stats.Allocated, 10),
			strconv.FormatUint(res.Stats.Reused, 10),
			strconv.FormatUint(res.Stats.Recycled, 10),
		})
	}
	return headers, rows
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure stream throughput and block reuse",
	Long: `Write and drain a payload through a block stream and report throughput
together with block allocation statistics.

With --concurrent a producer and a consumer share a Pipe. With --workload a
YAML or JSON file lists several cases:

  cases:
    - name: small-blocks
      block_size: 1024
      pool_size: 16
      size: 8MB
    - name: piped
      block_size: 65535
      concurrent: true

Examples:
  blockstream bench --size 64MB --chunk 4KB -f table
  blockstream bench --workload bench.yaml -q '.results[].rate'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := bufferOptions(cmd)
		if err != nil {
			return err
		}

		cases := []BenchCase{{
			Name:       "default",
			Size:       benchSize,
			Chunk:      benchChunk,
			Rounds:     benchRounds,
			Concurrent: benchConcurrent,
		}}
		if benchWorkload != "" {
			var w BenchWorkload
			if err := cli.LoadFile(benchWorkload, &w); err != nil {
				return err
			}
			if len(w.Cases) == 0 {
				return errors.New("workload has no cases")
			}
			cases = w.Cases
		}

		var report BenchReport
		for _, c := range cases {
			res, err := runBench(cmd.Context(), base, c)
			if err != nil {
				return fmt.Errorf("case %s: %w", c.Name, err)
			}
			slog.Debug("bench case done", "case", c.Name, "bytes", res.Bytes, "micros", res.Micros)
			report.Results = append(report.Results, res)
		}
		return output(report)
	},
}

func runBench(ctx context.Context, base *buffer.Options, c BenchCase) (BenchResult, error) {
	opts := *base
	if c.BlockSize != 0 {
		opts.BlockSize = c.BlockSize
	}
	if c.PoolSize != 0 {
		opts.PoolSize = c.PoolSize
	}
	if c.Size == "" {
		c.Size = benchSize
	}
	if c.Chunk == "" {
		c.Chunk = benchChunk
	}
	if c.Rounds <= 0 {
		c.Rounds = 1
	}
	size, err := parseSize("size", c.Size)
	if err != nil {
		return BenchResult{}, err
	}
	chunk, err := parseSize("chunk", c.Chunk)
	if err != nil {
		return BenchResult{}, err
	}
	if chunk <= 0 {
		return BenchResult{}, errors.New("chunk must be positive")
	}

	payload := make([]byte, chunk)
	for i := range payload {
		payload[i] = byte(i)
	}

	var (
		stats buffer.Stats
		total int64
	)
	start := time.Now()
	if c.Concurrent {
		stats, total, err = benchPipe(ctx, &opts, payload, size*c.Rounds)
	} else {
		stats, total, err = benchStream(&opts, payload, size, c.Rounds)
	}
	if err != nil {
		return BenchResult{}, err
	}
	elapsed := time.Since(start)

	bs := opts.BlockSize
	if bs == 0 {
		bs = buffer.DefaultBlockSize
	}
	return BenchResult{
		Name:       c.Name,
		BlockSize:  bs,
		PoolSize:   opts.PoolSize,
		Concurrent: c.Concurrent,
		Bytes:      total,
		Micros:     elapsed.Microseconds(),
		Rate:       cli.FormatRate(total, elapsed),
		Stats:      stats,
	}, nil
}

// benchStream fills the stream with size bytes and drains it, rounds times.
func benchStream(opts *buffer.Options, payload []byte, size, rounds int) (buffer.Stats, int64, error) {
	s, err := buffer.New(opts)
	if err != nil {
		return buffer.Stats{}, 0, err
	}
	defer s.Close()

	sink := make([]byte, len(payload))
	var total int64
	for r := 0; r < rounds; r++ {
		for left := size; left > 0; {
			n := min(left, len(payload))
			if _, err := s.Write(payload[:n]); err != nil {
				return buffer.Stats{}, total, err
			}
			left -= n
		}
		for s.Len() > 0 {
			n, err := s.Read(sink)
			if err != nil {
				return buffer.Stats{}, total, err
			}
			total += int64(n)
		}
	}
	return s.Stats(), total, nil
}

// benchPipe streams size bytes from a producer to a consumer goroutine.
func benchPipe(ctx context.Context, opts *buffer.Options, payload []byte, size int) (buffer.Stats, int64, error) {
	p, err := buffer.NewPipe(opts)
	if err != nil {
		return buffer.Stats{}, 0, err
	}
	defer p.Close()

	var total int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer p.CloseWrite()
		for left := size; left > 0; {
			if err := gctx.Err(); err != nil {
				return err
			}
			n := min(left, len(payload))
			if _, err := p.Write(payload[:n]); err != nil {
				return err
			}
			left -= n
		}
		return nil
	})
	g.Go(func() error {
		sink := make([]byte, len(payload))
		for {
			n, err := p.Read(sink)
			total += int64(n)
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
		}
	})
	if err := g.Wait(); err != nil {
		return buffer.Stats{}, total, err
	}
	return p.Stats(), total, nil
}

func init() {
	benchCmd.Flags().StringVar(&benchSize, "size", "16MB", "bytes written per round")
	benchCmd.Flags().StringVar(&benchChunk, "chunk", "32KB", "write and read chunk size")
	benchCmd.Flags().IntVar(&benchRounds, "rounds", 1, "number of fill/drain rounds")
	benchCmd.Flags().BoolVar(&benchConcurrent, "concurrent", false, "run producer and consumer over a Pipe")
	benchCmd.Flags().StringVar(&benchWorkload, "workload", "", "YAML or JSON file listing bench cases")
	rootCmd.AddCommand(benchCmd)
}
