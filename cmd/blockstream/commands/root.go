package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/blockstream/pkg/cli"
)

const appName = "blockstream"

// configEnv overrides the config file location.
const configEnv = "BLOCKSTREAM_CONFIG"

var (
	// Global flags
	verbose      bool
	contextName  string
	configPath   string
	formatOutput string
	queryOutput  string
	outputFile   string

	// Buffer overrides, applied on top of the context's buffer settings.
	blockSize     int
	poolSize      int
	noLengthCache bool

	// Global configuration (loaded on first use)
	globalConfig *cli.Config
)

var rootCmd = &cobra.Command{
	Use:   "blockstream",
	Short: "Block-chained byte streams on the command line",
	Long: `blockstream - move bytes through block-chained, pool-backed streams.

Payloads are held in a chain of fixed-size blocks. Drained blocks go to a
bounded pool and are reused before anything new is allocated.

Configuration is stored in ~/.blockstream/blockstream/config.yaml (override
with --config or $BLOCKSTREAM_CONFIG). A context selects buffer settings,
the payload store (local dir or s3) and the spool directory.

Examples:
  # Pipe a file through a stream, dropping a 16-byte header
  blockstream cat --skip 16 capture.bin > body.bin

  # Compare block sizes
  blockstream bench --size 64MB --block-size 4096 -f table

  # Store a payload in the current context's store
  blockstream put reports/today.csv ./today.csv`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs on stderr)")
	pf.StringVarP(&contextName, "context", "c", "", "context to use (default: current context)")
	pf.StringVar(&configPath, "config", "", "config file path")
	pf.StringVarP(&formatOutput, "format", "f", "yaml", "output format: yaml, json, table")
	pf.StringVarP(&queryOutput, "query", "q", "", "jq expression applied to structured output")
	pf.StringVarP(&outputFile, "output", "o", "", "write structured output to file")
	pf.IntVar(&blockSize, "block-size", 0, "block size in bytes (overrides context)")
	pf.IntVar(&poolSize, "pool-size", 0, "block pool capacity (overrides context)")
	pf.BoolVar(&noLengthCache, "no-length-cache", false, "compute lengths by walking the chain")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// GetConfig returns the global configuration, loading it on first use so
// commands like 'version' work without a writable home directory.
func GetConfig() (*cli.Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}
	path := configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}
	cfg, err := cli.LoadConfigWithPath(appName, path)
	if err != nil {
		return nil, fmt.Errorf("config not available: %w", err)
	}
	globalConfig = cfg
	return cfg, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
