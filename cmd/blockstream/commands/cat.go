package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var (
	catSkip     int
	catTruncate int
)

var catCmd = &cobra.Command{
	Use:   "cat [file]",
	Short: "Copy a file or stdin to stdout through a block stream",
	Long: `Read the whole input into a block stream, optionally drop leading bytes
and cut the remainder to a length, then write it to stdout.

Examples:
  blockstream cat --skip 44 voice.wav > voice.pcm
  curl -s https://example.com/blob | blockstream cat --truncate 1024`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := readAll(cmd, args, 0)
		if err != nil {
			return err
		}
		defer s.Close()

		if catSkip > 0 {
			if _, err := s.Skip(catSkip); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("truncate") && catTruncate < s.Len() {
			if err := s.Truncate(catTruncate); err != nil {
				return err
			}
		}
		n, err := writeAll(s, nil, 0)
		slog.Debug("cat done", "bytes", n, "stats", s.Stats())
		return err
	},
}

func init() {
	catCmd.Flags().IntVar(&catSkip, "skip", 0, "drop this many leading bytes")
	catCmd.Flags().IntVar(&catTruncate, "truncate", 0, "keep at most this many bytes after skipping")
	rootCmd.AddCommand(catCmd)
}
