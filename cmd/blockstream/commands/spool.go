package commands

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/blockstream/pkg/cli"
	"github.com/haivivi/blockstream/pkg/spool"
)

// SpoolListing is the output of 'spool ls'.
type SpoolListing struct {
	Segments []spool.Header `json:"segments" yaml:"segments"`
}

// Table implements cli.Tabler.
func (l SpoolListing) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(l.Segments))
	for _, h := range l.Segments {
		rows = append(rows, []string{
			strconv.FormatUint(h.Seq, 10),
			h.ID.String(),
			cli.FormatBytes(h.Size),
			h.CreatedAt.Format(time.RFC3339),
		})
	}
	return []string{"SEQ", "ID", "SIZE", "CREATED"}, rows
}

var spoolCmd = &cobra.Command{
	Use:   "spool",
	Short: "Durable queue of payload segments",
	Long: `Push payloads into an on-disk queue and pop them in order.

The queue lives in a badger database under the context's spool_dir
(default ~/.blockstream/blockstream/data/spool).`,
}

var spoolPushCmd = &cobra.Command{
	Use:   "push [file]",
	Short: "Append a file or stdin as a new segment",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sp, closeFn, err := openSpool(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		s, err := readAll(cmd, args, 0)
		if err != nil {
			return err
		}
		defer s.Close()

		h, err := sp.Push(cmd.Context(), s)
		if err != nil {
			return err
		}
		return output(h)
	},
}

var spoolPopCmd = &cobra.Command{
	Use:   "pop [file]",
	Short: "Remove the oldest segment and write it to file or stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sp, closeFn, err := openSpool(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		s, err := newStream(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if _, err := sp.Pop(cmd.Context(), s); err != nil {
			return err
		}
		_, err = writeAll(s, args, 0)
		return err
	},
}

var spoolLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored segments, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sp, closeFn, err := openSpool(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		listing := SpoolListing{Segments: []spool.Header{}}
		for h, err := range sp.List(cmd.Context()) {
			if err != nil {
				return err
			}
			listing.Segments = append(listing.Segments, h)
		}
		return output(listing)
	},
}

func init() {
	spoolCmd.AddCommand(spoolPushCmd)
	spoolCmd.AddCommand(spoolPopCmd)
	spoolCmd.AddCommand(spoolLsCmd)
	rootCmd.AddCommand(spoolCmd)
}
