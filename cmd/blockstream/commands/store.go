package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/blockstream/pkg/storage"
)

// TransferResult reports a put or get.
type TransferResult struct {
	Name  string `json:"name" yaml:"name"`
	Bytes int64  `json:"bytes" yaml:"bytes"`
}

var putCmd = &cobra.Command{
	Use:   "put <name> [file]",
	Short: "Upload a file or stdin to the context's store",
	Long: `Buffer the input in a block stream and upload it under <name>.

The store is chosen by the context's storage section: a local directory
(default ~/.blockstream/blockstream/data/store) or an S3 bucket.

Examples:
  blockstream put logs/app.log /var/log/app.log
  tar c . | blockstream -c prod put backups/site.tar`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := openStore()
		if err != nil {
			return err
		}
		s, err := readAll(cmd, args, 1)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := storage.Upload(cmd.Context(), fs, args[0], s)
		if err != nil {
			return err
		}
		return output(TransferResult{Name: args[0], Bytes: n})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <name> [file]",
	Short: "Download a payload from the context's store",
	Long: `Download <name> into a block stream and write it to file or stdout.

Examples:
  blockstream get logs/app.log app.log
  blockstream get backups/site.tar | tar x`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := openStore()
		if err != nil {
			return err
		}
		s, err := newStream(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if _, err := storage.Download(cmd.Context(), fs, args[0], s); err != nil {
			return err
		}
		_, err = writeAll(s, args, 1)
		return err
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
}
