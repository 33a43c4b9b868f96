package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/blockstream/pkg/cli"
	"github.com/haivivi/blockstream/pkg/storage"
)

var (
	cfgStorage    string
	cfgStorageDir string
	cfgSpoolDir   string
	cfgS3         storage.S3Config
)

// ContextList is the output of 'config get-contexts'.
type ContextList struct {
	Current  string         `json:"current" yaml:"current"`
	Contexts []*cli.Context `json:"contexts" yaml:"contexts"`
}

// Table implements cli.Tabler.
func (l ContextList) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(l.Contexts))
	for _, c := range l.Contexts {
		cur := ""
		if c.Name == l.Current {
			cur = "*"
		}
		backend := cli.BackendLocal
		if c.Storage != nil && c.Storage.Backend != "" {
			backend = c.Storage.Backend
		}
		rows = append(rows, []string{
			cur,
			c.Name,
			strconv.Itoa(c.Buffer.BlockSize),
			strconv.Itoa(c.Buffer.PoolSize),
			backend,
		})
	}
	return []string{"CURRENT", "NAME", "BLOCK", "POOL", "STORAGE"}, rows
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage contexts",
	Long: `Manage named contexts holding buffer, storage and spool settings.

Examples:
  blockstream config set-context edge --block-size 4096 --pool-size 32
  blockstream config set-context prod --storage s3 --s3-bucket payloads --s3-region eu-west-1
  blockstream config use-context edge
  blockstream config get-contexts -f table`,
}

var setContextCmd = &cobra.Command{
	Use:   "set-context <name>",
	Short: "Create or update a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		ctx, err := cfg.GetContext(args[0])
		if err != nil {
			ctx = &cli.Context{}
		}

		flags := cmd.Flags()
		if flags.Changed("block-size") {
			ctx.Buffer.BlockSize = blockSize
		}
		if flags.Changed("pool-size") {
			ctx.Buffer.PoolSize = poolSize
		}
		if flags.Changed("no-length-cache") {
			ctx.Buffer.DisableLengthCaching = noLengthCache
		}
		if flags.Changed("spool-dir") {
			ctx.SpoolDir = cfgSpoolDir
		}
		if err := applyStorageFlags(cmd, ctx); err != nil {
			return err
		}
		// Reject settings buffer.New would refuse later.
		if ctx.Buffer.BlockSize < 0 || ctx.Buffer.PoolSize < 0 {
			return errors.New("block and pool sizes must not be negative")
		}

		if err := cfg.AddContext(args[0], ctx); err != nil {
			return err
		}
		fmt.Printf("Context %q saved\n", args[0])
		return nil
	},
}

func applyStorageFlags(cmd *cobra.Command, ctx *cli.Context) error {
	flags := cmd.Flags()
	touched := false
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "storage", "storage-dir", "s3-bucket", "s3-region", "s3-endpoint",
			"s3-prefix", "s3-access-key", "s3-secret-key", "s3-path-style":
			touched = true
		}
	})
	if !touched {
		return nil
	}
	if ctx.Storage == nil {
		ctx.Storage = &cli.StorageConfig{}
	}
	st := ctx.Storage
	if flags.Changed("storage") {
		switch cfgStorage {
		case cli.BackendLocal, cli.BackendS3:
			st.Backend = cfgStorage
		default:
			return fmt.Errorf("unknown storage backend %q", cfgStorage)
		}
	}
	if flags.Changed("storage-dir") {
		st.Dir = cfgStorageDir
	}
	if st.S3 == nil {
		st.S3 = &storage.S3Config{}
	}
	s3 := st.S3
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	set("s3-bucket", &s3.Bucket, cfgS3.Bucket)
	set("s3-region", &s3.Region, cfgS3.Region)
	set("s3-endpoint", &s3.Endpoint, cfgS3.Endpoint)
	set("s3-prefix", &s3.Prefix, cfgS3.Prefix)
	set("s3-access-key", &s3.AccessKeyID, cfgS3.AccessKeyID)
	set("s3-secret-key", &s3.SecretAccessKey, cfgS3.SecretAccessKey)
	if flags.Changed("s3-path-style") {
		s3.UsePathStyle = cfgS3.UsePathStyle
	}
	if *s3 == (storage.S3Config{}) {
		st.S3 = nil
	}
	return nil
}

var useContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		fmt.Printf("Switched to context %q\n", args[0])
		return nil
	},
}

var deleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Remove a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		fmt.Printf("Context %q deleted\n", args[0])
		return nil
	},
}

var getContextsCmd = &cobra.Command{
	Use:   "get-contexts",
	Short: "List contexts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		list := ContextList{Current: cfg.CurrentContext, Contexts: []*cli.Context{}}
		for _, name := range cfg.ListContexts() {
			c, _ := cfg.GetContext(name)
			list.Contexts = append(list.Contexts, c.Redacted())
		}
		return output(list)
	},
}

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the resolved context with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := currentContext()
		if err != nil {
			return err
		}
		return output(ctx.Redacted())
	},
}

func init() {
	f := setContextCmd.Flags()
	f.StringVar(&cfgStorage, "storage", "", "storage backend: local or s3")
	f.StringVar(&cfgStorageDir, "storage-dir", "", "root directory of the local store")
	f.StringVar(&cfgSpoolDir, "spool-dir", "", "badger directory of the spool")
	f.StringVar(&cfgS3.Bucket, "s3-bucket", "", "S3 bucket")
	f.StringVar(&cfgS3.Region, "s3-region", "", "S3 region")
	f.StringVar(&cfgS3.Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL")
	f.StringVar(&cfgS3.Prefix, "s3-prefix", "", "key prefix inside the bucket")
	f.StringVar(&cfgS3.AccessKeyID, "s3-access-key", "", "S3 access key id")
	f.StringVar(&cfgS3.SecretAccessKey, "s3-secret-key", "", "S3 secret access key")
	f.BoolVar(&cfgS3.UsePathStyle, "s3-path-style", false, "use path-style S3 addressing")

	configCmd.AddCommand(setContextCmd)
	configCmd.AddCommand(useContextCmd)
	configCmd.AddCommand(deleteContextCmd)
	configCmd.AddCommand(getContextsCmd)
	configCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(configCmd)
}
