// Package cli provides common CLI utilities for blockstream command-line tools.
//
// This package includes:
//   - Configuration management (contexts with buffer, storage and spool settings)
//   - Output formatting (YAML, JSON, table) with optional jq queries
//   - Workload file loading (YAML/JSON)
//
// Configuration is stored in ~/.blockstream/<app>/ directory, supporting
// multiple contexts similar to kubectl.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("blockstream")
//
//	ctx, err := cfg.ResolveContext("")
//	s, err := buffer.New(ctx.Buffer.Options())
//
//	cli.Output(s.Stats(), cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    Query:  ".reused",
//	})
package cli
