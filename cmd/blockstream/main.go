// Package main is the entry point for the blockstream CLI.
//
// Usage:
//
//	blockstream [flags] <command> [subcommand] [args]
//
// Commands:
//
//	cat        - Pipe a file or stdin through a block stream
//	bench      - Measure stream throughput and block reuse
//	put, get   - Move payloads to and from the configured store
//	spool      - Durable queue of payload segments (push, pop, ls)
//	ws         - Receive or serve websocket payloads
//	config     - Configuration management (contexts)
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/blockstream/cmd/blockstream/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
