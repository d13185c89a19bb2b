// Package main is the entry point for the finprint CLI.
//
// Usage:
//
//	finprint [flags] <command> [args]
//
// Commands:
//
//	extract    - Extract contour descriptors from a photo manifest
//	index      - Build the reference index from extracted descriptors
//	identify   - Match query photos against a reference index
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/wildseas/finprint/cmd/finprint/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
