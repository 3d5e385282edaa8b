// Package main is the entry point for the roomsync CLI.
package main

import (
	"fmt"
	"os"

	"github.com/tOgg1/roomsync/internal/cli"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := cli.Execute(fmt.Sprintf("%s (%s, %s)", version, commit, date)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
