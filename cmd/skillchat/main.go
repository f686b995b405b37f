// Package main is the entry point for the skillchat CLI.
package main

import (
	"fmt"
	"os"

	"github.com/andertben/skillspot-chat/internal/cli"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := cli.Execute(fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
