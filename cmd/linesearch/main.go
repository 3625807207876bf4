// Package main provides the entry point for the linesearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/linesearch/cmd/linesearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
