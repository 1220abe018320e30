// Package main provides the CLI for the kicketl campaign warehouse ETL.
package main

import (
	"os"

	"github.com/dataforge-labs/kicketl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
