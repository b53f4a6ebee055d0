// Package main is the entry point for the pawdiary CLI.
package main

import (
	"os"

	"github.com/pawdiary/pawdiary/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
