// Package main is the entry point for the numctl CLI.
package main

import (
	"os"

	"docnum/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		format, _ := cmd.PersistentFlags().GetString("format")
		cli.PrintError(os.Stderr, format, err)
		os.Exit(cli.GetExitCode(err))
	}
}
