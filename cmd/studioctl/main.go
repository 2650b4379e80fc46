// Package main is studioctl, the offline companion to the studio server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "studioctl",
	Short: "Drive and inspect the Game Studio engine offline",
	Long: `studioctl runs the studio engine headless, reads saves out of the
SQLite database, and runs the scripted scenario suite.`,
	SilenceUsage: true,
}

var flagLogLevel string

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "error", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(simulateCmd, inspectCmd, scenariosCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
