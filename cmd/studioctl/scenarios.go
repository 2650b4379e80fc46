package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/circle-gon/nyigj-2024/server/internal/platform/logger"
	"github.com/circle-gon/nyigj-2024/server/test"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Run the scripted scenario suite",
	Long:  `Run every built-in scenario against a fresh engine. Exits non-zero if any fail.`,
	RunE:  runScenarios,
}

func runScenarios(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "GAME STUDIO - SCENARIO SUITE")
	fmt.Fprintln(out, strings.Repeat("=", 60))

	log := logger.New(logger.Options{Level: flagLogLevel, Output: cmd.ErrOrStderr()})
	results := test.RunAll(log, test.Scenarios())

	failed := 0
	for _, r := range results {
		mark := "PASS"
		if !r.Passed {
			mark = "FAIL"
			failed++
		}
		fmt.Fprintf(out, "[%s] %-32s %s\n", mark, r.ScenarioName, r.Input)
		if !r.Passed {
			fmt.Fprintf(out, "       %s\n", r.Reason)
		}
	}

	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "passed: %d  failed: %d\n", len(results)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d scenario(s) failed", failed)
	}
	return nil
}
