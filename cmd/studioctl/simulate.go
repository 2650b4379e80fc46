package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/circle-gon/nyigj-2024/server/internal/engine"
	"github.com/circle-gon/nyigj-2024/server/internal/events"
	"github.com/circle-gon/nyigj-2024/server/internal/format"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/logger"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/metrics"
	"github.com/circle-gon/nyigj-2024/server/internal/view"
)

var (
	simSelect []string
	simTicks  int
	simDelta  float64
	simClicks int
	simJSON   bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the engine headless and print the resulting state",
	Long: `Run a fresh studio without a clock. Each --select picks a stage and is
followed by --ticks updates of --delta seconds. Without --select the
ticks run on whatever is active.

Examples:
  # One minute of Ideas, then one minute of Features
  studioctl simulate --select Ideas --select Features --ticks 60 --delta 1

  # Click 30 boxes then idle for ten seconds
  studioctl simulate --boxes 30 --ticks 10 --delta 1 --json
`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringArrayVar(&simSelect, "select", nil, "stage to select, repeatable and applied in order")
	simulateCmd.Flags().IntVar(&simTicks, "ticks", 20, "updates to run after each selection")
	simulateCmd.Flags().Float64Var(&simDelta, "delta", 0.05, "seconds per update")
	simulateCmd.Flags().IntVar(&simClicks, "boxes", 0, "boxes to make before the first update")
	simulateCmd.Flags().BoolVar(&simJSON, "json", false, "print the full snapshot as JSON")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simTicks < 0 || simDelta < 0 {
		return fmt.Errorf("--ticks and --delta must not be negative")
	}
	if math.IsNaN(simDelta) || math.IsInf(simDelta, 0) {
		return fmt.Errorf("--delta must be a finite number")
	}

	log := logger.New(logger.Options{Level: flagLogLevel, Output: cmd.ErrOrStderr()})
	eng := engine.NewEngine(events.NewEventLog(0, nil), log, engine.Options{
		Ticker: engine.TickerOptions{
			MaxTickLength: simDelta,
			Clock:         engine.NewFakeClock(time.Now()),
		},
		Metrics: metrics.NewCollector(),
	})

	for i := 0; i < simClicks; i++ {
		if err := eng.MakeBox("studioctl"); err != nil {
			return err
		}
	}
	eng.ProcessPending()

	steps := simSelect
	if len(steps) == 0 {
		steps = []string{""}
	}
	for _, name := range steps {
		if name != "" {
			if err := eng.SelectTask("studioctl", name); err != nil {
				return fmt.Errorf("select %s: %w", name, err)
			}
			eng.ProcessPending()
		}
		for t := 0; t < simTicks; t++ {
			eng.Step(simDelta)
		}
	}

	snap := eng.Snapshot()
	if simJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	printSnapshot(cmd.OutOrStdout(), snap)
	return nil
}

func printSnapshot(w io.Writer, snap view.Snapshot) {
	fmt.Fprintf(w, "tick %d, doing %q\n\n", snap.Tick, snap.Games.DoingAction)
	fmt.Fprintf(w, "%-12s %10s %10s %6s\n", "STAGE", "PROGRESS", "USES", "CAN")
	for _, s := range snap.Games.All {
		fmt.Fprintf(w, "%-12s %10s %10s %6t\n", s.Name, format.Format(s.Progress), format.Format(s.Uses), s.Can)
	}
	fmt.Fprintf(w, "\nboxes %s (best %s, total %s, +%s/s)\n",
		snap.Boxes.Boxes, snap.Boxes.Best, snap.Boxes.Total, snap.Boxes.PassiveRate)
}
