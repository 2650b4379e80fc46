package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/circle-gon/nyigj-2024/server/internal/config"
	"github.com/circle-gon/nyigj-2024/server/internal/infra/storage"
)

var (
	inspectConfig string
	inspectDB     string
	inspectSaveID string
	inspectRecap  time.Duration
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print a stored save and, optionally, a recap of recent events",
	Long: `Read the save slot out of the server's SQLite database and print it as
JSON. With --recap, also list the collapsed event history for that window.

Examples:
  studioctl inspect --db data/studio.db
  studioctl inspect --config studio.yml --recap 1h
`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectConfig, "config", "studio.yml", "config file to take defaults from")
	inspectCmd.Flags().StringVar(&inspectDB, "db", "", "database path (overrides the config)")
	inspectCmd.Flags().StringVar(&inspectSaveID, "save-id", "", "save slot (overrides the config)")
	inspectCmd.Flags().DurationVar(&inspectRecap, "recap", 0, "also print the event recap for this window")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(inspectConfig)
	if err != nil {
		return err
	}
	if inspectDB != "" {
		cfg.Storage.Path = inspectDB
	}
	if inspectSaveID != "" {
		cfg.Storage.SaveID = inspectSaveID
	}

	db, err := storage.InitSQLite(cfg.Storage.Path, cfg.Tuning())
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	s, err := storage.ReadSave(ctx, storage.NewSQLiteSaveRepository(db), cfg.Storage.SaveID)
	if err != nil {
		return err
	}
	if s == nil {
		fmt.Fprintf(out, "no save in slot %s\n", cfg.Storage.SaveID)
	} else {
		fmt.Fprintf(out, "save %s, version %s, saved %s\n", cfg.Storage.SaveID, s.Version, humanize.Time(s.SavedAt))
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return err
		}
	}

	if inspectRecap <= 0 {
		return nil
	}
	recap, err := storage.NewRecapper(storage.NewSQLiteEventRepository(db)).
		GenerateRecap(ctx, cfg.Storage.SaveID, time.Now().Add(-inspectRecap))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d entries in the last %s\n", len(recap), inspectRecap)
	for _, r := range recap {
		fmt.Fprintf(out, "  %s  %s\n", r.Timestamp, r.Summary)
	}
	return nil
}
