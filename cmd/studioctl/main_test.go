package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circle-gon/nyigj-2024/server/internal/domain/boxes"
	"github.com/circle-gon/nyigj-2024/server/internal/domain/games"
	"github.com/circle-gon/nyigj-2024/server/internal/domain/save"
	"github.com/circle-gon/nyigj-2024/server/internal/infra/storage"
	"github.com/circle-gon/nyigj-2024/server/internal/view"
)

// resetFlags puts every flag of cmd and its subcommands back to its default,
// so one Execute does not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSimulate_JSON(t *testing.T) {
	out, err := execute(t, "simulate", "--select", "Ideas", "--ticks", "5", "--delta", "1", "--json")
	require.NoError(t, err)

	var snap view.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, "Ideas", snap.Games.DoingAction)
	assert.InDelta(t, 5.0, snap.Games.All[0].Progress, 1e-9)
}

func TestSimulate_FlagsDoNotCarryOver(t *testing.T) {
	_, err := execute(t, "simulate", "--select", "Ideas", "--ticks", "3", "--delta", "1", "--json")
	require.NoError(t, err)

	out, err := execute(t, "simulate", "--json")
	require.NoError(t, err)

	var snap view.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Empty(t, snap.Games.DoingAction)
	assert.Equal(t, 0.0, snap.Games.All[0].Progress)
	assert.Equal(t, int64(20), snap.Tick, "default --ticks")
	assert.Empty(t, simSelect)
}

func TestSimulate_RejectsIneligible(t *testing.T) {
	_, err := execute(t, "simulate", "--select", "Mechanics", "--ticks", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, games.ErrIneligible)
	assert.Equal(t, []string{"Mechanics"}, simSelect)
}

func TestSimulate_RejectsNonFiniteDelta(t *testing.T) {
	_, err := execute(t, "simulate", "--delta", "NaN")
	assert.Error(t, err)
}

func TestInspect_EmptySlot(t *testing.T) {
	db := filepath.Join(t.TempDir(), "studio.db")
	out, err := execute(t, "inspect", "--config", filepath.Join(t.TempDir(), "none.yml"), "--db", db, "--save-id", "EMPTY")
	require.NoError(t, err)
	assert.Contains(t, out, "no save in slot EMPTY")
}

func TestInspect_SaveAndRecap(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "studio.db")
	db, err := storage.InitSQLite(path, nil)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, storage.WriteSave(ctx, storage.NewSQLiteSaveRepository(db), "SAVE_1", save.Save{
		Version: save.CurrentVersion,
		SavedAt: now,
		Games:   games.State{DoingAction: games.Ideas, Progress: map[string]float64{games.Ideas: 2}},
		Boxes:   boxes.State{Boxes: "0", Best: "0", Total: "0", Bought: []boxes.UpgradeID{}},
	}))
	events := storage.NewSQLiteEventRepository(db)
	require.NoError(t, events.Append(ctx, storage.GameEvent{ID: "e1", SaveID: "SAVE_1", Seq: 1, Timestamp: now.Add(-time.Minute), EventType: "TASK_SELECTED", ActorID: "p", TargetID: "Ideas"}))
	require.NoError(t, events.Append(ctx, storage.GameEvent{ID: "e2", SaveID: "SAVE_1", Seq: 2, Timestamp: now.Add(-30 * time.Second), EventType: "BOX_MADE", ActorID: "p"}))
	require.NoError(t, db.Close())

	out, err := execute(t, "inspect", "--config", filepath.Join(t.TempDir(), "none.yml"), "--db", path, "--recap", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "save SAVE_1")
	assert.Contains(t, out, `"doing_action": "Ideas"`)
	assert.Contains(t, out, "2 entries in the last 1h0m0s")
	assert.Contains(t, out, "Started working on Ideas.")
	assert.Contains(t, out, "Made a box.")
}

func TestScenarios(t *testing.T) {
	out, err := execute(t, "scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "failed: 0")
}
