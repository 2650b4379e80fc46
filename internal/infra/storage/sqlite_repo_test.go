package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circle-gon/nyigj-2024/server/internal/domain/boxes"
	"github.com/circle-gon/nyigj-2024/server/internal/domain/games"
	"github.com/circle-gon/nyigj-2024/server/internal/domain/save"
	"github.com/circle-gon/nyigj-2024/server/internal/events"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/logger"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/metrics"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "nested", "studio.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSQLite_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.db")
	db, err := InitSQLite(path, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = InitSQLite(path, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestSaveRepository_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSaveRepository(openTestDB(t))

	rec, err := repo.Get(ctx, "SAVE_1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Upsert(ctx, SaveRecord{SaveID: "SAVE_1", Version: "0.1", Data: []byte(`{"a":1}`), UpdatedAt: at}))
	require.NoError(t, repo.Upsert(ctx, SaveRecord{SaveID: "SAVE_1", Version: "0.1", Data: []byte(`{"a":2}`), UpdatedAt: at.Add(time.Minute)}))

	rec, err = repo.Get(ctx, "SAVE_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, `{"a":2}`, string(rec.Data))
	assert.True(t, rec.UpdatedAt.Equal(at.Add(time.Minute)))
}

func TestEventRepository_Queries(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(openTestDB(t))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	fixtures := []GameEvent{
		{ID: "e1", SaveID: "SAVE_1", Seq: 1, Timestamp: base, EventType: "TASK_SELECTED", ActorID: "p", TargetID: "Ideas"},
		{ID: "e2", SaveID: "SAVE_1", Seq: 2, Timestamp: base.Add(time.Second), EventType: "BOX_MADE", ActorID: "p"},
		{ID: "e3", SaveID: "SAVE_1", Seq: 3, Timestamp: base.Add(2 * time.Second), EventType: "BOX_MADE", ActorID: "p"},
		{ID: "e4", SaveID: "SAVE_2", Seq: 1, Timestamp: base, EventType: "BOX_MADE", ActorID: "q"},
	}
	for _, e := range fixtures {
		require.NoError(t, repo.Append(ctx, e))
	}

	all, err := repo.GetBySaveID(ctx, "SAVE_1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "e1", all[0].ID)
	assert.Equal(t, "Ideas", all[0].TargetID)
	assert.NotNil(t, all[0].Payload)

	made, err := repo.GetByEventType(ctx, "SAVE_1", "BOX_MADE")
	require.NoError(t, err)
	assert.Len(t, made, 2)

	since, err := repo.GetSince(ctx, "SAVE_1", base.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, "e2", since[0].ID)
	assert.True(t, since[1].Timestamp.Equal(base.Add(2*time.Second)))

	require.Error(t, repo.Append(ctx, fixtures[0]), "duplicate ids are rejected")
}

func TestLedgerPersister_SkipsTicks(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(openTestDB(t))
	p := NewLedgerPersister(repo, "SAVE_1", logger.Discard(), metrics.NewCollector())

	require.NoError(t, p.Append(events.GameEvent{ID: "u1", Seq: 1, Timestamp: time.Now(), Type: events.EventTypeUpdate,
		Payload: events.UpdatePayload{Delta: 0.05, TickNumber: 1}}))
	require.NoError(t, p.Append(events.GameEvent{ID: "s1", Seq: 2, Timestamp: time.Now(), Type: events.EventTypeTaskSelected,
		ActorID: "p", TargetID: "Ideas"}))

	stored, err := repo.GetBySaveID(ctx, "SAVE_1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "TASK_SELECTED", stored[0].EventType)
}

func TestToRecord_FlattensPayload(t *testing.T) {
	rec := ToRecord("SAVE_1", events.GameEvent{
		ID:      "x",
		Type:    events.EventTypeUpdate,
		Payload: events.UpdatePayload{Delta: 2, TickNumber: 7},
	})
	assert.Equal(t, 2.0, rec.Payload["delta"])
	assert.Equal(t, 7.0, rec.Payload["tick_number"])
	assert.Equal(t, "SAVE_1", rec.SaveID)
}

func TestRecapper_CollapsesRuns(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(openTestDB(t))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	types := []struct{ typ, target string }{
		{"GAME_LOADED", ""},
		{"TASK_SELECTED", "Ideas"},
		{"BOX_MADE", ""},
		{"BOX_MADE", ""},
		{"BOX_MADE", ""},
		{"UPGRADE_BOUGHT", "bigger-hands"},
		{"GAME_SAVED", ""},
		{"GAME_SAVED", ""},
	}
	for i, ev := range types {
		require.NoError(t, repo.Append(ctx, GameEvent{
			ID: events.GenerateEventID(), SaveID: "SAVE_1", Seq: uint64(i + 1),
			Timestamp: base.Add(time.Duration(i) * time.Second), EventType: ev.typ, ActorID: "p", TargetID: ev.target,
		}))
	}

	recap, err := NewRecapper(repo).GenerateRecap(ctx, "SAVE_1", base.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, recap, 4)
	assert.Equal(t, "Started working on Ideas.", recap[0].Summary)
	assert.Equal(t, "Made 3 boxes.", recap[1].Summary)
	assert.Equal(t, 3, recap[1].Count)
	assert.Equal(t, "Bought the bigger-hands upgrade.", recap[2].Summary)
	assert.Equal(t, "Game saved 2 times.", recap[3].Summary)
}

func TestWriteAndReadSave(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSaveRepository(openTestDB(t))

	got, err := ReadSave(ctx, repo, "SAVE_1")
	require.NoError(t, err)
	assert.Nil(t, got)

	s := save.Save{
		Version: save.CurrentVersion,
		SavedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Games:   games.State{DoingAction: games.Ideas, Progress: map[string]float64{games.Ideas: 4}},
		Boxes:   boxes.State{Boxes: "3", Best: "3", Total: "3", Bought: []boxes.UpgradeID{}},
	}
	require.NoError(t, WriteSave(ctx, repo, "SAVE_1", s))

	got, err = ReadSave(ctx, repo, "SAVE_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, games.Ideas, got.Games.DoingAction)
	assert.Equal(t, 4.0, got.Games.Progress[games.Ideas])
	assert.Equal(t, "3", got.Boxes.Boxes)
}
