package save

import (
	"testing"
	"time"

	"github.com/circle-gon/nyigj-2024/server/internal/domain/games"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_OldVersionIsStampedCurrent(t *testing.T) {
	s, err := Decode([]byte(`{"version":"0.0","games":{"doing_action":"Ideas","progress":{"Ideas":3}}}`))
	require.NoError(t, err)

	assert.Equal(t, CurrentVersion, s.Version)
	assert.Equal(t, games.Ideas, s.Games.DoingAction)
	assert.Equal(t, 3.0, s.Games.Progress[games.Ideas])
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	in := Save{
		Version: CurrentVersion,
		SavedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Tick:    42,
		Games:   games.State{DoingAction: games.Features, Progress: map[string]float64{games.Features: 1.5}},
	}
	b, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, in.Games, out.Games)
	assert.Equal(t, int64(42), out.Tick)
	assert.True(t, in.SavedAt.Equal(out.SavedAt))
}
