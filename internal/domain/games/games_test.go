package games

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func progressOf(l *Layer) map[string]float64 {
	return l.State().Progress
}

func TestNewLayer_ChainAliasesPredecessorProgress(t *testing.T) {
	l := NewLayer()
	require.Len(t, l.All, 4)

	names := []string{Ideas, Features, Programming, Mechanics}
	for i, s := range l.All {
		assert.Equal(t, names[i], s.Name)
		assert.Equal(t, 1.0, s.Gain())
		if i > 0 {
			assert.Same(t, l.All[i-1].Progress, s.Uses, "%s should consume %s", s.Name, names[i-1])
			assert.Equal(t, 1.0, s.Spend())
		}
	}
	assert.Equal(t, 0.0, l.All[0].Spend())
	assert.Equal(t, 1.0, l.All[0].Uses.Value())
}

func TestUpdate_NoActiveTaskIsNoop(t *testing.T) {
	l := NewLayer()
	before := progressOf(l)

	assert.Zero(t, l.Update(5))
	assert.Equal(t, before, progressOf(l))

	l.DoingAction = "Marketing"
	assert.Zero(t, l.Update(5))
	assert.Equal(t, before, progressOf(l))
}

func TestUpdate_IdeasZeroSpendUsesWholeDelta(t *testing.T) {
	l := NewLayer()
	require.NoError(t, l.Select(Ideas))

	used := l.Update(5)

	assert.Equal(t, 5.0, used)
	assert.Equal(t, 5.0, l.Find(Ideas).Progress.Value())
	assert.Equal(t, 1.0, l.Find(Ideas).Uses.Value(), "dummy input never drains")
}

func TestUpdate_FeaturesLimitedByIdeas(t *testing.T) {
	l := NewLayer()
	l.Find(Ideas).Progress.Set(1)
	require.NoError(t, l.Select(Features))

	used := l.Update(2)

	assert.Equal(t, 1.0, used)
	assert.Equal(t, 1.0, l.Find(Features).Progress.Value())
	assert.Equal(t, 0.0, l.Find(Ideas).Progress.Value())
}

func TestUpdate_ConsumesExactlyWhatItProduces(t *testing.T) {
	l := NewLayer()
	l.Find(Ideas).Progress.Set(10)
	require.NoError(t, l.Select(Features))

	l.Update(3)

	assert.Equal(t, 3.0, l.Find(Features).Progress.Value())
	assert.Equal(t, 7.0, l.Find(Ideas).Progress.Value())
}

func TestUpdate_IneligibleActiveTaskIsNoop(t *testing.T) {
	l := NewLayer()
	l.Find(Ideas).Progress.Set(1)
	require.NoError(t, l.Select(Features))
	l.Update(1)
	require.Equal(t, 0.0, l.Find(Ideas).Progress.Value())

	// Still selected, but nothing left to spend.
	assert.Equal(t, Features, l.DoingAction)
	assert.False(t, l.Find(Features).Can())
	assert.Zero(t, l.Update(10))
	assert.Equal(t, 1.0, l.Find(Features).Progress.Value())
}

func TestUpdate_OnlyOneStageAdvancesPerTick(t *testing.T) {
	l := NewLayer()
	l.Find(Ideas).Progress.Set(4)
	l.Find(Features).Progress.Set(4)
	l.Find(Programming).Progress.Set(4)
	require.NoError(t, l.Select(Programming))

	before := progressOf(l)
	l.Update(1)
	after := progressOf(l)

	increased := 0
	for name := range before {
		if after[name] > before[name] {
			increased++
			assert.Equal(t, Programming, name)
		}
	}
	assert.Equal(t, 1, increased)
	assert.Equal(t, 3.0, after[Features])
	assert.Equal(t, before[Ideas], after[Ideas])
	assert.Equal(t, before[Mechanics], after[Mechanics])
}

func TestUpdate_ProgressNonDecreasingWhileActive(t *testing.T) {
	l := NewLayer()
	l.Find(Ideas).Progress.Set(3)
	require.NoError(t, l.Select(Features))

	last := l.Find(Features).Progress.Value()
	for _, d := range []float64{0.5, 0.25, 2, 0, 1, 4} {
		l.Update(d)
		cur := l.Find(Features).Progress.Value()
		assert.GreaterOrEqual(t, cur, last)
		last = cur
	}
	assert.Equal(t, 3.0, last)
}

func TestSelect_SwitchFreezesPreviousAndResumesNew(t *testing.T) {
	l := NewLayer()
	require.NoError(t, l.Select(Ideas))
	l.Update(2)

	l.Find(Features).Progress.Set(0.5)
	require.NoError(t, l.Select(Features))
	l.Update(1)

	assert.Equal(t, 1.0, l.Find(Ideas).Progress.Value(), "ideas frozen then spent")
	assert.Equal(t, 1.5, l.Find(Features).Progress.Value(), "features resume from stored progress")
}

func TestSelect_Errors(t *testing.T) {
	l := NewLayer()
	require.NoError(t, l.Select(Ideas))

	err := l.Select("Marketing")
	assert.ErrorIs(t, err, ErrUnknownStage)

	err = l.Select(Mechanics)
	assert.ErrorIs(t, err, ErrIneligible)

	assert.Equal(t, Ideas, l.DoingAction, "failed select leaves selector unchanged")
}

func TestStateRoundTripIgnoresUnknownStages(t *testing.T) {
	l := NewLayer()
	l.Apply(State{
		DoingAction: Programming,
		Progress:    map[string]float64{Ideas: 2, Features: 3.5, "Legacy": 9},
	})

	assert.Equal(t, Programming, l.DoingAction)
	assert.Equal(t, 2.0, l.Find(Ideas).Progress.Value())
	assert.Equal(t, 3.5, l.Find(Features).Progress.Value())
	assert.NotContains(t, l.State().Progress, "Legacy")
	assert.Len(t, l.State().Progress, 4)
}

func TestDataLines(t *testing.T) {
	l := NewLayer()
	l.Find(Programming).Progress.Set(1234.9)

	assert.Equal(t, []string{"0 ideas"}, l.Find(Ideas).Data())
	assert.Equal(t, []string{"1,234 lines of code", "Features -> Lines of Code"}, l.Find(Programming).Data())
}
