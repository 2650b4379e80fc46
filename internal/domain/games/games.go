// Package games defines the "Games" layer: four chained production stages and
// the single active-task selector that decides which of them advances.
// This package is PURE and must NOT import any infrastructure packages.
package games

import (
	"errors"
	"fmt"
	"math"

	"github.com/circle-gon/nyigj-2024/server/internal/domain/stage"
	"github.com/circle-gon/nyigj-2024/server/internal/format"
)

// Stage names, in chain order.
const (
	Ideas       = "Ideas"
	Features    = "Features"
	Programming = "Programming"
	Mechanics   = "Mechanics"
)

var (
	ErrUnknownStage = errors.New("unknown stage")
	ErrIneligible   = errors.New("stage cannot be worked on")
)

// Layer is the Games layer.
type Layer struct {
	Name        string
	All         []*stage.Stage
	DoingAction string // name of the active task, "" for none
}

// State is the persisted part of the layer.
type State struct {
	DoingAction string             `json:"doing_action"`
	Progress    map[string]float64 `json:"progress"`
}

func constant(v float64) func() float64 {
	return func() float64 { return v }
}

func countLine(unit string) func(float64) []string {
	return func(progress float64) []string {
		return []string{format.FormatFloor(progress) + " " + unit}
	}
}

// NewLayer builds the Ideas -> Features -> Programming -> Mechanics chain.
func NewLayer() *Layer {
	ideas := stage.New(stage.Config{
		Name:   Ideas,
		Action: "Think",
		Color:  "blue",
		Data:   countLine("ideas"),
		Gain:   constant(1),
		Spend:  constant(0),
		// Ideas come from nowhere; this input never runs out.
		Uses: stage.NewCell(1),
	})

	features := stage.New(stage.Config{
		Name:   Features,
		Action: "Create",
		Color:  "pink",
		Data: func(p float64) []string {
			return append(countLine("features")(p), "Ideas -> Features")
		},
		Gain:  constant(1),
		Spend: constant(1),
		Uses:  ideas.Progress,
	})

	programming := stage.New(stage.Config{
		Name:   Programming,
		Action: "Program",
		Color:  "green",
		Data: func(p float64) []string {
			return append(countLine("lines of code")(p), "Features -> Lines of Code")
		},
		Gain:  constant(1),
		Spend: constant(1),
		Uses:  features.Progress,
	})

	mechanics := stage.New(stage.Config{
		Name:   Mechanics,
		Action: "Modify",
		Color:  "orange",
		Data: func(p float64) []string {
			return append(countLine("mechanics")(p), "Code -> Mechanics")
		},
		Gain:  constant(1),
		Spend: constant(1),
		Uses:  programming.Progress,
	})

	return &Layer{
		Name: "Games",
		All:  []*stage.Stage{ideas, features, programming, mechanics},
	}
}

// Find returns the stage with the given name, or nil.
func (l *Layer) Find(name string) *stage.Stage {
	for _, s := range l.All {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Active returns the stage currently being worked on, or nil.
func (l *Layer) Active() *stage.Stage {
	return l.Find(l.DoingAction)
}

// Select makes the named stage the only active task, preempting the previous one.
func (l *Layer) Select(name string) error {
	s := l.Find(name)
	if s == nil {
		return fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
	if !s.Can() {
		return fmt.Errorf("%w: %s", ErrIneligible, name)
	}
	l.DoingAction = name
	return nil
}

// Update advances the active task by delta seconds, limited by the input it
// can consume. It returns the amount of work done.
//
// A zero spend rate makes uses/spend +Inf, so the whole delta is used.
func (l *Layer) Update(delta float64) float64 {
	s := l.Active()
	if s == nil || !s.Can() {
		return 0
	}

	spend := s.Spend()
	used := math.Min(delta, s.Uses.Value()/spend)

	s.Progress.Add(s.Gain() * used)
	s.Uses.Add(-spend * used)
	return used
}

// State captures the persisted values.
func (l *Layer) State() State {
	st := State{
		DoingAction: l.DoingAction,
		Progress:    make(map[string]float64, len(l.All)),
	}
	for _, s := range l.All {
		st.Progress[s.Name] = s.Progress.Value()
	}
	return st
}

// Apply restores persisted values. Unknown stage names are ignored.
func (l *Layer) Apply(st State) {
	l.DoingAction = st.DoingAction
	for name, v := range st.Progress {
		if s := l.Find(name); s != nil {
			s.Progress.Set(v)
		}
	}
}
