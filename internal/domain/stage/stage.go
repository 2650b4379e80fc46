// Package stage defines one node of the production chain.
// This package is PURE and must NOT import any infrastructure packages.
package stage

import (
	"math"

	"github.com/circle-gon/nyigj-2024/server/internal/format"
)

// Cell is a real-valued slot. Stages share cells so that a stage's input is
// literally its predecessor's progress.
type Cell struct {
	value float64
}

// NewCell creates a cell holding v.
func NewCell(v float64) *Cell {
	return &Cell{value: v}
}

// Value returns the current value.
func (c *Cell) Value() float64 { return c.value }

// Set overwrites the value.
func (c *Cell) Set(v float64) { c.value = v }

// Add adds delta to the value.
func (c *Cell) Add(delta float64) { c.value += delta }

// Config describes a stage to build.
type Config struct {
	Name   string
	Action string // label shown on the bar while the stage is idle
	Color  string
	Data   func(progress float64) []string
	Can    func() bool // optional, defaults to always true
	Gain   func() float64
	Spend  func() float64
	Uses   *Cell
}

// Stage is a single production step: it turns Uses into Progress.
type Stage struct {
	Name     string
	Action   string
	Color    string
	Progress *Cell
	Uses     *Cell

	data  func(progress float64) []string
	can   func() bool
	gain  func() float64
	spend func() float64
}

// New builds a stage with zero progress.
func New(cfg Config) *Stage {
	can := cfg.Can
	if can == nil {
		can = func() bool { return true }
	}
	data := cfg.Data
	if data == nil {
		data = func(float64) []string { return nil }
	}

	return &Stage{
		Name:     cfg.Name,
		Action:   cfg.Action,
		Color:    cfg.Color,
		Progress: NewCell(0),
		Uses:     cfg.Uses,
		data:     data,
		can:      can,
		gain:     cfg.Gain,
		spend:    cfg.Spend,
	}
}

// Gain is the progress earned per unit of work.
func (s *Stage) Gain() float64 { return s.gain() }

// Spend is the input consumed per unit of work.
func (s *Stage) Spend() float64 { return s.spend() }

// Can reports whether the stage may be worked on right now.
func (s *Stage) Can() bool {
	return s.can() && s.Uses.Value() > 0
}

// Data returns the info lines for the current progress.
func (s *Stage) Data() []string {
	return s.data(s.Progress.Value())
}

// BarProgress is the filled fraction of the current unit of progress.
func (s *Stage) BarProgress() float64 {
	return math.Mod(s.Progress.Value(), 1)
}

// BarText is the label on the stage's bar: the rate while active, the
// action otherwise.
func (s *Stage) BarText(active bool) string {
	if active {
		return format.Format(s.Gain()) + "/s"
	}
	return s.Action
}
