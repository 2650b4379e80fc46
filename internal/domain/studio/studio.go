// Package studio composes the "Main" layer: the pressure bar, the tab family
// and the layers it shows.
// This package is PURE and must NOT import any infrastructure packages.
package studio

import (
	"github.com/circle-gon/nyigj-2024/server/internal/domain/boxes"
	"github.com/circle-gon/nyigj-2024/server/internal/domain/games"
)

// Tab is one entry of the main tab family.
type Tab struct {
	ID      string `json:"id"`
	Display string `json:"display"`
}

// Main is the root layer of the game.
type Main struct {
	Name  string
	Tabs  []Tab
	Games *games.Layer
	Boxes *boxes.Layer
}

// NewMain builds the main layer around its child layers.
func NewMain(g *games.Layer, b *boxes.Layer) *Main {
	return &Main{
		Name:  "Main",
		Tabs:  []Tab{{ID: "games", Display: "Games"}},
		Games: g,
		Boxes: b,
	}
}

// Pressure is fixed for now; nothing raises it yet.
func (m *Main) Pressure() float64 { return 10 }

// MaxPressure is the bar's capacity.
func (m *Main) MaxPressure() float64 { return 100 }

// PressureProgress is the filled fraction of the pressure bar.
func (m *Main) PressureProgress() float64 {
	return m.Pressure() / m.MaxPressure()
}

// InitialLayers lists the layers enabled for a loaded save. The box demo
// lives inside Main, so it is not a layer of its own.
func (m *Main) InitialLayers() []string {
	return []string{m.Name, m.Games.Name}
}

// HasWon reports whether the game is over. There is no end yet.
func (m *Main) HasWon() bool { return false }
