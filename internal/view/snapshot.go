package view

import (
	"github.com/circle-gon/nyigj-2024/server/internal/domain/boxes"
	"github.com/circle-gon/nyigj-2024/server/internal/domain/studio"
)

// StageView is the inspectable state of one stage.
type StageView struct {
	Name     string   `json:"name"`
	Progress float64  `json:"progress"`
	Uses     float64  `json:"uses"`
	Gain     float64  `json:"gain"`
	Spend    float64  `json:"spend"`
	Can      bool     `json:"can"`
	Active   bool     `json:"active"`
	Data     []string `json:"data"`
}

// GamesView is the inspectable state of the Games layer.
type GamesView struct {
	Name        string      `json:"name"`
	DoingAction string      `json:"doing_action"`
	All         []StageView `json:"all"`
}

// BoxesView is the inspectable state of the box demo.
type BoxesView struct {
	Boxes       string           `json:"boxes"`
	Best        string           `json:"best"`
	Total       string           `json:"total"`
	ClickGain   string           `json:"click_gain"`
	PassiveRate string           `json:"passive_rate"`
	Upgrades    []*boxes.Upgrade `json:"upgrades"`
}

// Snapshot is the full client-facing picture of the game at one tick.
type Snapshot struct {
	Tick     int64     `json:"tick"`
	HasWon   bool      `json:"has_won"`
	Layers   []string  `json:"layers"`
	Pressure Bar       `json:"pressure"`
	Games    GamesView `json:"games"`
	Boxes    BoxesView `json:"boxes"`
	Display  Node      `json:"display"`
}

// NewSnapshot captures the main layer and its children.
func NewSnapshot(m *studio.Main, tick int64) Snapshot {
	g := m.Games
	stages := make([]StageView, 0, len(g.All))
	for _, s := range g.All {
		stages = append(stages, StageView{
			Name:     s.Name,
			Progress: s.Progress.Value(),
			Uses:     s.Uses.Value(),
			Gain:     s.Gain(),
			Spend:    s.Spend(),
			Can:      s.Can(),
			Active:   g.DoingAction == s.Name,
			Data:     s.Data(),
		})
	}

	b := m.Boxes
	upgrades := make([]*boxes.Upgrade, 0, len(b.Upgrades))
	for _, u := range b.Upgrades {
		cp := *u
		upgrades = append(upgrades, &cp)
	}

	return Snapshot{
		Tick:     tick,
		HasWon:   m.HasWon(),
		Layers:   m.InitialLayers(),
		Pressure: PressureBar(m),
		Games: GamesView{
			Name:        g.Name,
			DoingAction: g.DoingAction,
			All:         stages,
		},
		Boxes: BoxesView{
			Boxes:       b.Boxes.String(),
			Best:        b.Best.String(),
			Total:       b.Total.String(),
			ClickGain:   b.ClickGain().String(),
			PassiveRate: b.PassiveRate().String(),
			Upgrades:    upgrades,
		},
		Display: RenderMain(m, "games"),
	}
}
