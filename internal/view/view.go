// Package view turns layer state into render trees and snapshots for clients.
package view

import (
	"github.com/circle-gon/nyigj-2024/server/internal/domain/boxes"
	"github.com/circle-gon/nyigj-2024/server/internal/domain/games"
	"github.com/circle-gon/nyigj-2024/server/internal/domain/stage"
	"github.com/circle-gon/nyigj-2024/server/internal/domain/studio"
	"github.com/circle-gon/nyigj-2024/server/internal/format"
)

// Direction of a bar fill.
type Direction string

const DirectionRight Direction = "RIGHT"

// Bar is a progress bar.
type Bar struct {
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Direction Direction `json:"direction"`
	Progress  float64   `json:"progress"`
	Text      string    `json:"text"`
	TextColor string    `json:"text_color,omitempty"`
	BaseColor string    `json:"base_color,omitempty"`
	FillColor string    `json:"fill_color,omitempty"`
}

// Node is one element of a render tree.
type Node struct {
	Tag      string            `json:"tag"`
	Class    string            `json:"class,omitempty"`
	Text     string            `json:"text,omitempty"`
	Style    map[string]string `json:"style,omitempty"`
	Action   string            `json:"action,omitempty"` // client action sent on click
	Target   string            `json:"target,omitempty"`
	Bar      *Bar              `json:"bar,omitempty"`
	Children []Node            `json:"children,omitempty"`
}

// StageBar builds the bar shown under a stage.
func StageBar(s *stage.Stage, active bool) Bar {
	return Bar{
		Width:     100,
		Height:    30,
		Direction: DirectionRight,
		Progress:  s.BarProgress(),
		Text:      s.BarText(active),
		TextColor: s.Color,
		BaseColor: "grey",
	}
}

// RenderStage renders one stage box. Clicking the bar selects the stage.
func RenderStage(s *stage.Stage, active bool) Node {
	lines := make([]Node, 0, len(s.Data()))
	for _, line := range s.Data() {
		lines = append(lines, Node{Tag: "div", Text: line})
	}
	bar := StageBar(s, active)

	return Node{
		Tag:   "div",
		Class: "box",
		Style: map[string]string{"border-color": s.Color},
		Children: []Node{
			{Tag: "div", Style: map[string]string{"width": "100%"}, Children: []Node{
				{Tag: "span", Class: "big-header", Text: s.Name},
				{Tag: "hr"},
			}},
			{Tag: "div", Style: map[string]string{"font-size": "10px"}, Children: lines},
			{Tag: "div", Action: "SELECT_TASK", Target: s.Name, Bar: &bar},
		},
	}
}

// RenderGames renders every stage side by side.
func RenderGames(l *games.Layer) Node {
	children := make([]Node, 0, len(l.All))
	for _, s := range l.All {
		children = append(children, RenderStage(s, l.DoingAction == s.Name))
	}
	return Node{Tag: "div", Class: "contain", Children: children}
}

// RenderBoxes renders the box demo.
func RenderBoxes(l *boxes.Layer) Node {
	upgrades := make([]Node, 0, len(l.Upgrades))
	for _, u := range l.Upgrades {
		class := "upgrade"
		if u.Bought {
			class += " bought"
		} else if l.CanBuy(u.ID) != nil {
			class += " locked"
		}
		upgrades = append(upgrades, Node{
			Tag:    "button",
			Class:  class,
			Text:   u.Title + ": " + u.Description + " Cost: " + format.FormatDecimal(u.Cost) + " boxes",
			Action: "BUY_UPGRADE",
			Target: string(u.ID),
		})
	}

	return Node{Tag: "div", Children: []Node{
		{Tag: "div", Text: "You have " + format.FormatDecimal(l.Boxes) + " boxes (" + format.FormatDecimal(l.PassiveRate()) + "/s)"},
		{Tag: "button", Text: "Make a box (+" + format.FormatDecimal(l.ClickGain()) + ")", Action: "MAKE_BOX"},
		{Tag: "div", Class: "row", Children: upgrades},
	}}
}

// PressureBar renders the decorative pressure bar.
func PressureBar(m *studio.Main) Bar {
	return Bar{
		Width:     400,
		Height:    50,
		Direction: DirectionRight,
		Progress:  m.PressureProgress(),
		Text:      format.Format(m.Pressure()) + " / " + format.Format(m.MaxPressure()) + " Pressure",
		TextColor: "red",
		FillColor: "grey",
	}
}

// RenderMain renders the pressure bar above the tab family, followed by the
// box demo.
func RenderMain(m *studio.Main, activeTab string) Node {
	tabs := make([]Node, 0, len(m.Tabs))
	for _, tab := range m.Tabs {
		class := "tab"
		if tab.ID == activeTab {
			class += " active"
		}
		tabs = append(tabs, Node{Tag: "button", Class: class, Text: tab.Display, Target: tab.ID})
	}

	bar := PressureBar(m)
	return Node{Tag: "div", Children: []Node{
		{Tag: "div", Bar: &bar},
		{Tag: "div", Class: "tabs", Children: tabs},
		RenderGames(m.Games),
		RenderBoxes(m.Boxes),
	}}
}
