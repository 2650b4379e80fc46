// Package test holds scripted end-to-end scenarios that drive a headless
// engine tick by tick and check the chain's behavior.
package test

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/circle-gon/nyigj-2024/server/internal/domain/boxes"
	"github.com/circle-gon/nyigj-2024/server/internal/domain/games"
	"github.com/circle-gon/nyigj-2024/server/internal/engine"
	"github.com/circle-gon/nyigj-2024/server/internal/events"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/logger"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/metrics"
	"github.com/circle-gon/nyigj-2024/server/internal/view"
)

const epsilon = 1e-9

// Scenario is one scripted run against a fresh engine.
type Scenario struct {
	Name  string
	Input string
	Run   func(h *Harness) error
}

// Result captures the outcome of a scenario.
type Result struct {
	ScenarioName string `json:"scenario"`
	Input        string `json:"input"`
	Passed       bool   `json:"passed"`
	Reason       string `json:"reason"`
}

// Harness wraps an engine driven by explicit deltas.
type Harness struct {
	Engine *engine.Engine
	Log    *events.EventLog
}

// NewHarness creates an engine on a fake clock with its own metrics registry.
func NewHarness(log *logger.Logger) *Harness {
	el := events.NewEventLog(0, nil)
	eng := engine.NewEngine(el, log, engine.Options{
		Ticker: engine.TickerOptions{
			MaxTickLength: 3600,
			Clock:         engine.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		},
		Metrics: metrics.NewCollector(),
	})
	return &Harness{Engine: eng, Log: el}
}

// Select queues a selection and applies it.
func (h *Harness) Select(name string) error {
	if err := h.Engine.SelectTask("scenario", name); err != nil {
		return err
	}
	h.Engine.ProcessPending()
	return nil
}

// Stage returns the named stage from the current snapshot.
func (h *Harness) Stage(name string) view.StageView {
	for _, s := range h.Engine.Snapshot().Games.All {
		if s.Name == name {
			return s
		}
	}
	return view.StageView{}
}

func expect(what string, got, want float64) error {
	if math.Abs(got-want) > epsilon {
		return fmt.Errorf("%s = %v, want %v", what, got, want)
	}
	return nil
}

// Scenarios returns the built-in scenario suite.
func Scenarios() []Scenario {
	return []Scenario{
		{
			Name:  "Ideas from nothing",
			Input: "select Ideas, tick 5s",
			Run: func(h *Harness) error {
				if err := h.Select(games.Ideas); err != nil {
					return err
				}
				h.Engine.Step(5)
				ideas := h.Stage(games.Ideas)
				return errors.Join(
					expect("Ideas.progress", ideas.Progress, 5),
					expect("Ideas.uses", ideas.Uses, 1),
				)
			},
		},
		{
			Name:  "Features limited by ideas",
			Input: "1 idea, select Features, tick 2s",
			Run: func(h *Harness) error {
				if err := h.Select(games.Ideas); err != nil {
					return err
				}
				h.Engine.Step(1)
				if err := h.Select(games.Features); err != nil {
					return err
				}
				h.Engine.Step(2)
				if err := errors.Join(
					expect("Features.progress", h.Stage(games.Features).Progress, 1),
					expect("Ideas.progress", h.Stage(games.Ideas).Progress, 0),
				); err != nil {
					return err
				}
				if h.Stage(games.Features).Can {
					return errors.New("features still workable with no ideas left")
				}
				h.Engine.Step(10)
				return expect("Features.progress after starving", h.Stage(games.Features).Progress, 1)
			},
		},
		{
			Name:  "Single active task",
			Input: "select Ideas then Features, tick 1s",
			Run: func(h *Harness) error {
				if err := h.Select(games.Ideas); err != nil {
					return err
				}
				h.Engine.Step(3)
				if err := h.Select(games.Features); err != nil {
					return err
				}
				h.Engine.Step(1)
				return errors.Join(
					expect("Ideas.progress", h.Stage(games.Ideas).Progress, 2),
					expect("Features.progress", h.Stage(games.Features).Progress, 1),
				)
			},
		},
		{
			Name:  "Ineligible selection rejected",
			Input: "select Mechanics on a fresh studio",
			Run: func(h *Harness) error {
				err := h.Select(games.Mechanics)
				if !errors.Is(err, games.ErrIneligible) {
					return fmt.Errorf("got %v, want ErrIneligible", err)
				}
				if doing := h.Engine.Snapshot().Games.DoingAction; doing != "" {
					return fmt.Errorf("doing_action = %q, want empty", doing)
				}
				return nil
			},
		},
		{
			Name:  "Save round trip",
			Input: "progress, save, load into a fresh engine",
			Run: func(h *Harness) error {
				if err := h.Select(games.Ideas); err != nil {
					return err
				}
				h.Engine.Step(4)
				s := h.Engine.SaveState()

				fresh := NewHarness(logger.Discard())
				fresh.Engine.LoadState(s)
				fresh.Engine.ProcessPending()
				if doing := fresh.Engine.Snapshot().Games.DoingAction; doing != games.Ideas {
					return fmt.Errorf("restored doing_action = %q", doing)
				}
				return expect("restored Ideas.progress", fresh.Stage(games.Ideas).Progress, 4)
			},
		},
		{
			Name:  "Box factory",
			Input: "25 clicks, buy box-factory, tick 10s",
			Run: func(h *Harness) error {
				for i := 0; i < 25; i++ {
					if err := h.Engine.MakeBox("scenario"); err != nil {
						return err
					}
				}
				h.Engine.ProcessPending()
				if err := h.Engine.BuyUpgrade("scenario", boxes.UpgradeBoxFactory); err != nil {
					return err
				}
				h.Engine.Step(10)
				if got := h.Engine.Snapshot().Boxes.Boxes; got != "10" {
					return fmt.Errorf("boxes = %s, want 10", got)
				}
				return nil
			},
		},
	}
}

// RunAll runs every scenario on its own harness.
func RunAll(log *logger.Logger, scenarios []Scenario) []Result {
	results := make([]Result, 0, len(scenarios))
	for _, sc := range scenarios {
		r := Result{ScenarioName: sc.Name, Input: sc.Input, Passed: true, Reason: "ok"}
		if err := sc.Run(NewHarness(log)); err != nil {
			r.Passed = false
			r.Reason = err.Error()
		}
		log.Info("scenario finished", "scenario", sc.Name, "passed", r.Passed)
		results = append(results, r)
	}
	return results
}
