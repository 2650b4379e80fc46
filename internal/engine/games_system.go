package engine

import (
	"github.com/circle-gon/nyigj-2024/server/internal/domain/games"
	"github.com/circle-gon/nyigj-2024/server/internal/events"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/logger"
)

// GamesSystem drives the production chain.
// It advances the active task on UPDATE and switches it on TASK_SELECTED.
type GamesSystem struct {
	layer  *games.Layer
	logger *logger.Logger
}

// NewGamesSystem wraps a Games layer.
func NewGamesSystem(layer *games.Layer, log *logger.Logger) *GamesSystem {
	return &GamesSystem{layer: layer, logger: log}
}

// OnUpdate advances the active task by the tick's delta.
func (gs *GamesSystem) OnUpdate(event events.GameEvent) {
	payload, ok := event.Payload.(events.UpdatePayload)
	if !ok {
		gs.logger.Error("failed to parse UpdatePayload", "event_id", event.ID)
		return
	}
	gs.layer.Update(payload.Delta)
}

// OnTaskSelected makes the event's target the active task. A target that is
// no longer eligible by the time the event is processed leaves the selector
// untouched.
func (gs *GamesSystem) OnTaskSelected(event events.GameEvent) {
	previous := gs.layer.DoingAction
	if err := gs.layer.Select(event.TargetID); err != nil {
		gs.logger.Warn("task selection rejected", "actor", event.ActorID, "stage", event.TargetID, "err", err)
		return
	}
	gs.logger.Event(string(event.Type), event.ActorID, previous+" -> "+event.TargetID)
}
