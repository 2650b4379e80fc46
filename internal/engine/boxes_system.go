package engine

import (
	"github.com/circle-gon/nyigj-2024/server/internal/domain/boxes"
	"github.com/circle-gon/nyigj-2024/server/internal/events"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/logger"
)

// BoxesSystem runs the box-building demo.
type BoxesSystem struct {
	layer  *boxes.Layer
	logger *logger.Logger
}

// NewBoxesSystem wraps a box layer.
func NewBoxesSystem(layer *boxes.Layer, log *logger.Logger) *BoxesSystem {
	return &BoxesSystem{layer: layer, logger: log}
}

// OnUpdate applies passive production.
func (bs *BoxesSystem) OnUpdate(event events.GameEvent) {
	payload, ok := event.Payload.(events.UpdatePayload)
	if !ok {
		return
	}
	bs.layer.Update(payload.Delta)
}

// OnBoxMade handles a click.
func (bs *BoxesSystem) OnBoxMade(event events.GameEvent) {
	bs.layer.MakeBox()
}

// OnUpgradeBought pays for the event's target upgrade.
func (bs *BoxesSystem) OnUpgradeBought(event events.GameEvent) {
	if err := bs.layer.Buy(boxes.UpgradeID(event.TargetID)); err != nil {
		bs.logger.Warn("upgrade purchase rejected", "actor", event.ActorID, "upgrade", event.TargetID, "err", err)
		return
	}
	bs.logger.Event(string(event.Type), event.ActorID, event.TargetID)
}
