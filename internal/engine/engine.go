package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/circle-gon/nyigj-2024/server/internal/domain/boxes"
	"github.com/circle-gon/nyigj-2024/server/internal/domain/games"
	"github.com/circle-gon/nyigj-2024/server/internal/domain/save"
	"github.com/circle-gon/nyigj-2024/server/internal/domain/studio"
	"github.com/circle-gon/nyigj-2024/server/internal/events"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/logger"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/metrics"
	"github.com/circle-gon/nyigj-2024/server/internal/view"
)

// pollInterval is how often the processor drains the event log.
const pollInterval = 25 * time.Millisecond

// Options configures an Engine.
type Options struct {
	Ticker  TickerOptions
	Metrics *metrics.Collector
}

// Engine is the central orchestrator that wires the event log to the layers.
// Layer state is only touched under mu; the action methods validate under a
// read lock and append an event, and the processor applies it.
type Engine struct {
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
	clock    Clock
	ticker   *Ticker

	mu            sync.RWMutex
	main          *studio.Main
	gamesSystem   *GamesSystem
	boxesSystem   *BoxesSystem
	lastProcessed uint64
	tick          int64
}

// NewEngine builds a fresh studio and its systems.
func NewEngine(eventLog *events.EventLog, log *logger.Logger, opts Options) *Engine {
	if opts.Ticker.Clock == nil {
		opts.Ticker.Clock = RealClock{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Get()
	}

	g := games.NewLayer()
	b := boxes.NewLayer()

	return &Engine{
		eventLog:    eventLog,
		logger:      log,
		metrics:     opts.Metrics,
		clock:       opts.Ticker.Clock,
		ticker:      NewTicker(eventLog, log, opts.Ticker),
		main:        studio.NewMain(g, b),
		gamesSystem: NewGamesSystem(g, log),
		boxesSystem: NewBoxesSystem(b, log),
	}
}

// Start spawns the Ticker and the event processor.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info("starting studio engine")
	go e.ticker.Start(ctx)
	go e.processEvents(ctx)
}

// Stop halts the ticker. The processor exits with its context.
func (e *Engine) Stop() {
	e.ticker.Stop()
}

// EventLog exposes the log for pollers such as the hub.
func (e *Engine) EventLog() *events.EventLog {
	return e.eventLog
}

// Step emits one tick with an explicit delta and applies it immediately.
// Used by headless drivers and tests.
func (e *Engine) Step(delta float64) {
	e.ticker.Emit(delta)
	e.ProcessPending()
}

func (e *Engine) processEvents(ctx context.Context) {
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("event processor stopped")
			return
		case <-poll.C:
			e.ProcessPending()
		}
	}
}

// ProcessPending dispatches every event appended since the last call, in Seq
// order, and returns how many were handled.
func (e *Engine) ProcessPending() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	pending := e.eventLog.Since(e.lastProcessed)
	for _, event := range pending {
		e.dispatch(event)
		e.lastProcessed = event.Seq
	}
	return len(pending)
}

// dispatch routes an event to the systems. Caller holds mu.
func (e *Engine) dispatch(event events.GameEvent) {
	switch event.Type {
	case events.EventTypeUpdate:
		start := time.Now()
		e.gamesSystem.OnUpdate(event)
		e.boxesSystem.OnUpdate(event)
		if p, ok := event.Payload.(events.UpdatePayload); ok {
			e.tick = p.TickNumber
			e.metrics.RecordTick(p.Delta, time.Since(start))
		}
		e.recordGauges()
	case events.EventTypeTaskSelected:
		e.gamesSystem.OnTaskSelected(event)
	case events.EventTypeBoxMade:
		e.boxesSystem.OnBoxMade(event)
	case events.EventTypeUpgradeBought:
		e.boxesSystem.OnUpgradeBought(event)
	case events.EventTypeGameSaved, events.EventTypeGameLoaded:
		// ledger only
	default:
		e.logger.Warn("unhandled event type", "type", event.Type)
	}
}

func (e *Engine) recordGauges() {
	for _, s := range e.main.Games.All {
		e.metrics.RecordStage(s.Name, s.Progress.Value())
	}
	f, _ := e.main.Boxes.Boxes.Float64()
	e.metrics.RecordBoxes(f)
}

func (e *Engine) appendAction(eventType events.EventType, actorID, targetID string) {
	e.eventLog.Append(events.GameEvent{
		Timestamp: e.clock.Now(),
		Type:      eventType,
		ActorID:   actorID,
		TargetID:  targetID,
	})
}

// SelectTask queues a switch of the active task.
func (e *Engine) SelectTask(actorID, name string) error {
	e.mu.RLock()
	s := e.main.Games.Find(name)
	var err error
	switch {
	case s == nil:
		err = fmt.Errorf("%w: %q", games.ErrUnknownStage, name)
	case !s.Can():
		err = fmt.Errorf("%w: %q", games.ErrIneligible, name)
	}
	e.mu.RUnlock()
	if err != nil {
		return err
	}

	e.appendAction(events.EventTypeTaskSelected, actorID, name)
	return nil
}

// MakeBox queues one click.
func (e *Engine) MakeBox(actorID string) error {
	e.appendAction(events.EventTypeBoxMade, actorID, "")
	return nil
}

// BuyUpgrade queues an upgrade purchase.
func (e *Engine) BuyUpgrade(actorID string, id boxes.UpgradeID) error {
	e.mu.RLock()
	err := e.main.Boxes.CanBuy(id)
	e.mu.RUnlock()
	if err != nil {
		return err
	}

	e.appendAction(events.EventTypeUpgradeBought, actorID, string(id))
	return nil
}

// Snapshot returns the current read model.
func (e *Engine) Snapshot() view.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return view.NewSnapshot(e.main, e.tick)
}

// Tick returns the last tick number applied.
func (e *Engine) Tick() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tick
}

// SaveState captures persisted state and records a GAME_SAVED event.
func (e *Engine) SaveState() save.Save {
	e.mu.RLock()
	s := save.Save{
		Version: save.CurrentVersion,
		SavedAt: e.clock.Now(),
		Tick:    e.tick,
		Games:   e.main.Games.State(),
		Boxes:   e.main.Boxes.State(),
	}
	e.mu.RUnlock()

	e.appendAction(events.EventTypeGameSaved, "SYSTEM", "")
	return s
}

// LoadState replaces layer state and the tick counter with a save and
// records a GAME_LOADED event.
func (e *Engine) LoadState(s save.Save) {
	e.mu.Lock()
	e.main.Games.Apply(s.Games)
	e.main.Boxes.Apply(s.Boxes)
	e.tick = s.Tick
	e.ticker.SetTickNumber(s.Tick)
	e.mu.Unlock()

	e.logger.Info("save restored", "version", s.Version, "saved_at", s.SavedAt, "doing", s.Games.DoingAction)
	e.appendAction(events.EventTypeGameLoaded, "SYSTEM", "")
}
