// Package engine contains the game loop and simulation logic.
//
// ARCHITECTURAL RULE: the Ticker does NOT mutate layer state. It emits UPDATE
// events carrying the elapsed time; the Engine drains them and the systems react.
package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/circle-gon/nyigj-2024/server/internal/events"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/logger"
)

// DefaultTickRate is how often the loop fires when no rate is configured.
const DefaultTickRate = 50 * time.Millisecond

// TickerOptions configures the loop.
type TickerOptions struct {
	Rate time.Duration
	// MaxTickLength caps one delta, in seconds. Zero means no cap.
	MaxTickLength float64
	// DevSpeed multiplies elapsed time. Zero means 1.
	DevSpeed float64
	Clock    Clock
}

// Ticker manages the game loop heartbeat.
// It does NOT know about stages - only time progression.
type Ticker struct {
	eventLog *events.EventLog
	logger   *logger.Logger
	opts     TickerOptions

	mu         sync.Mutex
	tickNumber int64
	last       time.Time

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTicker creates a new game ticker.
func NewTicker(eventLog *events.EventLog, log *logger.Logger, opts TickerOptions) *Ticker {
	if opts.Rate <= 0 {
		opts.Rate = DefaultTickRate
	}
	if opts.DevSpeed == 0 {
		opts.DevSpeed = 1
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	return &Ticker{
		eventLog: eventLog,
		logger:   log,
		opts:     opts,
		stopChan: make(chan struct{}),
	}
}

// Start begins the game loop. Call in a goroutine.
func (t *Ticker) Start(ctx context.Context) {
	t.logger.Info("ticker started", "rate", t.opts.Rate, "dev_speed", t.opts.DevSpeed)

	t.mu.Lock()
	t.last = t.opts.Clock.Now()
	t.mu.Unlock()

	ticker := time.NewTicker(t.opts.Rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("ticker stopped by context")
			return
		case <-t.stopChan:
			t.logger.Info("ticker stopped manually")
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

// Stop gracefully stops the ticker.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}

// tick measures real elapsed time since the previous tick and emits it.
func (t *Ticker) tick() {
	now := t.opts.Clock.Now()
	t.mu.Lock()
	elapsed := now.Sub(t.last).Seconds()
	t.last = now
	t.mu.Unlock()

	t.Emit(elapsed)
}

// Emit appends one UPDATE event for elapsed real seconds, scaled by the dev
// speed and capped at the maximum tick length. Negative and non-finite
// deltas become 0.
func (t *Ticker) Emit(elapsed float64) events.GameEvent {
	delta := elapsed * t.opts.DevSpeed
	if t.opts.MaxTickLength > 0 {
		delta = math.Min(delta, t.opts.MaxTickLength)
	}
	if math.IsNaN(delta) || math.IsInf(delta, 0) || delta < 0 {
		delta = 0
	}

	t.mu.Lock()
	t.tickNumber++
	n := t.tickNumber
	t.mu.Unlock()

	return t.eventLog.Append(events.GameEvent{
		Timestamp: t.opts.Clock.Now(),
		Type:      events.EventTypeUpdate,
		ActorID:   "SYSTEM_LOOP",
		Payload:   events.UpdatePayload{Delta: delta, TickNumber: n},
	})
}

// TickNumber returns the number of ticks emitted so far.
func (t *Ticker) TickNumber() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tickNumber
}

// SetTickNumber restores the counter, e.g. from a save.
func (t *Ticker) SetTickNumber(n int64) {
	t.mu.Lock()
	t.tickNumber = n
	t.mu.Unlock()
}
