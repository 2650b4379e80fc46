// Package events provides the event log every game action flows through.
// The tick driver, websocket clients and REST handlers append to it; the
// engine drains it in order and is the only thing that mutates game state.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a game event.
type EventType string

const (
	EventTypeUpdate        EventType = "UPDATE" // elapsed-time tick
	EventTypeTaskSelected  EventType = "TASK_SELECTED"
	EventTypeBoxMade       EventType = "BOX_MADE"
	EventTypeUpgradeBought EventType = "UPGRADE_BOUGHT"
	EventTypeGameSaved     EventType = "GAME_SAVED"
	EventTypeGameLoaded    EventType = "GAME_LOADED"
)

// DefaultCapacity is the retention used when none is given.
const DefaultCapacity = 4096

// UpdatePayload is attached to every UPDATE event.
type UpdatePayload struct {
	Delta      float64 `json:"delta"` // seconds
	TickNumber int64   `json:"tick_number"`
}

// GameEvent represents an immutable record of something that happened.
type GameEvent struct {
	ID        string      `json:"id"`
	Seq       uint64      `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"`            // who performed the action
	TargetID  string      `json:"target_id,omitempty"` // stage or upgrade affected
	Payload   interface{} `json:"payload,omitempty"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// EventLog is the in-memory append-only log of game events. Only the newest
// capacity events are retained; Seq keeps counting across dropped events.
//
// With a persister, a single writer goroutine hands events to it in Seq
// order. Call Close to flush it.
type EventLog struct {
	mu       sync.RWMutex
	events   []GameEvent
	capacity int
	nextSeq  uint64

	persister     EventPersister
	persistCh     chan GameEvent
	persistDone   chan struct{}
	persistErrors atomic.Uint64
	closed        bool
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(capacity int, persister EventPersister) *EventLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	el := &EventLog{
		events:    make([]GameEvent, 0, capacity),
		capacity:  capacity,
		nextSeq:   1,
		persister: persister,
	}
	if persister != nil {
		el.persistCh = make(chan GameEvent, capacity)
		el.persistDone = make(chan struct{})
		go el.persistLoop()
	}
	return el
}

func (el *EventLog) persistLoop() {
	defer close(el.persistDone)
	for e := range el.persistCh {
		if err := el.persister.Append(e); err != nil {
			el.persistErrors.Add(1)
		}
	}
}

// PersistErrors counts writes the persister rejected.
func (el *EventLog) PersistErrors() uint64 {
	return el.persistErrors.Load()
}

// Close stops accepting writes for the persister and waits until every
// queued event has been handed to it. Appends after Close stay in memory only.
func (el *EventLog) Close() {
	el.mu.Lock()
	if el.persistCh == nil || el.closed {
		el.mu.Unlock()
		return
	}
	el.closed = true
	close(el.persistCh)
	el.mu.Unlock()

	<-el.persistDone
}

// Append stamps the event with its sequence number (and an ID and timestamp
// when missing), stores it and returns the stored copy.
func (el *EventLog) Append(event GameEvent) GameEvent {
	el.mu.Lock()
	defer el.mu.Unlock()

	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Seq = el.nextSeq
	el.nextSeq++

	if len(el.events) >= el.capacity {
		// Drop the oldest quarter at once so trimming stays amortized.
		drop := el.capacity / 4
		if drop == 0 {
			drop = 1
		}
		el.events = append(el.events[:0], el.events[drop:]...)
	}
	el.events = append(el.events, event)

	if el.persistCh != nil && !el.closed {
		// Sent under mu so the writer sees events in Seq order.
		el.persistCh <- event
	}
	return event
}

// Since returns retained events with Seq greater than seq, oldest first.
func (el *EventLog) Since(seq uint64) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	// Seqs are contiguous within the retained window.
	if len(el.events) == 0 {
		return nil
	}
	first := el.events[0].Seq
	start := 0
	if seq >= first {
		start = int(seq - first + 1)
	}
	if start >= len(el.events) {
		return nil
	}
	out := make([]GameEvent, len(el.events)-start)
	copy(out, el.events[start:])
	return out
}

// LastSeq returns the sequence number of the newest event, 0 if none.
func (el *EventLog) LastSeq() uint64 {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.nextSeq - 1
}

// GetByActor returns all retained events performed by a specific actor.
func (el *EventLog) GetByActor(actorID string) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.ActorID == actorID {
			result = append(result, e)
		}
	}
	return result
}

// GetByType returns all retained events of a type.
func (el *EventLog) GetByType(eventType EventType) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns a copy of every retained event.
func (el *EventLog) Replay() []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	out := make([]GameEvent, len(el.events))
	copy(out, el.events)
	return out
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
