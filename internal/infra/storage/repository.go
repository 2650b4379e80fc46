// Package storage provides the persistence layer for the studio server.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"time"
)

// GameEvent mirrors the ledger event structure for persistence.
// The domain packages should NOT import this; use interfaces instead.
type GameEvent struct {
	ID        string                 `json:"id" db:"id"`
	SaveID    string                 `json:"save_id" db:"save_id"`
	Seq       uint64                 `json:"seq" db:"seq"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	EventType string                 `json:"event_type" db:"event_type"`
	ActorID   string                 `json:"actor_id" db:"actor_id"`
	TargetID  string                 `json:"target_id" db:"target_id"`
	Payload   map[string]interface{} `json:"payload" db:"payload"`
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event GameEvent) error

	// GetBySaveID retrieves all events for one save, oldest first.
	GetBySaveID(ctx context.Context, saveID string) ([]GameEvent, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, saveID string, eventType string) ([]GameEvent, error)

	// GetSince retrieves events at or after a point in time.
	GetSince(ctx context.Context, saveID string, since time.Time) ([]GameEvent, error)
}

// SaveRecord is one persisted save slot. Data is the encoded save.
type SaveRecord struct {
	SaveID    string    `json:"save_id" db:"save_id"`
	Version   string    `json:"version" db:"version"`
	Data      []byte    `json:"data" db:"data"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SaveRepository defines the interface for save slots.
type SaveRepository interface {
	// Upsert writes the slot, replacing any previous contents.
	Upsert(ctx context.Context, rec SaveRecord) error

	// Get returns the slot, or nil if it was never written.
	Get(ctx context.Context, saveID string) (*SaveRecord, error)
}
