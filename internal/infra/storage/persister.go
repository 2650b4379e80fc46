package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/circle-gon/nyigj-2024/server/internal/events"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/logger"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/metrics"
)

const writeTimeout = 5 * time.Second

// LedgerPersister writes game events through to an EventRepository.
// UPDATE ticks are not persisted; they are reproducible from the save.
type LedgerPersister struct {
	repo    EventRepository
	saveID  string
	logger  *logger.Logger
	metrics *metrics.Collector
}

// NewLedgerPersister creates a persister for one save slot.
func NewLedgerPersister(repo EventRepository, saveID string, log *logger.Logger, m *metrics.Collector) *LedgerPersister {
	if m == nil {
		m = metrics.Get()
	}
	return &LedgerPersister{repo: repo, saveID: saveID, logger: log, metrics: m}
}

// Append implements events.EventPersister.
func (p *LedgerPersister) Append(event events.GameEvent) error {
	if event.Type == events.EventTypeUpdate {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	start := time.Now()
	err := p.repo.Append(ctx, ToRecord(p.saveID, event))
	p.metrics.RecordEventWrite(time.Since(start), err)
	if err != nil {
		p.logger.Error("failed to persist event", "event_id", event.ID, "type", event.Type, "err", err)
	}
	return err
}

// ToRecord converts a ledger event to its stored form. The payload is
// flattened through JSON.
func ToRecord(saveID string, event events.GameEvent) GameEvent {
	rec := GameEvent{
		ID:        event.ID,
		SaveID:    saveID,
		Seq:       event.Seq,
		Timestamp: event.Timestamp,
		EventType: string(event.Type),
		ActorID:   event.ActorID,
		TargetID:  event.TargetID,
		Payload:   map[string]interface{}{},
	}
	if event.Payload != nil {
		if b, err := json.Marshal(event.Payload); err == nil {
			_ = json.Unmarshal(b, &rec.Payload)
		}
	}
	return rec
}
