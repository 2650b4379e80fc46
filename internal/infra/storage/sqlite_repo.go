package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const eventColumns = `id, save_id, seq, timestamp, event_type, actor_id, target_id, payload`

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event GameEvent) error {
	payload := event.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.SaveID, int64(event.Seq), event.Timestamp.UnixNano(), event.EventType,
		event.ActorID, event.TargetID, string(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]GameEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []GameEvent
	for rows.Next() {
		var e GameEvent
		var seq, ts int64
		var payloadStr string
		err := rows.Scan(
			&e.ID, &e.SaveID, &seq, &ts, &e.EventType,
			&e.ActorID, &e.TargetID, &payloadStr,
		)
		if err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		e.Timestamp = time.Unix(0, ts).UTC()
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) GetBySaveID(ctx context.Context, saveID string) ([]GameEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE save_id = ? ORDER BY timestamp ASC, seq ASC`
	return r.getMany(ctx, query, saveID)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, saveID string, eventType string) ([]GameEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE save_id = ? AND event_type = ? ORDER BY timestamp ASC, seq ASC`
	return r.getMany(ctx, query, saveID, eventType)
}

func (r *SQLiteEventRepository) GetSince(ctx context.Context, saveID string, since time.Time) ([]GameEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE save_id = ? AND timestamp >= ? ORDER BY timestamp ASC, seq ASC`
	return r.getMany(ctx, query, saveID, since.UnixNano())
}

// ---------------------------------------------------------
// SQLiteSaveRepository
// ---------------------------------------------------------

type SQLiteSaveRepository struct {
	db *sql.DB
}

func NewSQLiteSaveRepository(db *sql.DB) *SQLiteSaveRepository {
	return &SQLiteSaveRepository{db: db}
}

func (r *SQLiteSaveRepository) Upsert(ctx context.Context, rec SaveRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	query := `
		INSERT INTO saves (save_id, version, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(save_id) DO UPDATE SET
			version=excluded.version,
			data=excluded.data,
			updated_at=excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, rec.SaveID, rec.Version, string(rec.Data), rec.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert save %s: %w", rec.SaveID, err)
	}
	return nil
}

func (r *SQLiteSaveRepository) Get(ctx context.Context, saveID string) (*SaveRecord, error) {
	query := `SELECT save_id, version, data, updated_at FROM saves WHERE save_id = ?`
	var rec SaveRecord
	var data string
	var updated int64
	err := r.db.QueryRowContext(ctx, query, saveID).Scan(&rec.SaveID, &rec.Version, &data, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Data = []byte(data)
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	return &rec, nil
}
