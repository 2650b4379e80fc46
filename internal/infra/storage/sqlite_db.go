package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/circle-gon/nyigj-2024/server/internal/platform/optimization"
)

// InitSQLite opens the local SQLite database and creates the schemas for save
// slots and the event ledger. A nil tuning uses the default profile.
func InitSQLite(dbPath string, tuning *optimization.Config) (*sql.DB, error) {
	if tuning == nil {
		tuning = optimization.DefaultConfig()
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(tuning.DBMaxOpenConns)
	db.SetMaxIdleConns(tuning.DBMaxIdleConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := createSchemas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return db, nil
}

// Timestamps are stored as unix nanoseconds so range queries compare numerically.
func createSchemas(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS saves (
			save_id TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			data TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			save_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			timestamp INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			payload TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_save_id ON events(save_id, timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_events_event_type ON events(event_type);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}
