package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Database wraps the SQL database connection
type Database struct {
	db *sql.DB
}

// New opens the database file and initializes the schema
func New(dbPath string) (*Database, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serialises writers inside the process; busy_timeout
	// and withRetry cover other processes sharing the file.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{db: db}

	if err := database.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return database, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// GetDB returns the underlying database connection
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// Ping verifies database connectivity
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// initSchema creates the database tables
func (d *Database) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		code TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS participants (
		code TEXT NOT NULL,
		slot TEXT NOT NULL CHECK (slot IN ('a', 'b')),
		name TEXT NOT NULL,
		chat_id INTEGER NOT NULL,
		current_index INTEGER NOT NULL DEFAULT 0,
		joined_at INTEGER NOT NULL,
		PRIMARY KEY (code, slot),
		FOREIGN KEY (code) REFERENCES sessions(code) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS answers (
		code TEXT NOT NULL,
		slot TEXT NOT NULL,
		question_index INTEGER NOT NULL,
		answer BLOB NOT NULL,
		answered_at INTEGER NOT NULL,
		PRIMARY KEY (code, slot, question_index),
		FOREIGN KEY (code, slot) REFERENCES participants(code, slot) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS chat_states (
		chat_id INTEGER PRIMARY KEY,
		step TEXT NOT NULL,
		slot TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	CREATE INDEX IF NOT EXISTS idx_chat_states_updated ON chat_states(updated_at);
	CREATE INDEX IF NOT EXISTS idx_participants_chat ON participants(chat_id);
	`

	_, err := d.db.Exec(schema)
	return err
}
