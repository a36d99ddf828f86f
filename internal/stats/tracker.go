// Package stats persists the conversion counter shown by `morph stats` and
// the HTTP API.
package stats

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// SQLite driver for database/sql
	_ "github.com/mattn/go-sqlite3"
)

// Totals is the persisted conversion summary.
type Totals struct {
	Conversions    int64      `json:"conversions"`
	LastConversion *time.Time `json:"last_conversion,omitempty"`
}

// Tracker stores conversion statistics in a SQLite database.
type Tracker struct {
	db *sql.DB
}

// Open opens or creates the database at dbPath.
func Open(dbPath string) (*Tracker, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	tracker := &Tracker{db: db}
	if err := tracker.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return tracker, nil
}

func (t *Tracker) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversion_stats (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		total INTEGER NOT NULL DEFAULT 0,
		last_conversion TIMESTAMP
	);

	INSERT OR IGNORE INTO conversion_stats (id, total) VALUES (1, 0);
	`

	if _, err := t.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Record counts one conversion finished at at.
func (t *Tracker) Record(at time.Time) error {
	return t.Add(1, at)
}

// Add counts n conversions, the newest of which finished at at.
func (t *Tracker) Add(n int64, at time.Time) error {
	_, err := t.db.Exec(`
		UPDATE conversion_stats
		SET total = total + ?, last_conversion = ?
		WHERE id = 1
	`, n, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record conversions: %w", err)
	}
	return nil
}

func (t *Tracker) Totals() (Totals, error) {
	var totals Totals
	var last sql.NullTime

	err := t.db.QueryRow(`
		SELECT total, last_conversion FROM conversion_stats WHERE id = 1
	`).Scan(&totals.Conversions, &last)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to read totals: %w", err)
	}

	if last.Valid {
		ts := last.Time
		totals.LastConversion = &ts
	}
	return totals, nil
}

// Reset zeroes the counter.
func (t *Tracker) Reset() error {
	if _, err := t.db.Exec(`UPDATE conversion_stats SET total = 0, last_conversion = NULL WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to reset stats: %w", err)
	}
	return nil
}

func (t *Tracker) Close() error {
	return t.db.Close()
}
