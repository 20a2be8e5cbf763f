// internal/state/db.go
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Transition is one evaluated trigger event and the batch it caused.
type Transition struct {
	ID         int64
	Session    string // one daemon run
	Context    string
	Trigger    string
	Activity   string // active, inactive
	Observed   string
	Counter    int
	Decision   string // enter, leave
	Errors     string // joined action errors, empty on success
	Timestamp  time.Time
	DurationMs int64
}

// DB wraps the SQLite database holding the transition history.
type DB struct {
	db *sql.DB
}

const stateSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS transitions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session TEXT NOT NULL,
    context_name TEXT NOT NULL,
    trigger_name TEXT NOT NULL,
    activity TEXT NOT NULL,
    observed TEXT,
    counter INTEGER NOT NULL,
    decision TEXT NOT NULL,
    errors TEXT,
    occurred_at DATETIME NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transitions_context ON transitions(context_name);
CREATE INDEX IF NOT EXISTS idx_transitions_occurred ON transitions(occurred_at);
`

// NewSession returns a fresh session id for a daemon run.
func NewSession() string {
	return uuid.NewString()
}

// Open opens or creates a history database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Drivers of several contexts write concurrently.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := db.Exec(stateSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count)
	if count == 0 {
		db.Exec("INSERT INTO schema_version (version) VALUES (1)")
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// RecordTransition stores a transition and returns its ID.
func (d *DB) RecordTransition(t Transition) (int64, error) {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}

	result, err := d.db.Exec(`
		INSERT INTO transitions
		(session, context_name, trigger_name, activity, observed, counter, decision, errors, occurred_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Session, t.Context, t.Trigger, t.Activity, t.Observed, t.Counter,
		t.Decision, t.Errors, t.Timestamp.UTC(), t.DurationMs,
	)
	if err != nil {
		return 0, fmt.Errorf("recording transition: %w", err)
	}
	return result.LastInsertId()
}

// GetHistory returns the newest transitions first, optionally filtered by
// context name. A limit of 0 returns everything.
func (d *DB) GetHistory(contextName string, limit int) ([]Transition, error) {
	query := "SELECT id, session, context_name, trigger_name, activity, observed, counter, decision, errors, occurred_at, duration_ms FROM transitions WHERE 1=1"
	var args []any

	if contextName != "" {
		query += " AND context_name = ?"
		args = append(args, contextName)
	}

	query += " ORDER BY occurred_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var records []Transition
	for rows.Next() {
		var t Transition
		var observed, errStr sql.NullString
		if err := rows.Scan(&t.ID, &t.Session, &t.Context, &t.Trigger, &t.Activity,
			&observed, &t.Counter, &t.Decision, &errStr, &t.Timestamp, &t.DurationMs); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		t.Observed = observed.String
		t.Errors = errStr.String
		records = append(records, t)
	}
	return records, rows.Err()
}

// LastTransition returns the most recent transition of a context, or nil
// when there is none.
func (d *DB) LastTransition(contextName string) (*Transition, error) {
	records, err := d.GetHistory(contextName, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// Contexts returns the distinct context names present in the history.
func (d *DB) Contexts() ([]string, error) {
	rows, err := d.db.Query("SELECT DISTINCT context_name FROM transitions ORDER BY context_name")
	if err != nil {
		return nil, fmt.Errorf("querying contexts: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Cleanup removes transitions older than the specified number of days.
func (d *DB) Cleanup(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, errors.New("retention must be at least one day")
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays).UTC()
	result, err := d.db.Exec("DELETE FROM transitions WHERE occurred_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up history: %w", err)
	}
	return result.RowsAffected()
}
