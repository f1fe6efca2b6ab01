// Package audit persists a durable, queryable record of a run's events to a
// sqlite database under <repo>/.operon/audit.db. A run records approval asks
// and outcomes, phase entries, committed writes, loop detections and its
// final outcome; the phase-handoff and rollback event types are defined but
// no caller records them. The log supplements
// the in-memory observations ring with a record that survives the process.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// EventType enumerates the kinds of events the audit log records.
type EventType string

const (
	EventApprovalAsk      EventType = "approval_ask"
	EventApprovalApproved EventType = "approval_approved"
	EventApprovalRejected EventType = "approval_rejected"
	EventPhaseEnter       EventType = "phase_enter"
	EventPhaseHandoff     EventType = "phase_handoff"
	EventWriteCommitted   EventType = "write_committed"
	EventRollbackStart    EventType = "rollback_start"
	EventRollbackComplete EventType = "rollback_complete"
	EventLoopDetected     EventType = "loop_detected"
	EventRunDone          EventType = "run_done"
	EventRunFailed        EventType = "run_failed"
)

// Log is a handle on the run's sqlite audit database.
type Log struct {
	db *sql.DB
}

func dbPath(repoRoot string) string {
	return filepath.Join(repoRoot, ".operon", "audit.db")
}

// Open creates (if absent) and connects to <repo>/.operon/audit.db.
func Open(repoRoot string) (*Log, error) {
	path := dbPath(repoRoot)
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		ts INTEGER NOT NULL,
		file TEXT,
		detail TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}
	return &Log{db: db}, nil
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}

// Close releases the underlying sqlite connection.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record appends one event to the log.
func (l *Log) Record(runID string, event EventType, file, detail string) error {
	_, err := l.db.Exec(
		`INSERT INTO events (run_id, event_type, ts, file, detail) VALUES (?, ?, ?, ?, ?)`,
		runID, string(event), time.Now().Unix(), file, detail,
	)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// Event is one persisted audit row, as returned by ForRun.
type Event struct {
	ID        int64
	RunID     string
	EventType EventType
	Timestamp int64
	File      string
	Detail    string
}

// ForRun returns every event recorded for runID, in insertion order.
func (l *Log) ForRun(runID string) ([]Event, error) {
	rows, err := l.db.Query(
		`SELECT id, run_id, event_type, ts, file, detail FROM events WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var et string
		var file, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &et, &e.Timestamp, &file, &detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.EventType = EventType(et)
		e.File = file.String
		e.Detail = detail.String
		out = append(out, e)
	}
	return out, rows.Err()
}
