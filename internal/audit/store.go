package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/procwatch/procwatch/internal/model"
)

// timeLayout is the ISO-8601 form stored in the timestamp column.
// Insertion order (the id column), not this timestamp, is the ordering
// key: wall-clock values may collide at sub-second granularity.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Record is one adjudicated event. Records are immutable after insert;
// ID is assigned by the store.
type Record struct {
	ID          int64
	Timestamp   time.Time
	EventType   model.EventType
	ProcessName string
	PID         int
	PPID        int
	Path        string
	Command     string
	Destination string
	Allowed     bool
	Reason      string
}

// Counts aggregates allow/deny totals. Total == Allowed + Denied always.
type Counts struct {
	Total   int64 `json:"total"`
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

// Store is the append-only audit trail, backed by SQLite so records
// survive process restarts.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the audit database at path and applies the
// schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}

	// Single connection: SQLite is the single-writer discipline.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp    TEXT NOT NULL,
		event_type   TEXT NOT NULL,
		process_name TEXT,
		pid          INTEGER NOT NULL,
		ppid         INTEGER NOT NULL,
		path         TEXT,
		command      TEXT,
		destination  TEXT,
		allowed      INTEGER NOT NULL,
		reason       TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp  ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_event_type ON events(event_type);
	CREATE INDEX IF NOT EXISTS idx_events_allowed    ON events(allowed);
	CREATE INDEX IF NOT EXISTS idx_events_pid        ON events(pid);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append records one adjudicated event. It is fire-and-forget: failures
// are logged for operator visibility and never propagated, so a broken
// audit trail cannot block or deny real operations.
func (s *Store) Append(ctx context.Context, rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	allowed := 0
	if rec.Allowed {
		allowed = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (timestamp, event_type, process_name, pid, ppid, path, command, destination, allowed, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.UTC().Format(timeLayout),
		string(rec.EventType),
		nullable(rec.ProcessName),
		rec.PID,
		rec.PPID,
		nullable(rec.Path),
		nullable(rec.Command),
		nullable(rec.Destination),
		allowed,
		nullable(rec.Reason),
	)
	if err != nil {
		s.logger.Error("audit append failed",
			"event_type", rec.EventType, "pid", rec.PID, "error", err)
	}
}

// Recent returns up to limit records, most recent first. Ordering is by
// insertion id, never timestamp.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, event_type, process_name, pid, ppid, path, command, destination, allowed, reason
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var ts, eventType string
		var processName, path, command, dest, reason sql.NullString
		var allowed int
		if err := rows.Scan(&rec.ID, &ts, &eventType, &processName, &rec.PID, &rec.PPID,
			&path, &command, &dest, &allowed, &reason); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		rec.EventType = model.EventType(eventType)
		rec.ProcessName = processName.String
		rec.Path = path.String
		rec.Command = command.String
		rec.Destination = dest.String
		rec.Reason = reason.String
		rec.Allowed = allowed != 0
		if parsed, err := time.Parse(timeLayout, ts); err == nil {
			rec.Timestamp = parsed
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AggregateCounts returns total/allowed/denied counters over the whole
// trail.
func (s *Store) AggregateCounts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(allowed), 0) FROM events`,
	).Scan(&c.Total, &c.Allowed)
	if err != nil {
		return Counts{}, fmt.Errorf("audit: aggregate: %w", err)
	}
	c.Denied = c.Total - c.Allowed
	return c, nil
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("audit: clear: %w", err)
	}
	return nil
}

// Close closes the backing database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
