package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/revlab/sessiond/internal/event"
	"github.com/revlab/sessiond/internal/session"
)

// Archive stores finalized sessions in SQLite so reports for past
// participants remain available after their in-memory session is gone.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (creating if needed) the archive database.
func OpenArchive(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	a := &Archive{db: db}
	if err := a.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  participant_id TEXT PRIMARY KEY,
  participant_name TEXT,
  started_at TEXT NOT NULL,
  ended_at TEXT NOT NULL,
  event_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  participant_id TEXT NOT NULL,
  timestamp TEXT NOT NULL,
  participant_name TEXT,
  condition TEXT,
  task_id TEXT,
  section TEXT,
  event_type TEXT NOT NULL,
  event_value TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_participant ON events(participant_id);
`
	if _, err := a.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create archive schema: %w", err)
	}
	return nil
}

// ArchiveSession writes a finalized session snapshot. Idempotent: archiving
// the same participant again replaces the previous rows, so a repeated
// finalize is harmless.
func (a *Archive) ArchiveSession(ctx context.Context, snap session.Snapshot) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	const upsert = `
INSERT INTO sessions (participant_id, participant_name, started_at, ended_at, event_count)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(participant_id) DO UPDATE SET
  participant_name=excluded.participant_name,
  started_at=excluded.started_at,
  ended_at=excluded.ended_at,
  event_count=excluded.event_count;
`
	if _, err := tx.ExecContext(ctx, upsert,
		snap.ParticipantID,
		snap.ParticipantName,
		snap.StartedAt.UTC().Format(time.RFC3339Nano),
		snap.EndedAt.UTC().Format(time.RFC3339Nano),
		len(snap.Events),
	); err != nil {
		return fmt.Errorf("archive session row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE participant_id = ?`, snap.ParticipantID); err != nil {
		return fmt.Errorf("clear archived events: %w", err)
	}

	const insert = `
INSERT INTO events (participant_id, timestamp, participant_name, condition, task_id, section, event_type, event_value)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`
	for _, ev := range snap.Events {
		value := ""
		if ev.Value != nil {
			raw, err := json.Marshal(ev.Value)
			if err == nil {
				value = string(raw)
			}
		}
		if _, err := tx.ExecContext(ctx, insert,
			ev.ParticipantID,
			ev.Timestamp.UTC().Format(time.RFC3339Nano),
			ev.ParticipantName,
			ev.Condition,
			ev.TaskID,
			ev.Section,
			ev.Type,
			value,
		); err != nil {
			return fmt.Errorf("archive event row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

// LoadSession reconstructs an archived session snapshot. Returns sql.ErrNoRows
// if the participant was never archived.
func (a *Archive) LoadSession(ctx context.Context, participantID string) (session.Snapshot, error) {
	var snap session.Snapshot
	var startedAt, endedAt string
	err := a.db.QueryRowContext(ctx,
		`SELECT participant_id, participant_name, started_at, ended_at FROM sessions WHERE participant_id = ?`,
		participantID,
	).Scan(&snap.ParticipantID, &snap.ParticipantName, &startedAt, &endedAt)
	if err != nil {
		return session.Snapshot{}, err
	}
	if snap.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return session.Snapshot{}, fmt.Errorf("parse started_at: %w", err)
	}
	if snap.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
		return session.Snapshot{}, fmt.Errorf("parse ended_at: %w", err)
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT timestamp, participant_name, condition, task_id, section, event_type, event_value
		 FROM events WHERE participant_id = ? ORDER BY id`,
		participantID,
	)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("query archived events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev event.Event
		var ts, value string
		if err := rows.Scan(&ts, &ev.ParticipantName, &ev.Condition, &ev.TaskID, &ev.Section, &ev.Type, &value); err != nil {
			return session.Snapshot{}, fmt.Errorf("scan archived event: %w", err)
		}
		ev.ParticipantID = participantID
		if ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return session.Snapshot{}, fmt.Errorf("parse event timestamp: %w", err)
		}
		if value != "" {
			if err := json.Unmarshal([]byte(value), &ev.Value); err != nil {
				return session.Snapshot{}, fmt.Errorf("parse event value: %w", err)
			}
		}
		snap.Events = append(snap.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return session.Snapshot{}, err
	}
	return snap, nil
}

// Participants lists all archived participant ids.
func (a *Archive) Participants(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT participant_id FROM sessions ORDER BY participant_id`)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
