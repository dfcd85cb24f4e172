// Package store provides the durable sinks for session events: an
// append-only JSONL file per participant (the primary log) and a SQLite
// archive of finalized sessions for post-hoc study analysis.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/revlab/sessiond/internal/event"
)

// JSONL appends events as JSON lines to <dir>/<participant_id>.jsonl.
type JSONL struct {
	dir string
	mu  sync.Mutex
}

// NewJSONL creates the log directory if needed.
func NewJSONL(dir string) (*JSONL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}
	return &JSONL{dir: dir}, nil
}

// Append writes one event as a JSON line to the participant's log file.
func (s *JSONL) Append(ev event.Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(ev.ParticipantID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Load reads all events for a participant in file order. A missing file is
// an empty log, not an error. Blank lines are skipped.
func (s *JSONL) Load(participantID string) ([]event.Event, error) {
	f, err := os.Open(s.path(participantID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var events []event.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev event.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("parse log line: %w", err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	return events, nil
}

func (s *JSONL) path(participantID string) string {
	return filepath.Join(s.dir, participantID+".jsonl")
}
