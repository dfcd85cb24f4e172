// Package session owns the in-memory event log for one participant's sitting:
// append-only, timestamp-ordered recording with fail-soft persistence, an
// idempotent finalize, and point-in-time snapshots for reporting.
package session

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/revlab/sessiond/internal/event"
	"github.com/revlab/sessiond/internal/metrics"
)

// Store is the durable sink for recorded events. Append failures never
// interrupt recording; the in-memory log stays authoritative.
type Store interface {
	Append(ev event.Event) error
}

// DefaultSection is the section a session starts in.
const DefaultSection = "Home"

// NewID returns a short, human-friendly random participant id (8-char hex).
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// Session is one continuous period of dashboard use by a single participant.
// It exclusively owns its event log for its lifetime.
type Session struct {
	mu sync.Mutex

	id              string
	participantName string
	participantInfo string

	taskID  string // active task
	section string
	aiMode  bool

	startedAt time.Time
	endedAt   time.Time // zero until Finalize
	events    []event.Event

	store Store            // may be nil (memory only)
	clock func() time.Time // test seam, defaults to time.Now
}

// New creates a session that starts now.
func New(id, participantName, participantInfo, taskID string, store Store) *Session {
	return newSession(id, participantName, participantInfo, taskID, store, time.Now)
}

func newSession(id, participantName, participantInfo, taskID string, store Store, clock func() time.Time) *Session {
	return &Session{
		id:              id,
		participantName: participantName,
		participantInfo: participantInfo,
		taskID:          taskID,
		section:         DefaultSection,
		startedAt:       clock().UTC(),
		store:           store,
		clock:           clock,
	}
}

// ID returns the participant/session identifier.
func (s *Session) ID() string { return s.id }

// StartedAt returns the session start time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// RecordOutcome reports what happened to a single Record call. Record never
// fails: a persistence error is surfaced here as a warning while the
// in-memory record is kept.
type RecordOutcome struct {
	Event         event.Event
	Recognized    bool
	AfterFinalize bool
	PersistErr    error
}

// Record appends an event with the current timestamp and the session's
// identity. Unknown event types are accepted (reporting buckets them as
// unclassified). Timestamps never move backwards: a clock regression is
// clamped to the previous event's timestamp.
//
// A few canonical types also update session state: section_change and
// mode_switch adjust the section/condition stamped on subsequent events, and
// task_start switches the active task.
func (s *Session) Record(typ, taskID string, value map[string]interface{}) RecordOutcome {
	s.mu.Lock()

	now := s.clock().UTC()
	if n := len(s.events); n > 0 && now.Before(s.events[n-1].Timestamp) {
		now = s.events[n-1].Timestamp
	}

	value = scrubValue(value)
	s.applyStateChange(typ, taskID, value)

	if taskID == "" {
		taskID = s.taskID
	}
	condition := event.ConditionManual
	if s.aiMode {
		condition = event.ConditionAI
	}

	ev := event.Event{
		Timestamp:       now,
		ParticipantID:   s.id,
		ParticipantName: s.participantName,
		Condition:       condition,
		TaskID:          taskID,
		Section:         s.section,
		Type:            typ,
		Value:           value,
	}
	s.events = append(s.events, ev)
	afterFinalize := !s.endedAt.IsZero()

	// The durable append happens under the lock: the store is local and
	// synchronous, and the persisted log must preserve the in-memory order.
	var persistErr error
	if s.store != nil {
		persistErr = s.store.Append(ev)
	}
	s.mu.Unlock()

	recognized := event.Recognized(typ)
	label := typ
	if !recognized {
		label = "unclassified"
		metrics.EventsUnclassified.Inc()
	}
	metrics.EventsRecorded.WithLabelValues(label).Inc()

	out := RecordOutcome{Event: ev, Recognized: recognized, AfterFinalize: afterFinalize}
	if persistErr != nil {
		metrics.PersistFailures.Inc()
		slog.Warn("event persist failed, in-memory record kept",
			"participant", s.id, "type", typ, "err", persistErr)
		out.PersistErr = persistErr
	}
	return out
}

// applyStateChange updates the session's mutable state for the event types
// that carry it. Called with s.mu held.
func (s *Session) applyStateChange(typ, taskID string, value map[string]interface{}) {
	switch typ {
	case event.SectionChange:
		if sec, ok := value["section"].(string); ok && sec != "" {
			s.section = sec
		}
	case event.ModeSwitch:
		if mode, ok := value["ai_mode"].(bool); ok {
			s.aiMode = mode
		}
	case event.TaskStart:
		if taskID != "" {
			s.taskID = taskID
		}
	}
}

// Finalize marks the session closed and returns the end time. Idempotent:
// repeated calls return the end time set by the first.
func (s *Session) Finalize() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endedAt.IsZero() {
		s.endedAt = s.clock().UTC()
		if n := len(s.events); n > 0 && s.endedAt.Before(s.events[n-1].Timestamp) {
			s.endedAt = s.events[n-1].Timestamp
		}
		metrics.SessionsFinalized.Inc()
	}
	return s.endedAt
}

// Finalized reports whether Finalize has been called.
func (s *Session) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.endedAt.IsZero()
}

// Snapshot is a point-in-time copy of a session's log, safe to aggregate
// without holding the session's lock.
type Snapshot struct {
	ParticipantID   string
	ParticipantName string
	StartedAt       time.Time
	EndedAt         time.Time // zero if not finalized
	Events          []event.Event
}

// Snapshot copies the current event sequence and session metadata.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]event.Event, len(s.events))
	copy(events, s.events)
	return Snapshot{
		ParticipantID:   s.id,
		ParticipantName: s.participantName,
		StartedAt:       s.startedAt,
		EndedAt:         s.endedAt,
		Events:          events,
	}
}

// credentialFields are payload keys that must never reach the log. API keys
// are held in process memory only; this guards against a caller leaking one
// through a free-form payload.
var credentialFields = map[string]struct{}{
	"api_key":                  {},
	"apikey":                   {},
	"x-api-key":                {},
	"token":                    {},
	"access_token":             {},
	"authorization":            {},
	"secret":                   {},
	"password":                 {},
	"gemini_api_key":           {},
	"semantic_scholar_api_key": {},
}

func scrubValue(value map[string]interface{}) map[string]interface{} {
	if value == nil {
		return nil
	}
	out := make(map[string]interface{}, len(value))
	for k, v := range value {
		if _, bad := credentialFields[strings.ToLower(k)]; bad {
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = scrubValue(nested)
			continue
		}
		out[k] = v
	}
	return out
}
