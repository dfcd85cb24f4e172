package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/revlab/sessiond/internal/event"
)

// fakeClock hands out timestamps one second apart.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) tick() time.Time {
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

func newTestSession(store Store) (*Session, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	s := newSession("p1", "Alice", "", "T1", store, clock.tick)
	return s, clock
}

// failStore always fails its durable append.
type failStore struct {
	err error
}

func (f *failStore) Append(event.Event) error { return f.err }

// memStore records appended events.
type memStore struct {
	events []event.Event
}

func (m *memStore) Append(ev event.Event) error {
	m.events = append(m.events, ev)
	return nil
}

func TestRecordCountsEveryCall(t *testing.T) {
	s, _ := newTestSession(nil)
	kinds := []string{
		event.FilterApplied, event.PaperOpen, event.ChatMessageSent,
		"frobnicate", event.SearchQuery,
	}
	for _, k := range kinds {
		s.Record(k, "", nil)
	}
	snap := s.Snapshot()
	if len(snap.Events) != len(kinds) {
		t.Fatalf("got %d events, want %d", len(snap.Events), len(kinds))
	}
}

func TestRecordTimestampsNonDecreasing(t *testing.T) {
	s, clock := newTestSession(nil)
	s.Record(event.SearchQuery, "", nil)
	s.Record(event.PaperOpen, "", nil)
	// Simulate a clock regression.
	clock.now = clock.now.Add(-time.Hour)
	s.Record(event.PaperSelect, "", nil)
	s.Record(event.TaskSubmit, "", nil)

	snap := s.Snapshot()
	for i := 1; i < len(snap.Events); i++ {
		if snap.Events[i].Timestamp.Before(snap.Events[i-1].Timestamp) {
			t.Fatalf("event %d at %v is before event %d at %v",
				i, snap.Events[i].Timestamp, i-1, snap.Events[i-1].Timestamp)
		}
	}
}

func TestRecordUnrecognizedTypeAccepted(t *testing.T) {
	s, _ := newTestSession(nil)
	out := s.Record("frobnicate", "", nil)
	if out.Recognized {
		t.Error("frobnicate should not be recognized")
	}
	if out.PersistErr != nil {
		t.Errorf("unexpected persist error: %v", out.PersistErr)
	}
	if got := len(s.Snapshot().Events); got != 1 {
		t.Fatalf("got %d events, want 1", got)
	}
}

func TestRecordPersistFailureKeepsMemoryRecord(t *testing.T) {
	wantErr := errors.New("disk full")
	s, _ := newTestSession(&failStore{err: wantErr})

	out := s.Record(event.SearchQuery, "", map[string]interface{}{"query": "vit"})
	if !errors.Is(out.PersistErr, wantErr) {
		t.Fatalf("PersistErr = %v, want %v", out.PersistErr, wantErr)
	}
	snap := s.Snapshot()
	if len(snap.Events) != 1 {
		t.Fatalf("in-memory record lost: got %d events", len(snap.Events))
	}
	if snap.Events[0].Value["query"] != "vit" {
		t.Errorf("payload lost: %v", snap.Events[0].Value)
	}
}

func TestRecordPersistOrderMatchesMemory(t *testing.T) {
	store := &memStore{}
	s, _ := newTestSession(store)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				s.Record(event.PaperOpen, "", nil)
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if len(store.events) != len(snap.Events) {
		t.Fatalf("persisted %d events, in-memory %d", len(store.events), len(snap.Events))
	}
	for i := range snap.Events {
		if !store.events[i].Timestamp.Equal(snap.Events[i].Timestamp) {
			t.Fatalf("persisted order diverges at %d: store %v, memory %v",
				i, store.events[i].Timestamp, snap.Events[i].Timestamp)
		}
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	s, _ := newTestSession(nil)
	s.Record(event.TaskStart, "T1", nil)

	first := s.Finalize()
	for i := 0; i < 3; i++ {
		if got := s.Finalize(); !got.Equal(first) {
			t.Fatalf("Finalize call %d = %v, want %v", i+2, got, first)
		}
	}
	if !s.Finalized() {
		t.Error("Finalized() = false after Finalize")
	}
}

func TestRecordAfterFinalizeFlagged(t *testing.T) {
	s, _ := newTestSession(nil)
	s.Finalize()
	out := s.Record(event.PaperOpen, "", nil)
	if !out.AfterFinalize {
		t.Error("AfterFinalize = false, want true")
	}
	if got := len(s.Snapshot().Events); got != 1 {
		t.Fatalf("event after finalize not recorded: %d events", got)
	}
}

func TestStateChangesStampSubsequentEvents(t *testing.T) {
	s, _ := newTestSession(nil)

	s.Record(event.SearchQuery, "", nil)
	s.Record(event.ModeSwitch, "", map[string]interface{}{"ai_mode": true})
	s.Record(event.SectionChange, "", map[string]interface{}{"section": "Papers"})
	s.Record(event.PaperOpen, "", nil)

	snap := s.Snapshot()
	if got := snap.Events[0].Condition; got != event.ConditionManual {
		t.Errorf("first event condition = %q, want %q", got, event.ConditionManual)
	}
	last := snap.Events[len(snap.Events)-1]
	if last.Condition != event.ConditionAI {
		t.Errorf("post-switch condition = %q, want %q", last.Condition, event.ConditionAI)
	}
	if last.Section != "Papers" {
		t.Errorf("post-change section = %q, want Papers", last.Section)
	}
}

func TestRecordUsesActiveTask(t *testing.T) {
	s, _ := newTestSession(nil)
	s.Record(event.TaskStart, "T2", nil)
	out := s.Record(event.PaperOpen, "", nil)
	if out.Event.TaskID != "T2" {
		t.Errorf("TaskID = %q, want T2", out.Event.TaskID)
	}
	// An explicit task id wins over the active one.
	out = s.Record(event.PaperSelect, "T1", nil)
	if out.Event.TaskID != "T1" {
		t.Errorf("TaskID = %q, want T1", out.Event.TaskID)
	}
}

func TestRecordScrubsCredentialFields(t *testing.T) {
	store := &memStore{}
	s, _ := newTestSession(store)

	out := s.Record(event.AICall, "", map[string]interface{}{
		"feature": "qa",
		"api_key": "sk-secret",
		"nested":  map[string]interface{}{"Authorization": "Bearer xyz", "ok": true},
	})

	for _, ev := range []event.Event{out.Event, store.events[0]} {
		if _, leaked := ev.Value["api_key"]; leaked {
			t.Fatal("api_key leaked into event payload")
		}
		nested := ev.Value["nested"].(map[string]interface{})
		if _, leaked := nested["Authorization"]; leaked {
			t.Fatal("Authorization leaked into nested payload")
		}
		if nested["ok"] != true {
			t.Error("non-credential nested field dropped")
		}
		if ev.Value["feature"] != "qa" {
			t.Error("non-credential field dropped")
		}
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(nil)
	s := m.Start("Alice", "grad student", "T1")

	if s.ID() == "" || len(s.ID()) != 8 {
		t.Errorf("participant id = %q, want 8-char hex", s.ID())
	}
	got, err := m.Get(s.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != s {
		t.Error("Get returned a different session")
	}
	// Start records the session_start event.
	snap := s.Snapshot()
	if len(snap.Events) != 1 || snap.Events[0].Type != event.SessionStart {
		t.Fatalf("expected one session_start event, got %+v", snap.Events)
	}

	if _, err := m.Get("missing"); err == nil {
		t.Error("Get(missing) should fail")
	}

	m.FinalizeAll()
	if !s.Finalized() {
		t.Error("FinalizeAll did not finalize the session")
	}

	m.Remove(s.ID())
	if _, err := m.Get(s.ID()); err == nil {
		t.Error("session still active after Remove")
	}
}
