package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/revlab/sessiond/internal/event"
	"github.com/revlab/sessiond/internal/session"
)

func testSnapshot() session.Snapshot {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return session.Snapshot{
		ParticipantID:   "p1",
		ParticipantName: "Alice",
		StartedAt:       t0,
		EndedAt:         t0.Add(10 * time.Minute),
		Events: []event.Event{
			{
				Timestamp:     t0,
				ParticipantID: "p1",
				Condition:     event.ConditionManual,
				Section:       "Home",
				Type:          event.SessionStart,
			},
			{
				Timestamp:     t0.Add(time.Minute),
				ParticipantID: "p1",
				Condition:     event.ConditionAI,
				TaskID:        "T1",
				Section:       "Search",
				Type:          event.SearchQuery,
				Value:         map[string]interface{}{"query": "surface codes"},
			},
		},
	}
}

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := OpenArchive(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestArchiveRoundTrip(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	want := testSnapshot()

	if err := a.ArchiveSession(ctx, want); err != nil {
		t.Fatalf("ArchiveSession: %v", err)
	}
	got, err := a.LoadSession(ctx, "p1")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}

	if got.ParticipantID != "p1" || got.ParticipantName != "Alice" {
		t.Errorf("identity = %q/%q", got.ParticipantID, got.ParticipantName)
	}
	if !got.StartedAt.Equal(want.StartedAt) || !got.EndedAt.Equal(want.EndedAt) {
		t.Errorf("times = %v..%v, want %v..%v", got.StartedAt, got.EndedAt, want.StartedAt, want.EndedAt)
	}
	if len(got.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(got.Events))
	}
	if got.Events[1].Type != event.SearchQuery || got.Events[1].TaskID != "T1" {
		t.Errorf("event = %+v", got.Events[1])
	}
	if got.Events[1].Value["query"] != "surface codes" {
		t.Errorf("payload lost: %v", got.Events[1].Value)
	}
}

func TestArchiveIdempotent(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	snap := testSnapshot()

	if err := a.ArchiveSession(ctx, snap); err != nil {
		t.Fatalf("first archive: %v", err)
	}
	// Archiving again replaces, never duplicates.
	snap.Events = append(snap.Events, event.Event{
		Timestamp:     snap.EndedAt,
		ParticipantID: "p1",
		Condition:     event.ConditionAI,
		Section:       "Summary",
		Type:          event.SessionEnd,
	})
	if err := a.ArchiveSession(ctx, snap); err != nil {
		t.Fatalf("second archive: %v", err)
	}

	got, err := a.LoadSession(ctx, "p1")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if len(got.Events) != 3 {
		t.Fatalf("got %d events, want 3 (replaced, not appended)", len(got.Events))
	}
}

func TestArchiveLoadUnknownParticipant(t *testing.T) {
	a := openTestArchive(t)
	_, err := a.LoadSession(context.Background(), "nobody")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestArchiveParticipants(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	snap := testSnapshot()
	for _, id := range []string{"p2", "p1"} {
		snap.ParticipantID = id
		if err := a.ArchiveSession(ctx, snap); err != nil {
			t.Fatalf("archive %s: %v", id, err)
		}
	}
	ids, err := a.Participants(ctx)
	if err != nil {
		t.Fatalf("Participants: %v", err)
	}
	if len(ids) != 2 || ids[0] != "p1" || ids[1] != "p2" {
		t.Errorf("ids = %v, want [p1 p2]", ids)
	}
}
