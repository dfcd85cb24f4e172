package library

import (
	"path/filepath"
	"testing"

	"github.com/revlab/sessiond/internal/scholar"
)

func TestCollectionAddRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papers.json")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	added, err := c.Add(scholar.Paper{ID: "a", Title: "First Paper"})
	if err != nil || !added {
		t.Fatalf("Add = %v, %v", added, err)
	}
	// Duplicate by id.
	if added, _ := c.Add(scholar.Paper{ID: "a", Title: "Renamed"}); added {
		t.Error("duplicate id was added")
	}
	// Duplicate by normalized title.
	if added, _ := c.Add(scholar.Paper{ID: "b", Title: "  first paper "}); added {
		t.Error("duplicate title was added")
	}
	if added, _ := c.Add(scholar.Paper{ID: "b", Title: "Second Paper"}); !added {
		t.Error("distinct paper rejected")
	}
	if got := len(c.Papers()); got != 2 {
		t.Fatalf("got %d papers, want 2", got)
	}

	if _, ok := c.Find("b"); !ok {
		t.Error("Find(b) failed")
	}
	removed, err := c.Remove("a")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if removed, _ := c.Remove("a"); removed {
		t.Error("second Remove(a) reported success")
	}

	// State survives a reopen.
	c2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	papers := c2.Papers()
	if len(papers) != 1 || papers[0].ID != "b" {
		t.Errorf("reloaded papers = %v, want [b]", papers)
	}
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(c.Papers()) != 0 {
		t.Errorf("got %d papers, want 0", len(c.Papers()))
	}
}

func TestRegistryCachesCollections(t *testing.T) {
	r := NewRegistry(t.TempDir())
	c1, err := r.Get("p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	c2, err := r.Get("p1")
	if err != nil {
		t.Fatalf("Get again: %v", err)
	}
	if c1 != c2 {
		t.Error("registry returned a new collection for the same participant")
	}
	other, err := r.Get("p2")
	if err != nil {
		t.Fatalf("Get p2: %v", err)
	}
	if other == c1 {
		t.Error("participants share a collection")
	}
}
