// Package library holds a participant's knowledge base: the papers they
// collected during the review session, persisted as a JSON file.
package library

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/revlab/sessiond/internal/scholar"
)

// Collection is a participant's paper collection. Mutations are persisted
// immediately; a failed write keeps the in-memory state and returns the
// error so the caller can surface a warning.
type Collection struct {
	mu     sync.Mutex
	path   string
	papers []scholar.Paper
}

// Open loads a collection from path, starting empty if the file is missing.
func Open(path string) (*Collection, error) {
	c := &Collection{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read collection %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &c.papers); err != nil {
		return nil, fmt.Errorf("parse collection %s: %w", path, err)
	}
	return c, nil
}

// Add appends a paper unless it is already present (by id or normalized
// title). Returns whether the paper was added.
func (c *Collection) Add(p scholar.Paper) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.papers {
		if existing.ID != "" && existing.ID == p.ID {
			return false, nil
		}
		if normTitle(existing.Title) == normTitle(p.Title) {
			return false, nil
		}
	}
	c.papers = append(c.papers, p)
	return true, c.save()
}

// Remove deletes a paper by id. Returns whether anything was removed.
func (c *Collection) Remove(id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.papers {
		if p.ID == id {
			c.papers = append(c.papers[:i], c.papers[i+1:]...)
			return true, c.save()
		}
	}
	return false, nil
}

// Papers returns a copy of the collection.
func (c *Collection) Papers() []scholar.Paper {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]scholar.Paper, len(c.papers))
	copy(out, c.papers)
	return out
}

// Find returns the paper with the given id.
func (c *Collection) Find(id string) (scholar.Paper, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.papers {
		if p.ID == id {
			return p, true
		}
	}
	return scholar.Paper{}, false
}

// save writes the collection. Called with c.mu held.
func (c *Collection) save() error {
	data, err := json.MarshalIndent(c.papers, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write collection %s: %w", c.path, err)
	}
	return nil
}

func normTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
