package library

import (
	"path/filepath"
	"sync"
)

// Registry hands out one Collection per participant, backed by
// <dir>/<participant_id>.papers.json. Collections are opened lazily and
// cached for the life of the process.
type Registry struct {
	dir  string
	mu   sync.Mutex
	open map[string]*Collection
}

// NewRegistry creates a registry rooted at dir.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, open: make(map[string]*Collection)}
}

// Get returns the participant's collection, opening it on first use.
func (r *Registry) Get(participantID string) (*Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.open[participantID]; ok {
		return c, nil
	}
	c, err := Open(filepath.Join(r.dir, participantID+".papers.json"))
	if err != nil {
		return nil, err
	}
	r.open[participantID] = c
	return c, nil
}
