package assistant

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a scripted Generator for tests: it replays queued replies in order
// and records the prompts it received.
type Mock struct {
	mu      sync.Mutex
	Replies []string
	Err     error
	Prompts []string
}

// Generate returns the next queued reply, or Err if set.
func (m *Mock) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Replies) == 0 {
		return "", fmt.Errorf("mock assistant: no replies queued")
	}
	reply := m.Replies[0]
	m.Replies = m.Replies[1:]
	return reply, nil
}
