// Package audittest provides an in-memory audit recorder for tests.
package audittest

import (
	"context"
	"sync"

	"workshop/internal/core/id"
	"workshop/internal/domain/audit"
)

// Memory keeps entries in insertion order.
type Memory struct {
	mu      sync.Mutex
	Entries []audit.Entry
}

func (m *Memory) Log(_ context.Context, entry audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *Memory) History(_ context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Entry
	for i := len(m.Entries) - 1; i >= 0; i-- {
		e := m.Entries[i]
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Messages returns the message of every entry in order.
func (m *Memory) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.Message
	}
	return out
}

var _ audit.Recorder = (*Memory)(nil)
