package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockGenerator is an in-memory Generator for unit tests.
// It numbers each prefix independently: PREFIX-YYYY-00001, PREFIX-YYYY-00002...
type MockGenerator struct {
	mu   sync.Mutex
	seqs map[string]int64
}

// GetNextNumber implements Generator.
func (m *MockGenerator) GetNextNumber(_ context.Context, cfg Config, _ *Options, period time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seqs == nil {
		m.seqs = make(map[string]int64)
	}
	m.seqs[cfg.Prefix]++
	return fmt.Sprintf("%s-%s-%05d", cfg.Prefix, period.Format("2006"), m.seqs[cfg.Prefix]), nil
}

var _ Generator = (*MockGenerator)(nil)
