package telemetry

import (
	"context"
	"strconv"
	"sync"
)

// MemoryStore is an in-memory implementation of SampleStore.
// It's safe for concurrent use by multiple goroutines.
type MemoryStore struct {
	mu       sync.RWMutex
	samples  []ResourceSample
	revision int
}

// NewMemoryStore creates a new in-memory store holding the given samples
func NewMemoryStore(samples []ResourceSample) *MemoryStore {
	return &MemoryStore{samples: append([]ResourceSample(nil), samples...)}
}

// Load returns a copy of the stored samples
func (m *MemoryStore) Load(ctx context.Context) ([]ResourceSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.samples) == 0 {
		return nil, &DataError{Msg: "no telemetry samples after validation"}
	}
	return append([]ResourceSample(nil), m.samples...), nil
}

// Version returns a revision counter that changes on every Replace
func (m *MemoryStore) Version(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return strconv.Itoa(m.revision), nil
}

// Replace swaps the stored samples and bumps the revision
func (m *MemoryStore) Replace(samples []ResourceSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append([]ResourceSample(nil), samples...)
	m.revision++
}

// Ensure MemoryStore implements SampleStore
var _ SampleStore = (*MemoryStore)(nil)
var _ SampleStore = (*CSVStore)(nil)
