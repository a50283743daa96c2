package runstore

import (
	"sort"
	"sync"
)

// MemoryStore is an in-memory run store for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]*Run
	closed bool
}

// NewMemoryStore creates a new in-memory run store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]*Run),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	// Copy so later caller mutations don't leak into the store
	stored := *run
	stored.Document = make([]byte, len(run.Document))
	copy(stored.Document, run.Document)

	m.runs[run.ID] = &stored
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	run, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}

	result := *run
	result.Document = make([]byte, len(run.Document))
	copy(result.Document, run.Document)
	return &result, nil
}

// List implements Store.
func (m *MemoryStore) List(limit int) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0, len(m.runs))
	for _, run := range m.runs {
		infos = append(infos, Info{
			ID:        run.ID,
			Source:    run.Source,
			InputHash: run.InputHash,
			Strategy:  run.Strategy,
			Errors:    run.Errors,
			Warnings:  run.Warnings,
			Fixes:     run.Fixes,
			Duration:  run.Duration,
			CreatedAt: run.CreatedAt,
			Size:      int64(len(run.Document)),
		})
	}

	// Newest first
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})

	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}

	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.runs, id)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.runs = nil
	return nil
}

// Len returns the number of stored runs. Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}
