package store

import (
	"context"
	"sync"

	"tasktree-go/app/models"
)

// MemoryBackend keeps records in a map. State lives only as long as the
// process. Safe for concurrent use.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string]models.Task
	writes  int
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]models.Task)}
}

// Get implements Backend.
func (m *MemoryBackend) Get(ctx context.Context, id string) (models.Task, error) {
	if err := ctx.Err(); err != nil {
		return models.Task{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return models.Task{}, ErrRecordNotFound
	}
	return record.Clone(), nil
}

// List implements Backend.
func (m *MemoryBackend) List(ctx context.Context) ([]models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]models.Task, 0, len(m.records))
	for _, record := range m.records {
		records = append(records, record.Clone())
	}
	return records, nil
}

// Write implements Backend.
func (m *MemoryBackend) Write(ctx context.Context, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range batch.Deletes {
		delete(m.records, id)
	}
	for _, record := range batch.Puts {
		m.records[record.ID] = record.Clone()
	}
	m.writes++
	return nil
}

// Close implements Backend. It keeps the records so a test can reopen
// the same data.
func (m *MemoryBackend) Close(context.Context) error {
	return nil
}

// Len returns the number of stored records.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Writes returns the number of batches applied so far.
func (m *MemoryBackend) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
