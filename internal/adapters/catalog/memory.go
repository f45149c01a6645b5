package catalog

import (
	"context"
	"sync"

	"github.com/navarlu/Historian/internal/domain"
	"github.com/navarlu/Historian/internal/ports"
)

// MemoryStore holds the catalog in memory. Embedding callers and tests use
// it to drive the samplers without touching the filesystem.
type MemoryStore struct {
	mu    sync.Mutex
	tags  []domain.Tag
	loops []domain.LoopAssignment
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Selection(_ context.Context) ([]domain.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Tag, len(m.tags))
	copy(out, m.tags)
	return out, nil
}

func (m *MemoryStore) LoopAssignments(_ context.Context) ([]domain.LoopAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.LoopAssignment, len(m.loops))
	copy(out, m.loops)
	return out, nil
}

func (m *MemoryStore) SaveSelection(_ context.Context, tags []domain.Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags = append([]domain.Tag(nil), tags...)
	return nil
}

func (m *MemoryStore) SaveLoopAssignments(_ context.Context, loops []domain.LoopAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loops = append([]domain.LoopAssignment(nil), loops...)
	return nil
}

var _ ports.CatalogStore = (*MemoryStore)(nil)
