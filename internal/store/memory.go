package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore provides an in-memory BatchUpdater useful for tests and local
// development. It records every applied batch and tracks the latest allocation
// state per opportunity/site.
type MemoryStore struct {
	mu          sync.RWMutex
	batches     map[uuid.UUID]ChangeBatch
	allocations map[string]map[string]AllocationChange
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		batches:     map[uuid.UUID]ChangeBatch{},
		allocations: map[string]map[string]AllocationChange{},
	}
}

func (m *MemoryStore) ApplyBatch(ctx context.Context, batch ChangeBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := batch
	copied.Changes = append([]AllocationChange(nil), batch.Changes...)
	m.batches[batch.ID] = copied

	sites, ok := m.allocations[batch.OpportunityID]
	if !ok {
		sites = map[string]AllocationChange{}
		m.allocations[batch.OpportunityID] = sites
	}
	for _, ch := range batch.Changes {
		if ch.Passes == 0 {
			delete(sites, ch.SiteID)
			continue
		}
		sites[ch.SiteID] = ch
	}
	return nil
}

// GetBatch returns a previously applied batch.
func (m *MemoryStore) GetBatch(ctx context.Context, id uuid.UUID) (ChangeBatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	batch, ok := m.batches[id]
	if !ok {
		return ChangeBatch{}, ErrNotFound
	}
	return batch, nil
}

// Allocations returns the current allocation state for an opportunity.
func (m *MemoryStore) Allocations(ctx context.Context, opportunityID string) []AllocationChange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AllocationChange, 0, len(m.allocations[opportunityID]))
	for _, ch := range m.allocations[opportunityID] {
		out = append(out, ch)
	}
	return out
}

// BatchCount reports how many batches were applied.
func (m *MemoryStore) BatchCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.batches)
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
