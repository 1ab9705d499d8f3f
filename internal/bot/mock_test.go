package bot

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// memStore is a hand-written AIMemoryStore with optimistic versioning.
type memStore struct {
	mu      sync.Mutex
	records map[realm.PlayerID]repository.MemoryRecord
	saves   int

	// conflictOnce bumps the stored version right before the next save.
	conflictOnce bool
}

func newMemStore() *memStore {
	return &memStore{records: make(map[realm.PlayerID]repository.MemoryRecord)}
}

func (m *memStore) LoadMemory(_ context.Context, _ string, p realm.PlayerID) (repository.MemoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[p], nil
}

func (m *memStore) SaveMemory(_ context.Context, _ string, p realm.PlayerID, expected int64, data json.RawMessage) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.records[p]
	if m.conflictOnce {
		m.conflictOnce = false
		cur.Version++
		m.records[p] = cur
	}
	if cur.Version != expected {
		return 0, repository.ErrVersionConflict
	}
	m.saves++
	next := repository.MemoryRecord{Version: cur.Version + 1, Data: data}
	m.records[p] = next
	return next.Version, nil
}

func (m *memStore) DeleteMemory(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[realm.PlayerID]repository.MemoryRecord)
	return nil
}
