package store

import (
	"sync"
	"time"

	"github.com/conductor-telemetry/conductor/pkg/models"
	"github.com/conductor-telemetry/conductor/pkg/schema"
)

// MemoryStore is an in-memory implementation of Store, used for tests
// and throwaway deployments. Data does not survive restarts.
type MemoryStore struct {
	mu        sync.RWMutex
	producers map[string]*models.Producer
	rows      map[string][]MemoryRow
}

// MemoryRow is one emitted row kept by the in-memory backend.
type MemoryRow struct {
	TS     time.Time
	Values map[string]interface{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		producers: make(map[string]*models.Producer),
		rows:      make(map[string][]MemoryRow),
	}
}

func (m *MemoryStore) CreateProducer(p *models.Producer, _ schema.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.producers[p.UUID]; ok {
		return ErrProducerExists
	}
	cp := *p
	m.producers[p.UUID] = &cp
	m.rows[p.UUID] = nil
	return nil
}

func (m *MemoryStore) GetProducer(uuid string) (*models.Producer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.producers[uuid]
	if !ok {
		return nil, ErrProducerNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) ListProducers() ([]*models.Producer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Producer, 0, len(m.producers))
	for _, p := range m.producers {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) InsertEmit(uuid string, columns []string, values []interface{}, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.producers[uuid]; !ok {
		return ErrProducerNotFound
	}
	row := MemoryRow{TS: ts, Values: make(map[string]interface{}, len(columns))}
	for i, col := range columns {
		row.Values[col] = values[i]
	}
	m.rows[uuid] = append(m.rows[uuid], row)
	return nil
}

func (m *MemoryStore) CountRows(uuid string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.producers[uuid]; !ok {
		return 0, ErrProducerNotFound
	}
	return int64(len(m.rows[uuid])), nil
}

// Rows returns the emitted rows for a producer, for test assertions.
func (m *MemoryStore) Rows(uuid string) []MemoryRow {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]MemoryRow, len(m.rows[uuid]))
	copy(out, m.rows[uuid])
	return out
}

func (m *MemoryStore) HealthCheck() error { return nil }

func (m *MemoryStore) Close() error { return nil }
