package transactions

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps records in process. It backs development runs without
// Postgres and the tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	nextID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (m *MemoryStore) InsertPending(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.CorrelationID]; ok {
		return fmt.Errorf("insert transaction: duplicate correlation id %s", r.CorrelationID)
	}
	m.nextID++
	now := time.Now()
	cp := *r
	cp.ID = m.nextID
	if cp.Status == "" {
		cp.Status = StatusPending
	}
	cp.CreatedAt, cp.UpdatedAt = now, now
	m.records[r.CorrelationID] = &cp

	r.ID, r.CreatedAt, r.UpdatedAt = cp.ID, now, now
	return nil
}

func (m *MemoryStore) UpdateByCorrelationID(_ context.Context, correlationID string, status Status, responsePayload string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[correlationID]
	if !ok {
		return 0, nil
	}
	r.Status = status
	payload := responsePayload
	r.ResponsePayload = &payload
	r.UpdatedAt = time.Now()
	return 1, nil
}

func (m *MemoryStore) MarkTimeout(_ context.Context, correlationID string, responsePayload string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[correlationID]
	if !ok || r.Status.Terminal() {
		return 0, nil
	}
	r.Status = StatusTimeout
	payload := responsePayload
	r.ResponsePayload = &payload
	r.UpdatedAt = time.Now()
	return 1, nil
}

func (m *MemoryStore) GetByCorrelationID(_ context.Context, correlationID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[correlationID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}
