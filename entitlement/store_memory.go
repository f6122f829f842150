package entitlement

import (
	"context"
	"sync"

	x402 "github.com/x402-foundation/x402-entitlements"
)

// MemoryStore is a process-local EntitlementStore. Records are never evicted.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]x402.SettlementRecord
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]x402.SettlementRecord),
	}
}

// Get returns a copy of the record for key.
func (s *MemoryStore) Get(_ context.Context, key string) (*x402.SettlementRecord, bool, error) {
	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return &record, true, nil
}

// Put overwrites the record for key.
func (s *MemoryStore) Put(_ context.Context, key string, record x402.SettlementRecord) error {
	s.mu.Lock()
	s.records[key] = record
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
