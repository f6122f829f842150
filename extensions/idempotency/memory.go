package idempotency

import (
	"context"
	"sync"
	"time"

	x402 "github.com/x402-foundation/x402-entitlements"
)

type settledEntry struct {
	response  *x402.SettleResponse
	expiresAt time.Time
}

// MemoryStore is a process-local SettlementStore.
type MemoryStore struct {
	mu      sync.Mutex
	settled map[string]settledEntry
	held    map[string]chan struct{}
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore keeps settled responses for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		settled: make(map[string]settledEntry),
		held:    make(map[string]chan struct{}),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Acquire(ctx context.Context, key string) (*x402.SettleResponse, Lease, error) {
	for {
		s.mu.Lock()
		if response := s.cachedLocked(key); response != nil {
			s.mu.Unlock()
			return response, nil, nil
		}
		released, busy := s.held[key]
		if !busy {
			released = make(chan struct{})
			s.held[key] = released
			s.mu.Unlock()
			return nil, &memoryLease{store: s, key: key, released: released}, nil
		}
		s.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

// Len returns the number of cached responses, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.settled)
}

// cachedLocked requires s.mu.
func (s *MemoryStore) cachedLocked(key string) *x402.SettleResponse {
	entry, ok := s.settled[key]
	if !ok {
		return nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.settled, key)
		return nil
	}
	return entry.response
}

func (s *MemoryStore) finish(key string, released chan struct{}, response *x402.SettleResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if response != nil {
		s.settled[key] = settledEntry{response: response, expiresAt: now.Add(s.ttl)}
	}
	delete(s.held, key)
	close(released)

	for k, entry := range s.settled {
		if !now.Before(entry.expiresAt) {
			delete(s.settled, k)
		}
	}
}

type memoryLease struct {
	store    *MemoryStore
	key      string
	released chan struct{}
	once     sync.Once
}

func (l *memoryLease) Complete(_ context.Context, response *x402.SettleResponse) error {
	l.once.Do(func() { l.store.finish(l.key, l.released, response) })
	return nil
}

func (l *memoryLease) Release(context.Context) {
	l.once.Do(func() { l.store.finish(l.key, l.released, nil) })
}

var _ SettlementStore = (*MemoryStore)(nil)
