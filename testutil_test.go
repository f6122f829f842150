package x402

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

const (
	testPayTo = "0x1111111111111111111111111111111111111111"
	testAsset = "0xc01efAaF7C5C61bEbFAeb358E1161b537b8bC0e0"
)

// mapStore is a minimal EntitlementStore for tests in this package.
type mapStore struct {
	mu      sync.Mutex
	records map[string]SettlementRecord
	puts    int
	getErr  error
	putErr  error
}

func newMapStore() *mapStore {
	return &mapStore{records: make(map[string]SettlementRecord)}
}

func (s *mapStore) Get(_ context.Context, key string) (*SettlementRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	r, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (s *mapStore) Put(ctx context.Context, key string, record SettlementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	if ctx.Err() != nil {
		return errors.New("put called with a cancelled context")
	}
	s.records[key] = record
	s.puts++
	return nil
}

func (s *mapStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

// mockFacilitatorClient records calls and returns canned responses.
type mockFacilitatorClient struct {
	verifyFunc func(ctx context.Context, req FacilitatorRequest) (*VerifyResponse, error)
	settleFunc func(ctx context.Context, req FacilitatorRequest) (*SettleResponse, error)

	verifyCalls atomic.Int32
	settleCalls atomic.Int32
}

func (m *mockFacilitatorClient) Verify(ctx context.Context, req FacilitatorRequest) (*VerifyResponse, error) {
	m.verifyCalls.Add(1)
	if m.verifyFunc != nil {
		return m.verifyFunc(ctx, req)
	}
	return &VerifyResponse{IsValid: true}, nil
}

func (m *mockFacilitatorClient) Settle(ctx context.Context, req FacilitatorRequest) (*SettleResponse, error) {
	m.settleCalls.Add(1)
	if m.settleFunc != nil {
		return m.settleFunc(ctx, req)
	}
	return &SettleResponse{Event: SettledEvent, TxHash: "0xabc"}, nil
}

func testConfig(t interface{ Fatalf(string, ...interface{}) }) *Config {
	cfg, err := NewConfig(NetworkCronosTestnet, testPayTo, "1000000",
		WithResource("http://localhost:8787/api/secret"),
		WithDescription("Unlock resource"),
		WithOutputSchema(DefaultOutputSchema()),
	)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	return cfg
}
