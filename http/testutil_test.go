package http

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	x402 "github.com/x402-foundation/x402-entitlements"
)

const (
	testPayTo = "0x1111111111111111111111111111111111111111"
	testFrom  = "0x2222222222222222222222222222222222222222"
	testAsset = "0xc01efAaF7C5C61bEbFAeb358E1161b537b8bC0e0"
)

func testRequirements() x402.PaymentOption {
	return x402.PaymentOption{
		Scheme:            x402.SchemeExact,
		Network:           x402.NetworkCronosTestnet,
		Asset:             testAsset,
		PayTo:             testPayTo,
		MaxAmountRequired: "1000000",
		MaxTimeoutSeconds: 300,
		Description:       "Unlock resource",
		MimeType:          "application/json",
		Resource:          "http://localhost:8787/api/data",
		Extra:             map[string]interface{}{x402.ExtraPaymentIDKey: "p1"},
	}
}

func testHeader() x402.PaymentHeader {
	return x402.PaymentHeader{
		X402Version: x402.X402Version,
		Scheme:      x402.SchemeExact,
		Network:     x402.NetworkCronosTestnet,
		Payload: x402.ExactEvmPayload{
			From:        testFrom,
			To:          testPayTo,
			Value:       "1000000",
			ValidAfter:  "0",
			ValidBefore: "1900000000",
			Nonce:       "0x" + "ab",
			Signature:   "0xdeadbeef",
			Asset:       testAsset,
		},
	}
}

func encodeTestHeader(t *testing.T, h x402.PaymentHeader) string {
	t.Helper()
	encoded, err := x402.EncodePaymentHeader(h)
	if err != nil {
		t.Fatalf("encode header: %v", err)
	}
	return encoded
}

func testConfig(t *testing.T) *x402.Config {
	t.Helper()
	cfg, err := x402.NewConfig(x402.NetworkCronosTestnet, testPayTo, "1000000",
		x402.WithResource("http://localhost:8787/api/data"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

// memStore is a minimal EntitlementStore for handler tests
type memStore struct {
	mu      sync.Mutex
	records map[string]x402.SettlementRecord
	getErr  error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]x402.SettlementRecord)}
}

func (s *memStore) Get(_ context.Context, key string) (*x402.SettlementRecord, bool, error) {
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

func (s *memStore) Put(_ context.Context, key string, record x402.SettlementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = record
	return nil
}

// stubFacilitator answers verify and settle with fixed responses
type stubFacilitator struct {
	verify      *x402.VerifyResponse
	settle      *x402.SettleResponse
	err         error
	verifyCalls atomic.Int32
	settleCalls atomic.Int32
}

func (f *stubFacilitator) Verify(context.Context, x402.FacilitatorRequest) (*x402.VerifyResponse, error) {
	f.verifyCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if f.verify == nil {
		return &x402.VerifyResponse{IsValid: true}, nil
	}
	return f.verify, nil
}

func (f *stubFacilitator) Settle(context.Context, x402.FacilitatorRequest) (*x402.SettleResponse, error) {
	f.settleCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if f.settle == nil {
		return &x402.SettleResponse{Event: x402.SettledEvent, TxHash: "0xabc"}, nil
	}
	return f.settle, nil
}
