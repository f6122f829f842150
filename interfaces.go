package x402

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

import (
	"context"
	"net/http"
)

// FacilitatorClient verifies and settles payment headers against an external facilitator.
type FacilitatorClient interface {
	// Verify checks the header against the requirements without moving funds.
	Verify(ctx context.Context, req FacilitatorRequest) (*VerifyResponse, error)

	// Settle executes the payment. Only a response whose Event is
	// "payment.settled" confirms it.
	Settle(ctx context.Context, req FacilitatorRequest) (*SettleResponse, error)
}

// EntitlementStore maps entitlement keys to settlement records.
//
// Put must be atomic per key: a concurrent Get sees either the previous record
// or the new one, never a mix. Get reports absence with ok == false and a nil error.
type EntitlementStore interface {
	Get(ctx context.Context, key string) (*SettlementRecord, bool, error)
	Put(ctx context.Context, key string, record SettlementRecord) error
}

// KeyExtractor derives the entitlement key from a request. Returning ok == false
// falls back to the x-payment-id header.
type KeyExtractor func(r *http.Request) (key string, ok bool)
