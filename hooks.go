package x402

import (
	"context"
	"time"
)

// SettlementContext is passed to settlement hooks
type SettlementContext struct {
	Ctx       context.Context
	PaymentID string
	Request   SettlementRequest
	Timestamp time.Time
}

// EntitlementGrantedContext describes a recorded entitlement
type EntitlementGrantedContext struct {
	SettlementContext
	Record   SettlementRecord
	Settle   SettleResponse
	Duration time.Duration
}

// SettlementFailedContext describes a rejected payment or a transport failure.
// Exactly one of Result and Error is set.
type SettlementFailedContext struct {
	SettlementContext
	Result   *SettlementResult
	Error    error
	Duration time.Duration
}

// EntitlementGrantedHook runs after an entitlement has been stored
type EntitlementGrantedHook func(EntitlementGrantedContext)

// SettlementFailedHook runs after a settlement attempt did not grant an entitlement
type SettlementFailedHook func(SettlementFailedContext)
