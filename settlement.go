package x402

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/x402-foundation/x402-entitlements/extensions/paymentidentifier"
)

// SettlementCoordinator verifies and settles payments through a facilitator and
// records the resulting entitlement.
//
// The store is written only after the facilitator confirms settlement with the
// "payment.settled" event. Rejections come back as a failed SettlementResult;
// transport errors are returned as-is. Neither path touches the store.
type SettlementCoordinator struct {
	store  EntitlementStore
	logger *zap.Logger
	now    func() time.Time

	grantedHooks []EntitlementGrantedHook
	failedHooks  []SettlementFailedHook
}

// CoordinatorOption configures a SettlementCoordinator
type CoordinatorOption func(*SettlementCoordinator)

// WithCoordinatorLogger sets the logger
func WithCoordinatorLogger(logger *zap.Logger) CoordinatorOption {
	return func(c *SettlementCoordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the time source used for RecordedAt
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *SettlementCoordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewSettlementCoordinator creates a coordinator writing to store.
func NewSettlementCoordinator(store EntitlementStore, opts ...CoordinatorOption) (*SettlementCoordinator, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	c := &SettlementCoordinator{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OnEntitlementGranted registers a hook that runs after an entitlement is stored.
func (c *SettlementCoordinator) OnEntitlementGranted(hook EntitlementGrantedHook) *SettlementCoordinator {
	c.grantedHooks = append(c.grantedHooks, hook)
	return c
}

// OnSettlementFailed registers a hook that runs when no entitlement was granted.
func (c *SettlementCoordinator) OnSettlementFailed(hook SettlementFailedHook) *SettlementCoordinator {
	c.failedHooks = append(c.failedHooks, hook)
	return c
}

// Validate reports ErrMissingPaymentFields when the id or header is empty.
func (r SettlementRequest) Validate() error {
	if r.PaymentID == "" || r.PaymentHeader == "" {
		return ErrMissingPaymentFields
	}
	return nil
}

// Settle runs verify then settle against facilitator and records the
// entitlement for req.PaymentID on confirmed settlement.
//
// Settle is not called unless Verify reported the payment valid. Once the
// facilitator confirms settlement the store write no longer observes ctx
// cancellation, so a settled payment is always recorded.
func (c *SettlementCoordinator) Settle(ctx context.Context, facilitator FacilitatorClient, req SettlementRequest) (*SettlementResult, error) {
	if facilitator == nil {
		return nil, ErrNilFacilitator
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := c.now()
	hookCtx := SettlementContext{
		Ctx:       ctx,
		PaymentID: req.PaymentID,
		Request:   req,
		Timestamp: start,
	}
	log := c.logger.With(zap.String("payment_id", req.PaymentID))

	if echoed := req.PaymentRequirements.PaymentID(); echoed != "" && echoed != req.PaymentID {
		log.Warn("payment id differs from the challenge it echoes", zap.String("challenge_payment_id", echoed))
	}
	if !paymentidentifier.IsValidPaymentID(req.PaymentID) {
		log.Debug("payment id was not issued by this server")
	}

	body := FacilitatorRequest{
		X402Version:         X402Version,
		PaymentHeader:       req.PaymentHeader,
		PaymentRequirements: req.PaymentRequirements,
		PaymentID:           req.PaymentID,
	}

	verify, err := facilitator.Verify(ctx, body)
	if err == nil && verify == nil {
		err = &FacilitatorError{Op: "verify", Err: errors.New("empty response")}
	}
	if err != nil {
		log.Error("facilitator verify failed", zap.Error(err))
		c.runFailed(hookCtx, nil, err)
		return nil, err
	}
	if !verify.IsValid {
		log.Info("payment rejected by verify", zap.String("reason", verify.InvalidReason))
		result := &SettlementResult{OK: false, Error: FailureVerify, Details: verify}
		c.runFailed(hookCtx, result, nil)
		return result, nil
	}

	settle, err := facilitator.Settle(ctx, body)
	if err == nil && settle == nil {
		err = &FacilitatorError{Op: "settle", Err: errors.New("empty response")}
	}
	if err != nil {
		log.Error("facilitator settle failed", zap.Error(err))
		c.runFailed(hookCtx, nil, err)
		return nil, err
	}
	if !settle.Settled() {
		log.Info("payment not settled", zap.String("event", settle.Event), zap.String("error", settle.Error))
		result := &SettlementResult{OK: false, Error: FailureSettle, Details: settle}
		c.runFailed(hookCtx, result, nil)
		return result, nil
	}

	record := SettlementRecord{
		Settled:         true,
		TransactionHash: settle.TxHash,
		RecordedAt:      c.now().UTC(),
	}
	if err := c.store.Put(context.WithoutCancel(ctx), req.PaymentID, record); err != nil {
		err = fmt.Errorf("x402: record entitlement for %s (tx %s): %w", req.PaymentID, settle.TxHash, err)
		log.Error("settled payment could not be recorded", zap.String("tx_hash", settle.TxHash), zap.Error(err))
		c.runFailed(hookCtx, nil, err)
		return nil, err
	}

	log.Info("entitlement granted", zap.String("tx_hash", settle.TxHash))
	for _, hook := range c.grantedHooks {
		hook(EntitlementGrantedContext{
			SettlementContext: hookCtx,
			Record:            record,
			Settle:            *settle,
			Duration:          c.now().Sub(start),
		})
	}
	return &SettlementResult{OK: true, TxHash: settle.TxHash}, nil
}

func (c *SettlementCoordinator) runFailed(hookCtx SettlementContext, result *SettlementResult, err error) {
	if len(c.failedHooks) == 0 {
		return
	}
	failed := SettlementFailedContext{
		SettlementContext: hookCtx,
		Result:            result,
		Error:             err,
		Duration:          c.now().Sub(hookCtx.Timestamp),
	}
	for _, hook := range c.failedHooks {
		hook(failed)
	}
}
