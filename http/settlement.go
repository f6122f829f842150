package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	x402 "github.com/x402-foundation/x402-entitlements"
)

// maxSettlementBodyBytes caps the size of a settlement request body
const maxSettlementBodyBytes = 64 << 10

// errInvalidPaymentFields marks a body whose fields are present but mistyped
var errInvalidPaymentFields = errors.New(x402.ErrCodeInvalidPaymentFields)

// DecodeSettlementRequest reads a {paymentId, paymentHeader, paymentRequirements}
// body. An empty body, or any of the three fields absent, null or empty,
// yields x402.ErrMissingPaymentFields.
func DecodeSettlementRequest(body io.Reader) (x402.SettlementRequest, error) {
	var raw struct {
		PaymentID           string          `json:"paymentId"`
		PaymentHeader       string          `json:"paymentHeader"`
		PaymentRequirements json.RawMessage `json:"paymentRequirements"`
	}

	dec := json.NewDecoder(io.LimitReader(body, maxSettlementBodyBytes))
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return x402.SettlementRequest{}, x402.ErrMissingPaymentFields
		}
		return x402.SettlementRequest{}, fmt.Errorf("%w: %v", errInvalidPaymentFields, err)
	}

	if raw.PaymentID == "" || raw.PaymentHeader == "" ||
		len(raw.PaymentRequirements) == 0 || string(raw.PaymentRequirements) == "null" {
		return x402.SettlementRequest{}, x402.ErrMissingPaymentFields
	}

	req := x402.SettlementRequest{
		PaymentID:     raw.PaymentID,
		PaymentHeader: raw.PaymentHeader,
	}
	if err := json.Unmarshal(raw.PaymentRequirements, &req.PaymentRequirements); err != nil {
		return x402.SettlementRequest{}, fmt.Errorf("%w: paymentRequirements: %v", errInvalidPaymentFields, err)
	}
	return req, nil
}

// SettlementProcessor turns a settlement request body into an HTTP status and
// JSON body. The stdlib, gin and echo handlers all delegate to it.
type SettlementProcessor struct {
	coordinator   *x402.SettlementCoordinator
	facilitator   x402.FacilitatorClient
	strictHeaders bool
	logger        *zap.Logger
}

// ProcessorOption configures a SettlementProcessor
type ProcessorOption func(*SettlementProcessor)

// WithStrictHeaders rejects payment headers that fail ValidatePaymentHeader
// before the facilitator is called.
func WithStrictHeaders(strict bool) ProcessorOption {
	return func(p *SettlementProcessor) {
		p.strictHeaders = strict
	}
}

// WithProcessorLogger sets the logger
func WithProcessorLogger(logger *zap.Logger) ProcessorOption {
	return func(p *SettlementProcessor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewSettlementProcessor creates a processor settling through facilitator.
func NewSettlementProcessor(coordinator *x402.SettlementCoordinator, facilitator x402.FacilitatorClient, opts ...ProcessorOption) (*SettlementProcessor, error) {
	if coordinator == nil {
		return nil, x402.ErrNilCoordinator
	}
	if facilitator == nil {
		return nil, x402.ErrNilFacilitator
	}
	p := &SettlementProcessor{
		coordinator: coordinator,
		facilitator: facilitator,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Process decodes body and settles it. The returned value is the JSON response.
func (p *SettlementProcessor) Process(ctx context.Context, body io.Reader) (int, interface{}) {
	req, err := DecodeSettlementRequest(body)
	if err != nil {
		return p.requestError(err)
	}
	return p.Settle(ctx, req)
}

// Settle runs an already decoded request through the coordinator.
func (p *SettlementProcessor) Settle(ctx context.Context, req x402.SettlementRequest) (int, interface{}) {
	if p.strictHeaders {
		if _, err := ValidatePaymentHeader(req.PaymentHeader, req.PaymentRequirements); err != nil {
			p.logger.Info("payment header rejected", zap.String("payment_id", req.PaymentID), zap.Error(err))
			return http.StatusBadRequest, x402.NewPaymentError(x402.ErrCodeInvalidPaymentHeader, err.Error(), nil)
		}
	}

	result, err := p.coordinator.Settle(ctx, p.facilitator, req)
	if err != nil {
		if errors.Is(err, x402.ErrMissingPaymentFields) {
			return p.requestError(err)
		}
		return http.StatusInternalServerError, x402.NewPaymentError(x402.ErrCodeSettlementUnavailable, "", nil)
	}
	if !result.OK {
		return http.StatusBadRequest, result
	}
	return http.StatusOK, result
}

func (p *SettlementProcessor) requestError(err error) (int, interface{}) {
	if errors.Is(err, x402.ErrMissingPaymentFields) {
		return http.StatusBadRequest, x402.NewPaymentError(x402.ErrCodeMissingPaymentFields, "", nil)
	}
	p.logger.Debug("malformed settlement request", zap.Error(err))
	return http.StatusBadRequest, x402.NewPaymentError(x402.ErrCodeInvalidPaymentFields, err.Error(), nil)
}
