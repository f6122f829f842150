package x402

import (
	"errors"
	"fmt"
)

// Config validation errors
var (
	ErrMissingPayTo    = errors.New("x402: payTo address is required")
	ErrInvalidPayTo    = errors.New("x402: payTo is not a valid EVM address")
	ErrMissingNetwork  = errors.New("x402: network is required")
	ErrUnknownNetwork  = errors.New("x402: unknown network and no asset configured")
	ErrInvalidAsset    = errors.New("x402: asset is not a valid EVM address")
	ErrMissingPrice    = errors.New("x402: price is required")
	ErrInvalidPrice    = errors.New("x402: price must be a positive integer amount of base units")
	ErrMissingResource = errors.New("x402: resource is required")
)

// Request and settlement errors
var (
	ErrMissingPaymentFields = errors.New("x402: missing payment fields")
	ErrNilFacilitator       = errors.New("x402: facilitator client is required")
	ErrNilStore             = errors.New("x402: entitlement store is required")
	ErrNilIssuer            = errors.New("x402: challenge issuer is required")
	ErrNilCoordinator       = errors.New("x402: settlement coordinator is required")
	ErrNilGate              = errors.New("x402: access gate is required")
)

// PaymentError is the JSON error body returned to HTTP clients
type PaymentError struct {
	Code    string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *PaymentError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes used in PaymentError and PaymentRequired bodies
const (
	ErrCodePaymentRequired       = "payment_required"
	ErrCodeMissingPaymentFields  = "missing payment fields"
	ErrCodeInvalidPaymentFields  = "invalid payment fields"
	ErrCodeInvalidPaymentHeader  = "invalid payment header"
	ErrCodeSettlementUnavailable = "settlement unavailable"
	ErrCodeEntitlementLookup     = "entitlement lookup failed"
	ErrCodeRateLimited           = "rate limit exceeded"
)

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// FacilitatorError is a transport-level failure talking to the facilitator:
// unreachable, non-2xx without a usable answer, or an undecodable body.
type FacilitatorError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *FacilitatorError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode == 0:
		return fmt.Sprintf("x402: facilitator %s: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("x402: facilitator %s (%d): %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("x402: facilitator %s failed (%d): %s", e.Op, e.StatusCode, e.Body)
	}
}

func (e *FacilitatorError) Unwrap() error {
	return e.Err
}
