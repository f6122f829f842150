package http

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	x402 "github.com/x402-foundation/x402-entitlements"
)

// Base64 regex pattern - requires at least one character
var base64Regex = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)

// ErrInvalidPaymentHeader wraps every ValidatePaymentHeader failure
var ErrInvalidPaymentHeader = errors.New(x402.ErrCodeInvalidPaymentHeader)

// ValidatePaymentHeader decodes a Cronos payment header and checks it against
// the requirements it claims to pay:
// - Base64 JSON encoding
// - Protocol version and exact scheme
// - Network, payee and asset match the requirements
// - Value covers maxAmountRequired
// - Payer address and signature are present
//
// The signature itself is left to the facilitator.
func ValidatePaymentHeader(paymentHeader string, requirements x402.PaymentOption) (*x402.PaymentHeader, error) {
	if paymentHeader == "" {
		return nil, invalidHeader("payment header is empty")
	}
	if !base64Regex.MatchString(paymentHeader) {
		return nil, invalidHeader("not valid base64")
	}

	header, err := x402.DecodePaymentHeader(paymentHeader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPaymentHeader, err)
	}

	if header.X402Version != x402.X402Version {
		return nil, invalidHeader("unsupported x402Version %d", header.X402Version)
	}
	if header.Scheme != x402.SchemeExact {
		return nil, invalidHeader("unsupported scheme %q", header.Scheme)
	}
	if requirements.Network != "" && header.Network != requirements.Network {
		return nil, invalidHeader("network %q does not match requirements %q", header.Network, requirements.Network)
	}

	payload := header.Payload
	if !common.IsHexAddress(payload.From) {
		return nil, invalidHeader("payload.from is not an EVM address")
	}
	if !common.IsHexAddress(payload.To) {
		return nil, invalidHeader("payload.to is not an EVM address")
	}
	if requirements.PayTo != "" && !strings.EqualFold(payload.To, requirements.PayTo) {
		return nil, invalidHeader("payload.to does not match payTo")
	}
	if payload.Asset != "" && requirements.Asset != "" && !strings.EqualFold(payload.Asset, requirements.Asset) {
		return nil, invalidHeader("payload.asset does not match requirements")
	}

	value, ok := new(big.Int).SetString(payload.Value, 10)
	if !ok || value.Sign() <= 0 {
		return nil, invalidHeader("payload.value must be a positive integer")
	}
	if requirements.MaxAmountRequired != "" {
		required, ok := new(big.Int).SetString(requirements.MaxAmountRequired, 10)
		if !ok {
			return nil, invalidHeader("requirements carry an invalid maxAmountRequired")
		}
		if value.Cmp(required) < 0 {
			return nil, invalidHeader("payload.value %s is below maxAmountRequired %s", payload.Value, requirements.MaxAmountRequired)
		}
	}

	if payload.Signature == "" {
		return nil, invalidHeader("payload.signature is missing")
	}
	return header, nil
}

func invalidHeader(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidPaymentHeader, fmt.Sprintf(format, args...))
}
